package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"delixmi-order-services/internal/auth"
	"delixmi-order-services/internal/events"
	"delixmi-order-services/internal/orders"
	"delixmi-order-services/internal/utils"
	"delixmi-order-services/internal/ws"
	"delixmi-order-services/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type statusUpdateRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// transitionOps maps a requested target status to the operation the caller
// must be authorized for. Statuses reached by other actors (claim, delivery)
// are absent on purpose.
var transitionOps = map[string]auth.Operation{
	orders.StatusConfirmed:      auth.OpOrderConfirm,
	orders.StatusPreparing:      auth.OpOrderStartPreparing,
	orders.StatusReadyForPickup: auth.OpOrderMarkReady,
	orders.StatusCancelled:      auth.OpOrderCancelRestaurant,
	orders.StatusRefunded:       auth.OpOrderRefund,
}

// staffOperationFor resolves the operation staff must hold for a transition,
// or reports that the transition belongs to another actor. Cancelling a
// pending order is reserved for the customer and the payment webhook; staff
// cancels only apply once the order is confirmed or preparing.
func staffOperationFor(currentStatus, target string) (auth.Operation, bool) {
	if target == orders.StatusCancelled && currentStatus == orders.StatusPending {
		return "", false
	}
	op, ok := transitionOps[target]
	return op, ok
}

var knownStatuses = map[string]struct{}{
	orders.StatusPending:        {},
	orders.StatusConfirmed:      {},
	orders.StatusPreparing:      {},
	orders.StatusReadyForPickup: {},
	orders.StatusOutForDelivery: {},
	orders.StatusDelivered:      {},
	orders.StatusCancelled:      {},
	orders.StatusRefunded:       {},
}

// RestaurantOrderUpdateStatus drives the staff-facing transitions of the order
// state machine. The write is conditional on the observed status: losing the
// race against another actor returns STALE_STATE rather than overwriting.
func (h *Handler) RestaurantOrderUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.ValidationErrors(w, "Valid orderId is required", nil)
		return
	}

	var body statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.ValidationErrors(w, "Invalid request body", nil)
		return
	}
	target := strings.ToLower(strings.TrimSpace(body.Status))
	if _, known := knownStatuses[target]; !known {
		response.ValidationErrors(w, "Unknown status value", nil)
		return
	}

	var (
		currentStatus string
		customerID    int64
		branchID      int64
		restaurantID  int64
		paymentMethod string
		paymentStatus string
	)
	err = h.DB.QueryRow(ctx, `
		select o.status, o.customer_id, o.branch_id, b.restaurant_id, o.payment_method, o.payment_status
		from orders o
		join branches b on b.id = o.branch_id
		where o.id = $1
	`, orderID).Scan(&currentStatus, &customerID, &branchID, &restaurantID, &paymentMethod, &paymentStatus)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
			return
		}
		h.Logger.Error("order lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
		return
	}

	if !orders.IsValidTransition(currentStatus, target) {
		response.ErrorWithData(w, http.StatusConflict, "ILLEGAL_TRANSITION",
			"This status change is not allowed",
			map[string]any{"currentStatus": currentStatus, "requestedStatus": target})
		return
	}

	op, staffReachable := staffOperationFor(currentStatus, target)
	if !staffReachable {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "This transition belongs to another actor")
		return
	}
	if !auth.Evaluate(principal, op, auth.Target{RestaurantID: restaurantID, BranchID: branchID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "You do not have permission to update this order")
		return
	}

	// Accepting an unpaid card order would hand the kitchen an order the
	// customer never paid for; confirmation for card comes from the webhook.
	if target == orders.StatusConfirmed && paymentMethod == orders.MethodMercadoPago && paymentStatus != orders.PaymentCompleted {
		response.Error(w, http.StatusConflict, "PAYMENT_PENDING", "Card payment has not been completed yet")
		return
	}

	var reason *string
	if target == orders.StatusCancelled {
		trimmed := strings.TrimSpace(body.Reason)
		if trimmed == "" {
			response.ValidationErrors(w, "A cancellation reason is required", nil)
			return
		}
		reason = &trimmed
	}

	if target == orders.StatusRefunded {
		if !h.refundOrder(w, r, orderID, currentStatus) {
			return
		}
	} else {
		moved, err := orders.Transition(ctx, h.DB, orderID, currentStatus, target, reason)
		if err != nil {
			h.Logger.Error("order transition failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
			return
		}
		if !moved {
			response.ErrorWithData(w, http.StatusConflict, "STALE_STATE",
				"The order changed state before your update; refresh and retry",
				map[string]any{"expectedStatus": currentStatus})
			return
		}
	}

	eventType := events.TypeStatusChanged
	data := map[string]any{
		"orderId":  orderID,
		"status":   target,
		"previous": currentStatus,
	}
	if target == orders.StatusCancelled {
		eventType = events.TypeOrderCancelled
		data["reason"] = *reason
	}
	h.Events.Emit(ctx, []string{ws.RestaurantRoom(restaurantID), ws.UserRoom(customerID)}, eventType, data)

	if target == orders.StatusReadyForPickup {
		go h.announceOrder(orderID)
	}

	response.Success(w, "Order status updated", map[string]any{
		"orderId": orderID,
		"status":  target,
	})
}

// refundOrder settles a refund in one transaction: order status, order payment
// status, and the payment row.
func (h *Handler) refundOrder(w http.ResponseWriter, r *http.Request, orderID int64, currentStatus string) bool {
	ctx := r.Context()
	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("refund begin failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to refund order")
		return false
	}
	defer func() { _ = tx.Rollback(ctx) }()

	moved, err := orders.Transition(ctx, tx, orderID, currentStatus, orders.StatusRefunded, nil)
	if err != nil {
		h.Logger.Error("refund transition failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to refund order")
		return false
	}
	if !moved {
		response.ErrorWithData(w, http.StatusConflict, "STALE_STATE",
			"The order changed state before your update; refresh and retry",
			map[string]any{"expectedStatus": currentStatus})
		return false
	}
	if _, err := orders.SetPaymentStatus(ctx, tx, orderID, orders.PaymentCompleted, orders.PaymentRefunded); err != nil {
		h.Logger.Error("refund payment status failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to refund order")
		return false
	}
	if _, err := tx.Exec(ctx, `
		update payments set status = $2, updated_at = now() where order_id = $1
	`, orderID, orders.PaymentRefunded); err != nil {
		h.Logger.Error("refund payment row failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to refund order")
		return false
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("refund commit failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to refund order")
		return false
	}
	return true
}

// RestaurantOrdersList returns the orders of one restaurant for the dashboard,
// newest first, optionally filtered by status.
func (h *Handler) RestaurantOrdersList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	var restaurantID int64
	if raw := r.URL.Query().Get("restaurantId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			response.ValidationErrors(w, "restaurantId must be a positive integer", nil)
			return
		}
		restaurantID = parsed
	} else {
		staffRoles := []auth.Role{auth.RoleOwner, auth.RoleBranchManager, auth.RoleOrderManager, auth.RoleKitchenStaff}
		bound := principal.RestaurantIDs(staffRoles...)
		if len(bound) != 1 {
			response.ValidationErrors(w, "restaurantId is required", nil)
			return
		}
		restaurantID = bound[0]
	}

	if !auth.Evaluate(principal, auth.OpOrderReadRestaurant, auth.Target{RestaurantID: restaurantID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "You do not have permission to view these orders")
		return
	}

	statusFilter := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	if statusFilter != "" {
		if _, known := knownStatuses[statusFilter]; !known {
			response.ValidationErrors(w, "Unknown status value", nil)
			return
		}
	}
	limit, offset := readPagination(r)

	rows, err := h.DB.Query(ctx, `
		select o.id, o.status, o.payment_method, o.payment_status,
		       o.subtotal, o.delivery_fee, o.platform_fee, o.total, o.restaurant_payout,
		       o.customer_id, u.name, o.branch_id, o.delivery_driver_id,
		       o.special_instructions, o.order_placed_at, o.order_delivered_at
		from orders o
		join branches b on b.id = o.branch_id
		join users u on u.id = o.customer_id
		where b.restaurant_id = $1
		  and ($2 = '' or o.status = $2)
		order by o.order_placed_at desc
		limit $3 offset $4
	`, restaurantID, statusFilter, limit, offset)
	if err != nil {
		h.Logger.Error("restaurant orders query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve orders")
		return
	}
	defer rows.Close()

	list := make([]map[string]any, 0)
	for rows.Next() {
		var (
			id            int64
			status        string
			method        string
			payStatus     string
			subtotal      pgtype.Numeric
			deliveryFee   pgtype.Numeric
			platformFee   pgtype.Numeric
			total         pgtype.Numeric
			payout        pgtype.Numeric
			customerID    int64
			customerName  string
			branchID      int64
			driverID      pgtype.Int8
			instructions  pgtype.Text
			placedAt      time.Time
			deliveredAt   pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &status, &method, &payStatus,
			&subtotal, &deliveryFee, &platformFee, &total, &payout,
			&customerID, &customerName, &branchID, &driverID,
			&instructions, &placedAt, &deliveredAt); err != nil {
			h.Logger.Error("restaurant orders scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve orders")
			return
		}

		entry := map[string]any{
			"orderId":             id,
			"status":              status,
			"paymentMethod":       method,
			"paymentStatus":       payStatus,
			"subtotal":            utils.NumericToFloat64(subtotal),
			"deliveryFee":         utils.NumericToFloat64(deliveryFee),
			"serviceFee":          utils.NumericToFloat64(platformFee),
			"total":               utils.NumericToFloat64(total),
			"restaurantPayout":    utils.NumericToFloat64(payout),
			"customerId":          customerID,
			"customerName":        customerName,
			"branchId":            branchID,
			"specialInstructions": nullableText(instructions),
			"placedAt":            placedAt,
			"deliveredAt":         nullableTime(deliveredAt),
		}
		if driverID.Valid {
			entry["driverId"] = driverID.Int64
		}
		list = append(list, entry)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("restaurant orders rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve orders")
		return
	}

	response.Success(w, "Orders retrieved successfully", map[string]any{
		"restaurantId": restaurantID,
		"orders":       list,
	})
}
