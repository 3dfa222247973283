package handlers

import (
	"encoding/json"
	"net/http"
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

// CustomerOrdersList returns the caller's own orders, newest first.
func (h *Handler) CustomerOrdersList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpOrderReadOwn, auth.Target{CustomerID: principal.UserID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Customer access required")
		return
	}

	limit, offset := readPagination(r)
	rows, err := h.DB.Query(ctx, `
		select o.id, o.status, o.payment_method, o.payment_status,
		       o.subtotal, o.delivery_fee, o.platform_fee, o.total,
		       r.id, r.name, o.order_placed_at, o.order_delivered_at
		from orders o
		join branches b on b.id = o.branch_id
		join restaurants r on r.id = b.restaurant_id
		where o.customer_id = $1
		order by o.order_placed_at desc
		limit $2 offset $3
	`, principal.UserID, limit, offset)
	if err != nil {
		h.Logger.Error("customer orders query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve orders")
		return
	}
	defer rows.Close()

	list := make([]map[string]any, 0)
	for rows.Next() {
		var (
			id             int64
			status         string
			method         string
			payStatus      string
			subtotal       pgtype.Numeric
			deliveryFee    pgtype.Numeric
			platformFee    pgtype.Numeric
			total          pgtype.Numeric
			restaurantID   int64
			restaurantName string
			placedAt       time.Time
			deliveredAt    pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &status, &method, &payStatus,
			&subtotal, &deliveryFee, &platformFee, &total,
			&restaurantID, &restaurantName, &placedAt, &deliveredAt); err != nil {
			h.Logger.Error("customer orders scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve orders")
			return
		}
		list = append(list, map[string]any{
			"orderId":        id,
			"status":         status,
			"paymentMethod":  method,
			"paymentStatus":  payStatus,
			"subtotal":       utils.NumericToFloat64(subtotal),
			"deliveryFee":    utils.NumericToFloat64(deliveryFee),
			"serviceFee":     utils.NumericToFloat64(platformFee),
			"total":          utils.NumericToFloat64(total),
			"restaurantId":   restaurantID,
			"restaurantName": restaurantName,
			"placedAt":       placedAt,
			"deliveredAt":    nullableTime(deliveredAt),
		})
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error("customer orders rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve orders")
		return
	}

	response.Success(w, "Orders retrieved successfully", map[string]any{"orders": list})
}

// CustomerOrderDetail returns one of the caller's orders with its lines and
// the modifier snapshots taken at assembly time. Foreign orders answer 404.
func (h *Handler) CustomerOrderDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpOrderReadOwn, auth.Target{CustomerID: principal.UserID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Customer access required")
		return
	}

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.ValidationErrors(w, "Valid orderId is required", nil)
		return
	}

	var (
		status         string
		method         string
		payStatus      string
		subtotal       pgtype.Numeric
		deliveryFee    pgtype.Numeric
		platformFee    pgtype.Numeric
		total          pgtype.Numeric
		restaurantID   int64
		restaurantName string
		instructions   pgtype.Text
		cancelReason   pgtype.Text
		placedAt       time.Time
		deliveredAt    pgtype.Timestamptz
	)
	err = h.DB.QueryRow(ctx, `
		select o.status, o.payment_method, o.payment_status,
		       o.subtotal, o.delivery_fee, o.platform_fee, o.total,
		       r.id, r.name, o.special_instructions, o.cancel_reason,
		       o.order_placed_at, o.order_delivered_at
		from orders o
		join branches b on b.id = o.branch_id
		join restaurants r on r.id = b.restaurant_id
		where o.id = $1 and o.customer_id = $2
	`, orderID, principal.UserID).Scan(&status, &method, &payStatus,
		&subtotal, &deliveryFee, &platformFee, &total,
		&restaurantID, &restaurantName, &instructions, &cancelReason,
		&placedAt, &deliveredAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
			return
		}
		h.Logger.Error("customer order lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve order")
		return
	}

	itemRows, err := h.DB.Query(ctx, `
		select oi.id, oi.product_id, oi.product_name, oi.quantity, oi.price_per_unit
		from order_items oi
		where oi.order_id = $1
		order by oi.id
	`, orderID)
	if err != nil {
		h.Logger.Error("customer order items query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve order")
		return
	}
	defer itemRows.Close()

	type itemView struct {
		ID           int64            `json:"itemId"`
		ProductID    int64            `json:"productId"`
		ProductName  string           `json:"productName"`
		Quantity     int32            `json:"quantity"`
		PricePerUnit float64          `json:"pricePerUnit"`
		Modifiers    []map[string]any `json:"modifiers"`
	}
	items := make([]*itemView, 0)
	byID := make(map[int64]*itemView)
	itemIDs := make([]int64, 0)
	for itemRows.Next() {
		var (
			item  itemView
			price pgtype.Numeric
		)
		if err := itemRows.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.Quantity, &price); err != nil {
			h.Logger.Error("customer order items scan failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve order")
			return
		}
		item.PricePerUnit = utils.NumericToFloat64(price)
		item.Modifiers = make([]map[string]any, 0)
		copied := item
		items = append(items, &copied)
		byID[copied.ID] = &copied
		itemIDs = append(itemIDs, copied.ID)
	}
	if err := itemRows.Err(); err != nil {
		h.Logger.Error("customer order items rows failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve order")
		return
	}

	if len(itemIDs) > 0 {
		modRows, err := h.DB.Query(ctx, `
			select order_item_id, option_name, price_delta
			from order_item_modifiers
			where order_item_id = any($1)
			order by order_item_id, id
		`, itemIDs)
		if err != nil {
			h.Logger.Error("customer order modifiers query failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve order")
			return
		}
		defer modRows.Close()
		for modRows.Next() {
			var (
				itemID     int64
				optionName string
				priceDelta pgtype.Numeric
			)
			if err := modRows.Scan(&itemID, &optionName, &priceDelta); err != nil {
				h.Logger.Error("customer order modifiers scan failed", zapError(err))
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve order")
				return
			}
			if item := byID[itemID]; item != nil {
				item.Modifiers = append(item.Modifiers, map[string]any{
					"name":       optionName,
					"priceDelta": utils.NumericToFloat64(priceDelta),
				})
			}
		}
		if err := modRows.Err(); err != nil {
			h.Logger.Error("customer order modifiers rows failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve order")
			return
		}
	}

	response.Success(w, "Order retrieved successfully", map[string]any{
		"orderId":             orderID,
		"status":              status,
		"paymentMethod":       method,
		"paymentStatus":       payStatus,
		"subtotal":            utils.NumericToFloat64(subtotal),
		"deliveryFee":         utils.NumericToFloat64(deliveryFee),
		"serviceFee":          utils.NumericToFloat64(platformFee),
		"total":               utils.NumericToFloat64(total),
		"restaurantId":        restaurantID,
		"restaurantName":      restaurantName,
		"specialInstructions": nullableText(instructions),
		"cancelReason":        nullableText(cancelReason),
		"placedAt":            placedAt,
		"deliveredAt":         nullableTime(deliveredAt),
		"items":               items,
	})
}

type customerCancelRequest struct {
	Reason string `json:"reason"`
}

// CustomerOrderCancel lets the customer withdraw an order that the restaurant
// has not yet confirmed. Anything past pending answers STALE_STATE.
func (h *Handler) CustomerOrderCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpOrderCancelOwn, auth.Target{CustomerID: principal.UserID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Customer access required")
		return
	}

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.ValidationErrors(w, "Valid orderId is required", nil)
		return
	}

	var body customerCancelRequest
	_ = json.NewDecoder(r.Body).Decode(&body)
	reason := strings.TrimSpace(body.Reason)
	if reason == "" {
		reason = "cancelled by customer"
	}

	var restaurantID int64
	err = h.DB.QueryRow(ctx, `
		select b.restaurant_id
		from orders o
		join branches b on b.id = o.branch_id
		where o.id = $1 and o.customer_id = $2
	`, orderID, principal.UserID).Scan(&restaurantID)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
			return
		}
		h.Logger.Error("customer cancel lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to cancel order")
		return
	}

	cancelled, err := orders.Transition(ctx, h.DB, orderID, orders.StatusPending, orders.StatusCancelled, &reason)
	if err != nil {
		h.Logger.Error("customer cancel transition failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to cancel order")
		return
	}
	if !cancelled {
		response.Error(w, http.StatusConflict, "STALE_STATE", "The order can no longer be cancelled")
		return
	}

	h.Events.Emit(ctx, []string{ws.RestaurantRoom(restaurantID), ws.UserRoom(principal.UserID)}, events.TypeOrderCancelled, map[string]any{
		"orderId": orderID,
		"reason":  reason,
	})

	response.Success(w, "Order cancelled", map[string]any{"orderId": orderID, "status": orders.StatusCancelled})
}
