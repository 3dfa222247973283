package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"delixmi-order-services/internal/auth"
	"delixmi-order-services/internal/dispatch"
	"delixmi-order-services/internal/events"
	"delixmi-order-services/internal/orders"
	"delixmi-order-services/internal/utils"
	"delixmi-order-services/internal/ws"
	"delixmi-order-services/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var driverStatuses = map[string]struct{}{
	"online":      {},
	"offline":     {},
	"busy":        {},
	"unavailable": {},
}

// DriverAvailableOrders lists the ready, unassigned orders the courier could
// claim right now.
func (h *Handler) DriverAvailableOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpOrderClaim, auth.Target{}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Driver access required")
		return
	}

	limit, offset := readPagination(r)
	snaps, err := h.Dispatch.AvailableOrders(ctx, principal.UserID, limit, offset)
	if err != nil {
		h.Logger.Error("available orders query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve orders")
		return
	}

	response.Success(w, "Available orders retrieved", map[string]any{"orders": snaps})
}

// DriverAcceptOrder is the claim endpoint. A single conditional update decides
// the winner; every loser observes zero affected rows and gets a 409.
func (h *Handler) DriverAcceptOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpOrderClaim, auth.Target{}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Driver access required")
		return
	}

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.ValidationErrors(w, "Valid orderId is required", nil)
		return
	}

	snap, err := h.Dispatch.Snapshot(ctx, orderID)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
			return
		}
		h.Logger.Error("claim snapshot failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to accept order")
		return
	}

	// The eligibility set is captured before the claim so losers can be told
	// the order is gone. Claiming itself re-checks eligibility in SQL.
	candidates, err := h.Dispatch.EligibleDrivers(ctx, snap)
	if err != nil {
		h.Logger.Error("claim eligibility failed", zapError(err))
		candidates = nil
	}

	won, err := h.Dispatch.Claim(ctx, orderID, principal.UserID)
	if err != nil {
		h.Logger.Error("claim failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to accept order")
		return
	}
	if !won {
		response.Error(w, http.StatusConflict, "ORDER_ALREADY_TAKEN", "This order was already taken or is no longer claimable")
		return
	}

	var customerID int64
	if err := h.DB.QueryRow(ctx, `select customer_id from orders where id = $1`, orderID).Scan(&customerID); err != nil {
		h.Logger.Error("claim customer lookup failed", zapError(err))
	}

	h.Events.Emit(ctx, []string{ws.RestaurantRoom(snap.RestaurantID), ws.UserRoom(customerID)}, events.TypeOrderClaimed, map[string]any{
		"orderId":  orderID,
		"driverId": principal.UserID,
		"status":   orders.StatusOutForDelivery,
	})

	candidateIDs := make([]int64, 0, len(candidates))
	for _, candidate := range candidates {
		candidateIDs = append(candidateIDs, candidate.UserID)
	}
	h.withdrawOrder(ctx, orderID, principal.UserID, candidateIDs)

	response.Success(w, "Order accepted", map[string]any{
		"orderId": orderID,
		"status":  orders.StatusOutForDelivery,
		"order":   snap,
	})
}

// DriverCompleteOrder marks the assigned courier's delivery as done. Cash
// orders settle their payment inside the same write.
func (h *Handler) DriverCompleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpOrderComplete, auth.Target{DriverID: principal.UserID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Driver access required")
		return
	}

	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.ValidationErrors(w, "Valid orderId is required", nil)
		return
	}

	done, err := h.Dispatch.MarkDelivered(ctx, orderID, principal.UserID)
	if err != nil {
		h.Logger.Error("mark delivered failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to complete order")
		return
	}
	if !done {
		response.Error(w, http.StatusConflict, "NOT_ASSIGNED", "This order is not out for delivery under your name")
		return
	}

	var (
		customerID    int64
		restaurantID  int64
		paymentMethod string
	)
	if err := h.DB.QueryRow(ctx, `
		select o.customer_id, b.restaurant_id, o.payment_method
		from orders o
		join branches b on b.id = o.branch_id
		where o.id = $1
	`, orderID).Scan(&customerID, &restaurantID, &paymentMethod); err != nil {
		h.Logger.Error("delivered order lookup failed", zapError(err))
		response.Success(w, "Order delivered", map[string]any{"orderId": orderID, "status": orders.StatusDelivered})
		return
	}

	rooms := []string{ws.RestaurantRoom(restaurantID), ws.UserRoom(customerID)}
	h.Events.Emit(ctx, rooms, events.TypeStatusChanged, map[string]any{
		"orderId":  orderID,
		"status":   orders.StatusDelivered,
		"previous": orders.StatusOutForDelivery,
	})
	if paymentMethod == orders.MethodCash {
		h.Events.Emit(ctx, []string{ws.RestaurantRoom(restaurantID)}, events.TypePaymentReceived, map[string]any{
			"orderId":       orderID,
			"paymentMethod": orders.MethodCash,
		})
	}

	response.Success(w, "Order delivered", map[string]any{"orderId": orderID, "status": orders.StatusDelivered})
}

type driverStatusRequest struct {
	Status string `json:"status"`
}

// DriverSetStatus flips the courier's availability; it never touches orders
// already assigned.
func (h *Handler) DriverSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpDriverSelf, auth.Target{DriverID: principal.UserID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Driver access required")
		return
	}

	var body driverStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.ValidationErrors(w, "Invalid request body", nil)
		return
	}
	status := strings.ToLower(strings.TrimSpace(body.Status))
	if _, known := driverStatuses[status]; !known {
		response.ValidationErrors(w, "status must be one of online, offline, busy, unavailable", nil)
		return
	}

	if err := h.Dispatch.SetDriverStatus(ctx, principal.UserID, status); err != nil {
		if errors.Is(err, dispatch.ErrDriverProfileNotFound) {
			response.Error(w, http.StatusNotFound, "DRIVER_PROFILE_NOT_FOUND", "Driver profile not found")
			return
		}
		h.Logger.Error("driver status update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update status")
		return
	}

	response.Success(w, "Driver status updated", map[string]any{"status": status})
}

type driverLocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *Handler) DriverUpdateLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpDriverSelf, auth.Target{DriverID: principal.UserID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Driver access required")
		return
	}

	var body driverLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Latitude == nil || body.Longitude == nil {
		response.ValidationErrors(w, "latitude and longitude are required", nil)
		return
	}
	lat, lng := *body.Latitude, *body.Longitude
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		response.ValidationErrors(w, "latitude or longitude out of range", nil)
		return
	}

	if err := h.Dispatch.UpdateDriverLocation(ctx, principal.UserID, lat, lng); err != nil {
		if errors.Is(err, dispatch.ErrDriverProfileNotFound) {
			response.Error(w, http.StatusNotFound, "DRIVER_PROFILE_NOT_FOUND", "Driver profile not found")
			return
		}
		h.Logger.Error("driver location update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update location")
		return
	}

	response.Success(w, "Location updated", map[string]any{"latitude": lat, "longitude": lng})
}

// DriverCurrentOrder returns the courier's in-flight delivery, if any.
func (h *Handler) DriverCurrentOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !auth.Evaluate(principal, auth.OpDriverSelf, auth.Target{DriverID: principal.UserID}) {
		response.Error(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Driver access required")
		return
	}

	var (
		orderID      int64
		restaurantID int64
		restName     string
		pickupLat    float64
		pickupLng    float64
		dropLat      float64
		dropLng      float64
		streetLine   pgtype.Text
		total        pgtype.Numeric
		method       string
	)
	err := h.DB.QueryRow(ctx, `
		select o.id, b.restaurant_id, r.name,
		       b.latitude, b.longitude, a.latitude, a.longitude, a.street_line,
		       o.total, o.payment_method
		from orders o
		join branches b on b.id = o.branch_id
		join restaurants r on r.id = b.restaurant_id
		join addresses a on a.id = o.address_id
		where o.delivery_driver_id = $1 and o.status = $2
		order by o.order_placed_at desc
		limit 1
	`, principal.UserID, orders.StatusOutForDelivery).Scan(
		&orderID, &restaurantID, &restName,
		&pickupLat, &pickupLng, &dropLat, &dropLng, &streetLine,
		&total, &method,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			response.Success(w, "No active delivery", map[string]any{"order": nil})
			return
		}
		h.Logger.Error("current order query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to retrieve order")
		return
	}

	response.Success(w, "Current delivery retrieved", map[string]any{
		"order": map[string]any{
			"orderId":         orderID,
			"restaurantId":    restaurantID,
			"restaurantName":  restName,
			"pickupLatitude":  pickupLat,
			"pickupLongitude": pickupLng,
			"dropLatitude":    dropLat,
			"dropLongitude":   dropLng,
			"dropAddress":     nullableText(streetLine),
			"total":           utils.NumericToFloat64(total),
			"paymentMethod":   method,
		},
	})
}
