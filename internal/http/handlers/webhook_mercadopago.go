package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"delixmi-order-services/internal/events"
	"delixmi-order-services/internal/orders"
	"delixmi-order-services/internal/payments"
	"delixmi-order-services/internal/ws"
	"delixmi-order-services/pkg/response"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type webhookBody struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// MercadoPagoWebhook consumes asynchronous payment callbacks. The handler is
// idempotent: the payment is resolved from the provider, matched by external
// reference (or provider payment id), and every state write is conditional, so
// replays ack without touching the order. Only a malformed payload is rejected;
// unknown or duplicate events ack with 200 so the provider stops retrying.
func (h *Handler) MercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unreadable payload")
		return
	}

	paymentID := strings.TrimSpace(r.URL.Query().Get("data.id"))
	if paymentID == "" {
		paymentID = strings.TrimSpace(r.URL.Query().Get("id"))
	}

	if len(body) > 0 {
		var decoded webhookBody
		if err := json.Unmarshal(body, &decoded); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed payload")
			return
		}
		if decoded.Type != "" && decoded.Type != "payment" {
			response.Success(w, "Event ignored", nil)
			return
		}
		if id := decoded.Data.ID.String(); id != "" {
			paymentID = id
		}
	}
	if paymentID == "" {
		response.Success(w, "Event ignored", nil)
		return
	}

	gatewayCtx, cancel := context.WithTimeout(r.Context(), h.Config.ExternalCallTimeout)
	defer cancel()
	info, err := h.Gateway.GetPayment(gatewayCtx, paymentID)
	if err != nil {
		// Non-2xx makes the provider retry once the gateway recovers.
		h.Logger.Warn("webhook payment lookup failed", zap.String("paymentId", paymentID), zapError(err))
		response.Error(w, http.StatusBadGateway, "PAYMENT_GATEWAY_ERROR", "Payment lookup failed")
		return
	}

	ctx := r.Context()
	var (
		paymentRowID  int64
		orderID       int64
		customerID    int64
		restaurantID  int64
		paymentStatus string
		orderStatus   string
	)
	err = h.DB.QueryRow(ctx, `
		select p.id, p.order_id, o.customer_id, b.restaurant_id, p.status, o.status
		from payments p
		join orders o on o.id = p.order_id
		join branches b on b.id = o.branch_id
		where p.external_reference = $1 or p.provider_payment_id = $2
	`, info.ExternalReference, info.ID).Scan(&paymentRowID, &orderID, &customerID, &restaurantID, &paymentStatus, &orderStatus)
	if err != nil {
		if err == pgx.ErrNoRows {
			h.Logger.Warn("webhook for unknown payment",
				zap.String("paymentId", info.ID), zap.String("externalReference", info.ExternalReference))
			response.Success(w, "Event acknowledged", nil)
			return
		}
		h.Logger.Error("webhook payment query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process event")
		return
	}

	switch payments.NormalizeStatus(info.Status) {
	case payments.EventApproved:
		h.settleApproved(ctx, paymentRowID, orderID, customerID, restaurantID, info.ID)
	case payments.EventRejected:
		h.settleRejected(ctx, paymentRowID, orderID, customerID, restaurantID, info.ID)
	case payments.EventPending:
		// Nothing to advance yet.
	default:
		h.Logger.Info("webhook with unhandled status",
			zap.String("paymentId", info.ID), zap.String("providerStatus", info.Status))
	}

	response.Success(w, "Event acknowledged", nil)
}

// applyApproved performs the conditional writes for an approved payment.
// changed=false means a replay: the first delivery already settled everything
// and no further write runs.
func applyApproved(ctx context.Context, q orders.Querier, paymentRowID, orderID int64, providerPaymentID string) (changed bool, confirmed bool, err error) {
	tag, err := q.Exec(ctx, `
		update payments
		set status = $2, provider_payment_id = $3, paid_at = coalesce(paid_at, now()), updated_at = now()
		where id = $1 and status <> $2
	`, paymentRowID, orders.PaymentCompleted, providerPaymentID)
	if err != nil {
		return false, false, err
	}
	if tag.RowsAffected() == 0 {
		return false, false, nil
	}

	if _, err := orders.SetPaymentStatus(ctx, q, orderID, orders.PaymentPending, orders.PaymentCompleted); err != nil {
		return true, false, err
	}
	confirmed, err = orders.Transition(ctx, q, orderID, orders.StatusPending, orders.StatusConfirmed, nil)
	if err != nil {
		return true, false, err
	}
	return true, confirmed, nil
}

func (h *Handler) settleApproved(ctx context.Context, paymentRowID, orderID, customerID, restaurantID int64, providerPaymentID string) {
	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("webhook begin failed", zapError(err))
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	changed, confirmed, err := applyApproved(ctx, tx, paymentRowID, orderID, providerPaymentID)
	if err != nil {
		h.Logger.Error("webhook settle failed", zapError(err))
		return
	}
	if !changed {
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("webhook commit failed", zapError(err))
		return
	}

	h.Events.Emit(ctx, []string{ws.UserRoom(customerID)}, events.TypePaymentReceived, map[string]any{
		"orderId": orderID,
	})
	if confirmed {
		h.Events.Emit(ctx, []string{ws.RestaurantRoom(restaurantID), ws.UserRoom(customerID)}, events.TypeStatusChanged, map[string]any{
			"orderId":  orderID,
			"status":   orders.StatusConfirmed,
			"previous": orders.StatusPending,
		})
		h.Events.Emit(ctx, []string{ws.RestaurantRoom(restaurantID)}, events.TypeNewOrderPending, map[string]any{
			"orderId": orderID,
			"status":  orders.StatusConfirmed,
		})
	}
}

const rejectionReason = "payment rejected by provider"

// applyRejected mirrors applyApproved for the failure path: the payment flips
// to failed once, and the order is cancelled only while still pending.
func applyRejected(ctx context.Context, q orders.Querier, paymentRowID, orderID int64, providerPaymentID string) (changed bool, cancelled bool, err error) {
	tag, err := q.Exec(ctx, `
		update payments
		set status = $2, provider_payment_id = $3, updated_at = now()
		where id = $1 and status = $4
	`, paymentRowID, orders.PaymentFailed, providerPaymentID, orders.PaymentPending)
	if err != nil {
		return false, false, err
	}
	if tag.RowsAffected() == 0 {
		return false, false, nil
	}

	if _, err := orders.SetPaymentStatus(ctx, q, orderID, orders.PaymentPending, orders.PaymentFailed); err != nil {
		return true, false, err
	}
	reason := rejectionReason
	cancelled, err = orders.Transition(ctx, q, orderID, orders.StatusPending, orders.StatusCancelled, &reason)
	if err != nil {
		return true, false, err
	}
	return true, cancelled, nil
}

func (h *Handler) settleRejected(ctx context.Context, paymentRowID, orderID, customerID, restaurantID int64, providerPaymentID string) {
	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Logger.Error("webhook begin failed", zapError(err))
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	changed, cancelled, err := applyRejected(ctx, tx, paymentRowID, orderID, providerPaymentID)
	if err != nil {
		h.Logger.Error("webhook settle failed", zapError(err))
		return
	}
	if !changed {
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Logger.Error("webhook commit failed", zapError(err))
		return
	}

	h.Events.Emit(ctx, []string{ws.UserRoom(customerID)}, events.TypePaymentFailed, map[string]any{
		"orderId": orderID,
	})
	if cancelled {
		h.Events.Emit(ctx, []string{ws.RestaurantRoom(restaurantID), ws.UserRoom(customerID)}, events.TypeOrderCancelled, map[string]any{
			"orderId": orderID,
			"reason":  rejectionReason,
		})
	}
}
