package orders

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Order lifecycle states.
const (
	StatusPending        = "pending"
	StatusConfirmed      = "confirmed"
	StatusPreparing      = "preparing"
	StatusReadyForPickup = "ready_for_pickup"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
	StatusCancelled      = "cancelled"
	StatusRefunded       = "refunded"
)

// Payment states mirrored on the order row.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

const (
	MethodMercadoPago = "mercadopago"
	MethodCash        = "cash"
)

var allowedTransitions = map[string][]string{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup: {StatusOutForDelivery},
	StatusOutForDelivery: {StatusDelivered},
	StatusDelivered:      {StatusRefunded},
	StatusCancelled:      {},
	StatusRefunded:       {},
}

func IsValidTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminal(status string) bool {
	return len(allowedTransitions[status]) == 0
}

// Querier lets transitions run on a pool or inside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Transition performs the conditional status update that serializes the order
// lifecycle: the write succeeds only if the row still holds the expected
// status. A false return means another actor won the race (stale state).
func Transition(ctx context.Context, q Querier, orderID int64, from, to string, reason *string) (bool, error) {
	tag, err := q.Exec(ctx, `
		update orders
		set status = $2,
			updated_at = now(),
			order_delivered_at = case when $2 = 'delivered' then now() else order_delivered_at end,
			cancelled_at = case when $2 = 'cancelled' then now() else cancelled_at end,
			cancel_reason = case when $2 = 'cancelled' then coalesce($4, cancel_reason) else cancel_reason end
		where id = $1 and status = $3
	`, orderID, to, from, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetPaymentStatus mirrors the payment outcome on the order row, again
// conditionally so webhook replays cannot regress a completed payment.
func SetPaymentStatus(ctx context.Context, q Querier, orderID int64, from, to string) (bool, error) {
	tag, err := q.Exec(ctx, `
		update orders
		set payment_status = $2, updated_at = now()
		where id = $1 and payment_status = $3
	`, orderID, to, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
