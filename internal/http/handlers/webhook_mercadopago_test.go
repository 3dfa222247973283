package handlers

import (
	"context"
	"strings"
	"testing"

	"delixmi-order-services/internal/orders"

	"github.com/jackc/pgx/v5/pgconn"
)

// settlementState emulates the payment and order rows the webhook writes to.
// Every update applies its own status guard, so replaying a settlement against
// the same state must leave it untouched.
type settlementState struct {
	paymentStatus      string
	orderStatus        string
	orderPaymentStatus string
	cancelReason       string
	execs              int
}

func (s *settlementState) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execs++
	switch {
	case strings.Contains(sql, "update payments") && strings.Contains(sql, "status <> $2"):
		if s.paymentStatus != args[1].(string) {
			s.paymentStatus = args[1].(string)
			return pgconn.NewCommandTag("UPDATE 1"), nil
		}
	case strings.Contains(sql, "update payments") && strings.Contains(sql, "status = $4"):
		if s.paymentStatus == args[3].(string) {
			s.paymentStatus = args[1].(string)
			return pgconn.NewCommandTag("UPDATE 1"), nil
		}
	case strings.Contains(sql, "payment_status = $2"):
		if s.orderPaymentStatus == args[2].(string) {
			s.orderPaymentStatus = args[1].(string)
			return pgconn.NewCommandTag("UPDATE 1"), nil
		}
	case strings.Contains(sql, "set status = $2"):
		if s.orderStatus == args[2].(string) {
			s.orderStatus = args[1].(string)
			if reason, ok := args[3].(*string); ok && reason != nil {
				s.cancelReason = *reason
			}
			return pgconn.NewCommandTag("UPDATE 1"), nil
		}
	default:
		return pgconn.CommandTag{}, nil
	}
	return pgconn.NewCommandTag("UPDATE 0"), nil
}

func pendingCardOrder() *settlementState {
	return &settlementState{
		paymentStatus:      orders.PaymentPending,
		orderStatus:        orders.StatusPending,
		orderPaymentStatus: orders.PaymentPending,
	}
}

func TestApplyApprovedFirstDelivery(t *testing.T) {
	state := pendingCardOrder()

	changed, confirmed, err := applyApproved(context.Background(), state, 5, 42, "mp-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed || !confirmed {
		t.Fatalf("expected the first delivery to settle, got changed=%v confirmed=%v", changed, confirmed)
	}
	if state.paymentStatus != orders.PaymentCompleted {
		t.Fatalf("payment status = %s", state.paymentStatus)
	}
	if state.orderPaymentStatus != orders.PaymentCompleted {
		t.Fatalf("order payment status = %s", state.orderPaymentStatus)
	}
	if state.orderStatus != orders.StatusConfirmed {
		t.Fatalf("order status = %s", state.orderStatus)
	}
	if state.execs != 3 {
		t.Fatalf("expected 3 writes, got %d", state.execs)
	}
}

func TestApplyApprovedReplayIsNoOp(t *testing.T) {
	state := pendingCardOrder()
	if _, _, err := applyApproved(context.Background(), state, 5, 42, "mp-123"); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	writesAfterFirst := state.execs

	changed, confirmed, err := applyApproved(context.Background(), state, 5, 42, "mp-123")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if changed || confirmed {
		t.Fatalf("replay must short-circuit, got changed=%v confirmed=%v", changed, confirmed)
	}
	if state.execs != writesAfterFirst+1 {
		t.Fatalf("replay must stop after the guarded payment update, got %d extra writes", state.execs-writesAfterFirst)
	}
	if state.orderStatus != orders.StatusConfirmed || state.paymentStatus != orders.PaymentCompleted {
		t.Fatalf("replay altered settled state: order=%s payment=%s", state.orderStatus, state.paymentStatus)
	}
}

func TestApplyRejectedCancelsPendingOrder(t *testing.T) {
	state := pendingCardOrder()

	changed, cancelled, err := applyRejected(context.Background(), state, 5, 42, "mp-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed || !cancelled {
		t.Fatalf("expected rejection to cancel, got changed=%v cancelled=%v", changed, cancelled)
	}
	if state.paymentStatus != orders.PaymentFailed {
		t.Fatalf("payment status = %s", state.paymentStatus)
	}
	if state.orderStatus != orders.StatusCancelled {
		t.Fatalf("order status = %s", state.orderStatus)
	}
	if state.cancelReason != rejectionReason {
		t.Fatalf("cancel reason = %q", state.cancelReason)
	}
}

func TestApplyRejectedReplayIsNoOp(t *testing.T) {
	state := pendingCardOrder()
	if _, _, err := applyRejected(context.Background(), state, 5, 42, "mp-123"); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	writesAfterFirst := state.execs

	changed, cancelled, err := applyRejected(context.Background(), state, 5, 42, "mp-123")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if changed || cancelled {
		t.Fatalf("replay must short-circuit, got changed=%v cancelled=%v", changed, cancelled)
	}
	if state.execs != writesAfterFirst+1 {
		t.Fatalf("replay must stop after the guarded payment update, got %d extra writes", state.execs-writesAfterFirst)
	}
}

func TestApplyRejectedAfterApprovalDoesNotRegress(t *testing.T) {
	state := pendingCardOrder()
	if _, _, err := applyApproved(context.Background(), state, 5, 42, "mp-123"); err != nil {
		t.Fatalf("approval: %v", err)
	}

	changed, cancelled, err := applyRejected(context.Background(), state, 5, 42, "mp-123")
	if err != nil {
		t.Fatalf("late rejection: %v", err)
	}
	if changed || cancelled {
		t.Fatal("a rejection after approval must not touch the settled payment")
	}
	if state.orderStatus != orders.StatusConfirmed || state.paymentStatus != orders.PaymentCompleted {
		t.Fatalf("settled state regressed: order=%s payment=%s", state.orderStatus, state.paymentStatus)
	}
}
