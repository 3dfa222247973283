package handlers

import (
	"testing"

	"delixmi-order-services/internal/auth"
	"delixmi-order-services/internal/orders"
)

func TestStaffOperationFor(t *testing.T) {
	cases := []struct {
		name      string
		current   string
		target    string
		op        auth.Operation
		reachable bool
	}{
		{"confirm pending", orders.StatusPending, orders.StatusConfirmed, auth.OpOrderConfirm, true},
		{"start preparing", orders.StatusConfirmed, orders.StatusPreparing, auth.OpOrderStartPreparing, true},
		{"mark ready", orders.StatusPreparing, orders.StatusReadyForPickup, auth.OpOrderMarkReady, true},
		{"cancel confirmed", orders.StatusConfirmed, orders.StatusCancelled, auth.OpOrderCancelRestaurant, true},
		{"cancel preparing", orders.StatusPreparing, orders.StatusCancelled, auth.OpOrderCancelRestaurant, true},
		{"refund delivered", orders.StatusDelivered, orders.StatusRefunded, auth.OpOrderRefund, true},
		// Cancelling a pending order belongs to the customer or to payment
		// rejection, never to staff.
		{"cancel pending", orders.StatusPending, orders.StatusCancelled, "", false},
		// Courier-owned targets have no staff operation at all.
		{"out for delivery", orders.StatusReadyForPickup, orders.StatusOutForDelivery, "", false},
		{"delivered", orders.StatusOutForDelivery, orders.StatusDelivered, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			op, reachable := staffOperationFor(tc.current, tc.target)
			if reachable != tc.reachable {
				t.Fatalf("staffOperationFor(%s, %s) reachable = %v, expected %v", tc.current, tc.target, reachable, tc.reachable)
			}
			if op != tc.op {
				t.Fatalf("staffOperationFor(%s, %s) = %q, expected %q", tc.current, tc.target, op, tc.op)
			}
		})
	}
}
