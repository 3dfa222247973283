package orders

import "testing"

func TestAllowedTransitions(t *testing.T) {
	cases := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"payment approval confirms", StatusPending, StatusConfirmed, true},
		{"customer cancel before confirm", StatusPending, StatusCancelled, true},
		{"kitchen accepts", StatusConfirmed, StatusPreparing, true},
		{"kitchen marks ready", StatusPreparing, StatusReadyForPickup, true},
		{"courier claims", StatusReadyForPickup, StatusOutForDelivery, true},
		{"courier delivers", StatusOutForDelivery, StatusDelivered, true},
		{"restaurant cancels while confirmed", StatusConfirmed, StatusCancelled, true},
		{"restaurant cancels while preparing", StatusPreparing, StatusCancelled, true},
		{"refund after delivery", StatusDelivered, StatusRefunded, true},

		{"no skipping straight to delivered", StatusPending, StatusDelivered, false},
		{"no cancel after pickup", StatusOutForDelivery, StatusCancelled, false},
		{"no cancel once ready", StatusReadyForPickup, StatusCancelled, false},
		{"no revival of cancelled orders", StatusCancelled, StatusConfirmed, false},
		{"no double delivery", StatusDelivered, StatusDelivered, false},
		{"no refund of refunds", StatusRefunded, StatusDelivered, false},
		{"no backwards move", StatusPreparing, StatusConfirmed, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsValidTransition(tc.from, tc.to); got != tc.allowed {
				t.Fatalf("IsValidTransition(%s, %s) = %v, expected %v", tc.from, tc.to, got, tc.allowed)
			}
		})
	}
}

func TestTerminalStates(t *testing.T) {
	for _, status := range []string{StatusDelivered, StatusCancelled, StatusRefunded} {
		if status == StatusDelivered {
			// delivered still allows the refund transition
			if IsTerminal(status) {
				t.Fatalf("delivered should allow refund")
			}
			continue
		}
		if !IsTerminal(status) {
			t.Fatalf("expected %s to be terminal", status)
		}
	}
}
