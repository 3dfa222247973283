package payments

import "testing"

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		name     string
		provider string
		expected string
	}{
		{"approved", "approved", EventApproved},
		{"accredited maps to approved", "accredited", EventApproved},
		{"rejected", "rejected", EventRejected},
		{"cancelled maps to rejected", "cancelled", EventRejected},
		{"pending", "pending", EventPending},
		{"in_process maps to pending", "in_process", EventPending},
		{"authorized maps to pending", "authorized", EventPending},
		{"anything else is unknown", "charged_back", EventUnknown},
		{"empty is unknown", "", EventUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeStatus(tc.provider); got != tc.expected {
				t.Fatalf("NormalizeStatus(%q) = %q, expected %q", tc.provider, got, tc.expected)
			}
		})
	}
}
