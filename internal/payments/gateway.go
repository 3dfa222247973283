package payments

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway is the payment provider surface the coordinator consumes: create a
// hosted checkout preference, and resolve a payment referenced by a webhook.
type Gateway interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (Preference, error)
	GetPayment(ctx context.Context, providerPaymentID string) (PaymentInfo, error)
}

type PreferenceRequest struct {
	OrderID           int64
	Title             string
	Total             decimal.Decimal
	ExternalReference string
	NotificationURL   string
}

type Preference struct {
	ID          string
	RedirectURL string
}

type PaymentInfo struct {
	ID                string
	Status            string
	ExternalReference string
}

// Normalized webhook event types.
const (
	EventApproved = "approved"
	EventRejected = "rejected"
	EventPending  = "pending"
	EventUnknown  = "unknown"
)

// NormalizeStatus collapses provider status vocabulary into the three events
// the coordinator acts on.
func NormalizeStatus(providerStatus string) string {
	switch providerStatus {
	case "approved", "accredited":
		return EventApproved
	case "rejected", "cancelled", "refused":
		return EventRejected
	case "pending", "in_process", "in_mediation", "authorized":
		return EventPending
	default:
		return EventUnknown
	}
}
