package domain

import "time"

// Payment provider event types consumed by the webhook ingress.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventChargeRefunded    = "charge.refunded"
)

// WebhookEvent is the ledger record of a processed external event, keyed by
// the provider's event id.
type WebhookEvent struct {
	EventID     string
	EventType   string
	ProcessedAt time.Time
	Metadata    map[string]string
}

// PaymentEvent is a verified provider notification.
type PaymentEvent struct {
	ID        string
	Type      string
	ObjectID  string
	OrderID   string
	ListingID string
	Created   time.Time
	Metadata  map[string]string
}
