package domain

import (
	"context"
	"time"
)

// Lifecycle event types published after a transition commits.
const (
	EventListingLocked          = "listing.locked"
	EventListingReleased        = "listing.released"
	EventOrderCreated           = "order.created"
	EventOrderPaymentProcessing = "order.payment_processing"
	EventOrderPaid              = "order.paid"
	EventOrderExpired           = "order.expired"
	EventOrderCancelled         = "order.cancelled"
	EventOrderRefunded          = "order.refunded"
)

type MarketEvent struct {
	Type       string     `json:"type"`
	ListingID  string     `json:"listing_id"`
	OrderID    string     `json:"order_id,omitempty"`
	BuyerID    string     `json:"buyer_id,omitempty"`
	SellerID   string     `json:"seller_id,omitempty"`
	Status     string     `json:"status"`
	PriceCents int64      `json:"price_cents,omitempty"`
	Currency   string     `json:"currency,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

type Message struct {
	Key   []byte
	Value []byte
	// Ack marks the message consumed on the broker. Nil when the transport
	// has nothing to acknowledge. Unacked messages are redelivered.
	Ack func(ctx context.Context) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event MarketEvent) error
}

type SubscriberPort interface {
	Subscribe(ctx context.Context, topic, groupID string) (<-chan Message, error)
}

func OrderEvent(eventType string, o *Order, now time.Time) MarketEvent {
	return MarketEvent{
		Type:       eventType,
		ListingID:  o.ListingID,
		OrderID:    o.ID,
		BuyerID:    o.BuyerID,
		SellerID:   o.SellerID,
		Status:     string(o.Status),
		PriceCents: o.PriceCents,
		Currency:   o.Currency,
		OccurredAt: now,
	}
}

func ListingEvent(eventType string, l *Listing, now time.Time) MarketEvent {
	return MarketEvent{
		Type:       eventType,
		ListingID:  l.ID,
		BuyerID:    l.LockedBy,
		SellerID:   l.SellerID,
		Status:     string(l.Status),
		PriceCents: l.PriceCents,
		Currency:   l.Currency,
		ExpiresAt:  l.LockExpiresAt,
		OccurredAt: now,
	}
}
