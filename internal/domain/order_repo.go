package domain

import (
	"context"
	"time"
)

type ListingRepository interface {
	Create(ctx context.Context, listing *Listing) error
	GetByID(ctx context.Context, listingID string) (*Listing, error)
	// CompareAndSwap writes listing only if the stored version still equals
	// expectedVersion, and bumps listing.Version. Otherwise ErrStaleVersion.
	CompareAndSwap(ctx context.Context, listing *Listing, expectedVersion int64) error
	FindExpiredLocks(ctx context.Context, now time.Time, limit int) ([]*Listing, error)
	List(ctx context.Context, statuses []ListingStatus, filter ListingFilter) ([]*Listing, error)
}

type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, orderID string) (*Order, error)
	GetBySessionRef(ctx context.Context, sessionRef string) (*Order, error)
	FindActiveByListingAndBuyer(ctx context.Context, listingID, buyerID string) (*Order, error)
	FindActiveByListing(ctx context.Context, listingID string) ([]*Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*Order, error)
	CompareAndSwap(ctx context.Context, order *Order, expectedVersion int64) error
	AppendTransition(ctx context.Context, transition OrderTransition) error
	ListTransitions(ctx context.Context, orderID string) ([]OrderTransition, error)
}

type EventLedgerRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	// Insert fails with ErrDuplicateKey when the event id is already recorded.
	Insert(ctx context.Context, event *WebhookEvent) error
	// DeleteOlderThan removes at most limit records processed before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}
