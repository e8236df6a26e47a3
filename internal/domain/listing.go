package domain

import (
	"fmt"
	"time"
)

type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingLocked    ListingStatus = "locked"
	ListingSold      ListingStatus = "sold"
	ListingDelisted  ListingStatus = "delisted"
)

func ParseListingStatus(s string) (ListingStatus, error) {
	switch st := ListingStatus(s); st {
	case ListingAvailable, ListingLocked, ListingSold, ListingDelisted:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown listing status %q", ErrInvalidInput, s)
}

// Terminal reports statuses a listing never leaves.
func (s ListingStatus) Terminal() bool {
	return s == ListingSold || s == ListingDelisted
}

type Listing struct {
	ID            string
	SellerID      string
	Title         string
	PriceCents    int64
	Currency      string
	Status        ListingStatus
	LockExpiresAt *time.Time
	LockedBy      string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ListingFilter struct {
	SellerID      string
	MinPriceCents int64
	MaxPriceCents int64
	Limit         int
}

// LockActive reports whether the listing is locked with an expiry still in the future.
func (l *Listing) LockActive(now time.Time) bool {
	return l.Status == ListingLocked && l.LockExpiresAt != nil && l.LockExpiresAt.After(now)
}

// LockLapsed reports a listing still stored as locked whose expiry has passed.
func (l *Listing) LockLapsed(now time.Time) bool {
	return l.Status == ListingLocked && !l.LockActive(now)
}

// HeldBy reports whether buyerID holds the stored lock, expired or not.
func (l *Listing) HeldBy(buyerID string) bool {
	return l.Status == ListingLocked && buyerID != "" && l.LockedBy == buyerID
}

// EffectiveStatus is the status every reader acts on: a lapsed lock reads as available.
func (l *Listing) EffectiveStatus(now time.Time) ListingStatus {
	if l.LockLapsed(now) {
		return ListingAvailable
	}
	return l.Status
}

// CheckInvariants verifies that a lock expiry is present if and only if the listing is locked.
func (l *Listing) CheckInvariants() error {
	if l.Status == ListingLocked && (l.LockExpiresAt == nil || l.LockedBy == "") {
		return fmt.Errorf("listing %s: locked without expiry or holder", l.ID)
	}
	if l.Status != ListingLocked && (l.LockExpiresAt != nil || l.LockedBy != "") {
		return fmt.Errorf("listing %s: %s with lock fields set", l.ID, l.Status)
	}
	return nil
}

// Lock returns the listing locked by buyerID until now+d. The seller check
// comes first so owners are rejected regardless of the current status.
func (l Listing) Lock(buyerID string, now time.Time, d time.Duration) (Listing, error) {
	if buyerID == l.SellerID {
		return l, fmt.Errorf("%w: listing %s", ErrSelfLockForbidden, l.ID)
	}

	switch l.Status {
	case ListingSold:
		return l, fmt.Errorf("%w: listing %s", ErrConflict, l.ID)
	case ListingDelisted:
		return l, fmt.Errorf("%w: listing %s", ErrGone, l.ID)
	case ListingLocked:
		if l.LockActive(now) {
			return l, fmt.Errorf("%w: listing %s until %s", ErrAlreadyLocked, l.ID, l.LockExpiresAt.Format(time.RFC3339))
		}
	case ListingAvailable:
	default:
		return l, fmt.Errorf("%w: listing %s has unknown status %q", ErrInvalidTransition, l.ID, l.Status)
	}

	expiresAt := now.Add(d)
	next := l
	next.Status = ListingLocked
	next.LockExpiresAt = &expiresAt
	next.LockedBy = buyerID
	next.UpdatedAt = now
	return next, nil
}

// Release returns the listing back to available. The second result is false
// when there was no lock to release.
func (l Listing) Release(now time.Time) (Listing, bool) {
	if l.Status != ListingLocked {
		return l, false
	}
	next := l.clearLock()
	next.Status = ListingAvailable
	next.UpdatedAt = now
	return next, true
}

// Sell moves a listing held by buyerID to sold.
func (l Listing) Sell(buyerID string, now time.Time) (Listing, error) {
	if !l.HeldBy(buyerID) {
		return l, fmt.Errorf("%w: listing %s is %s", ErrListingNotLocked, l.ID, l.Status)
	}
	next := l.clearLock()
	next.Status = ListingSold
	next.UpdatedAt = now
	return next, nil
}

// Delist takes the listing off the market. Already delisted listings are
// returned unchanged with false.
func (l Listing) Delist(sellerID string, now time.Time) (Listing, bool, error) {
	if sellerID != l.SellerID {
		return l, false, fmt.Errorf("%w: only the seller can delist listing %s", ErrForbidden, l.ID)
	}
	switch l.Status {
	case ListingDelisted:
		return l, false, nil
	case ListingSold:
		return l, false, fmt.Errorf("%w: listing %s", ErrConflict, l.ID)
	}
	next := l.clearLock()
	next.Status = ListingDelisted
	next.UpdatedAt = now
	return next, true, nil
}

// Reprice changes the asking price. Orders keep their own snapshot.
func (l Listing) Reprice(sellerID string, priceCents int64, now time.Time) (Listing, error) {
	if sellerID != l.SellerID {
		return l, fmt.Errorf("%w: only the seller can reprice listing %s", ErrForbidden, l.ID)
	}
	if priceCents <= 0 {
		return l, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if l.Status.Terminal() {
		return l, fmt.Errorf("%w: listing %s is %s", ErrConflict, l.ID, l.Status)
	}
	next := l
	next.PriceCents = priceCents
	next.UpdatedAt = now
	return next, nil
}

func (l Listing) clearLock() Listing {
	l.LockExpiresAt = nil
	l.LockedBy = ""
	return l
}
