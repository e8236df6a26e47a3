package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/domain"
)

type ListingRepository struct {
	s *Store
}

func (r *ListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.listings[listing.ID]; ok {
		return fmt.Errorf("listing %s: %w", listing.ID, domain.ErrDuplicateKey)
	}
	listing.Version = 1
	r.s.listings[listing.ID] = copyListing(*listing)
	return nil
}

func (r *ListingRepository) GetByID(ctx context.Context, listingID string) (*domain.Listing, error) {
	defer r.s.lock(ctx)()

	l, ok := r.s.listings[listingID]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", listingID, domain.ErrNotFound)
	}
	out := copyListing(l)
	return &out, nil
}

func (r *ListingRepository) CompareAndSwap(ctx context.Context, listing *domain.Listing, expectedVersion int64) error {
	defer r.s.lock(ctx)()

	current, ok := r.s.listings[listing.ID]
	if !ok {
		return fmt.Errorf("listing %s: %w", listing.ID, domain.ErrNotFound)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("listing %s at version %d: %w", listing.ID, expectedVersion, domain.ErrStaleVersion)
	}
	listing.Version = expectedVersion + 1
	r.s.listings[listing.ID] = copyListing(*listing)
	return nil
}

func (r *ListingRepository) FindExpiredLocks(ctx context.Context, now time.Time, limit int) ([]*domain.Listing, error) {
	defer r.s.lock(ctx)()

	var out []*domain.Listing
	for _, l := range r.s.listings {
		if l.Status == domain.ListingLocked && l.LockExpiresAt != nil && !l.LockExpiresAt.After(now) {
			c := copyListing(l)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LockExpiresAt.Before(*out[j].LockExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ListingRepository) List(ctx context.Context, statuses []domain.ListingStatus, filter domain.ListingFilter) ([]*domain.Listing, error) {
	defer r.s.lock(ctx)()

	want := make(map[domain.ListingStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	var out []*domain.Listing
	for _, l := range r.s.listings {
		if len(want) > 0 && !want[l.Status] {
			continue
		}
		if filter.SellerID != "" && l.SellerID != filter.SellerID {
			continue
		}
		if filter.MinPriceCents > 0 && l.PriceCents < filter.MinPriceCents {
			continue
		}
		if filter.MaxPriceCents > 0 && l.PriceCents > filter.MaxPriceCents {
			continue
		}
		c := copyListing(l)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func copyListing(l domain.Listing) domain.Listing {
	if l.LockExpiresAt != nil {
		exp := *l.LockExpiresAt
		l.LockExpiresAt = &exp
	}
	return l
}
