package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/clock"
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/lockin-market-service/internal/txn"
)

// DefaultLockDuration is how long a buyer holds a listing.
const DefaultLockDuration = 10 * time.Minute

type LockUsecase interface {
	Acquire(ctx context.Context, listingID, buyerID string) (time.Time, error)
	Release(ctx context.Context, listingID, actorID string) error
}

type DefaultLockUsecase struct {
	Tx           txn.Manager
	ListingRepo  domain.ListingRepository
	Clock        clock.Clock
	LockDuration time.Duration
	Events       *EventNotifier
	Metrics      *metrics.MarketMetrics

	writer *orderWriter
}

func NewDefaultLockUsecase(
	tx txn.Manager,
	listingRepo domain.ListingRepository,
	orderRepo domain.OrderRepository,
	clk clock.Clock,
	lockDuration time.Duration,
	events *EventNotifier,
	m *metrics.MarketMetrics,
) *DefaultLockUsecase {
	if lockDuration <= 0 {
		lockDuration = DefaultLockDuration
	}
	return &DefaultLockUsecase{
		Tx:           tx,
		ListingRepo:  listingRepo,
		Clock:        clk,
		LockDuration: lockDuration,
		Events:       events,
		Metrics:      m,
		writer:       &orderWriter{orders: orderRepo, events: events, metrics: m},
	}
}

// Acquire locks the listing for buyerID and returns the lock expiry. The
// status and expiry are swapped in a single versioned write, so of two
// concurrent callers only one can succeed.
func (uc *DefaultLockUsecase) Acquire(ctx context.Context, listingID, buyerID string) (time.Time, error) {
	if listingID == "" || buyerID == "" {
		return time.Time{}, fmt.Errorf("%w: listing id and buyer id are required", domain.ErrInvalidInput)
	}
	now := uc.Clock.Now()

	var expiresAt time.Time
	err := uc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		listing, err := uc.ListingRepo.GetByID(ctx, listingID)
		if err != nil {
			return err
		}

		previousHolder := ""
		if listing.LockLapsed(now) {
			previousHolder = listing.LockedBy
		}

		next, err := listing.Lock(buyerID, now, uc.LockDuration)
		if err != nil {
			return err
		}
		if err := uc.ListingRepo.CompareAndSwap(ctx, &next, listing.Version); err != nil {
			if errors.Is(err, domain.ErrStaleVersion) {
				return uc.explainLostRace(ctx, listingID, buyerID, now)
			}
			return err
		}

		if previousHolder != "" {
			n, err := uc.writer.closeActive(ctx, listingID, "", "lock superseded", now)
			if err != nil {
				return fmt.Errorf("expire orders of lapsed lock: %w", err)
			}
			if n > 0 {
				slog.Info("expired orders of lapsed lock", "listing_id", listingID, "previous_holder", previousHolder, "orders", n)
			}
		}

		expiresAt = *next.LockExpiresAt
		uc.Events.Notify(ctx, domain.ListingEvent(domain.EventListingLocked, &next, now))
		return nil
	})
	if err != nil {
		uc.Metrics.LockRejected(rejectReason(err))
		return time.Time{}, err
	}

	uc.Metrics.LockAcquired()
	return expiresAt, nil
}

// explainLostRace re-reads a listing after a failed swap and reports why the
// caller lost. It never writes.
func (uc *DefaultLockUsecase) explainLostRace(ctx context.Context, listingID, buyerID string, now time.Time) error {
	current, err := uc.ListingRepo.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	if _, err := current.Lock(buyerID, now, uc.LockDuration); err != nil {
		return err
	}
	return fmt.Errorf("%w: listing %s changed concurrently", domain.ErrAlreadyLocked, listingID)
}

// Release puts a locked listing back on the market and closes its active
// orders. It is a no-op for listings that are not locked. An empty actorID
// is a system release; otherwise the actor must hold the lock or own the listing.
func (uc *DefaultLockUsecase) Release(ctx context.Context, listingID, actorID string) error {
	now := uc.Clock.Now()

	return uc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		listing, err := uc.ListingRepo.GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		if listing.Status != domain.ListingLocked {
			return nil
		}
		if actorID != "" && actorID != listing.LockedBy && actorID != listing.SellerID {
			return fmt.Errorf("%w: only the lock holder or seller can release listing %s", domain.ErrForbidden, listingID)
		}

		next, _ := listing.Release(now)
		if err := uc.ListingRepo.CompareAndSwap(ctx, &next, listing.Version); err != nil {
			return err
		}
		if _, err := uc.writer.closeActive(ctx, listingID, actorID, "lock released", now); err != nil {
			return err
		}

		uc.Events.Notify(ctx, domain.ListingEvent(domain.EventListingReleased, &next, now))
		return nil
	})
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrSelfLockForbidden):
		return "self_lock"
	case errors.Is(err, domain.ErrAlreadyLocked):
		return "already_locked"
	case errors.Is(err, domain.ErrConflict):
		return "sold"
	case errors.Is(err, domain.ErrGone):
		return "delisted"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
