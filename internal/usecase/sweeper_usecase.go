package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/clock"
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/lockin-market-service/internal/txn"
)

const (
	DefaultSweepBatchSize = 100
	sweeperLeaseName      = "expiry-sweeper"

	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// Lease coordinates scheduled sweeps across replicas. Sweeps are safe to run
// concurrently; the lease only avoids duplicated work.
type Lease interface {
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

type SweepReport struct {
	Scanned       int  `json:"scanned"`
	Released      int  `json:"released"`
	OrdersExpired int  `json:"orders_expired"`
	Failed        int  `json:"failed"`
	Skipped       bool `json:"skipped,omitempty"`
}

type SweeperUsecase interface {
	SweepExpired(ctx context.Context, trigger string) (SweepReport, error)
	RunScheduled(ctx context.Context) (SweepReport, error)
}

type DefaultSweeperUsecase struct {
	Tx          txn.Manager
	ListingRepo domain.ListingRepository
	Clock       clock.Clock
	BatchSize   int
	Lease       Lease
	LeaseTTL    time.Duration
	Events      *EventNotifier
	Metrics     *metrics.MarketMetrics

	writer *orderWriter
}

func NewDefaultSweeperUsecase(
	tx txn.Manager,
	listingRepo domain.ListingRepository,
	orderRepo domain.OrderRepository,
	clk clock.Clock,
	batchSize int,
	lease Lease,
	leaseTTL time.Duration,
	events *EventNotifier,
	m *metrics.MarketMetrics,
) *DefaultSweeperUsecase {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &DefaultSweeperUsecase{
		Tx:          tx,
		ListingRepo: listingRepo,
		Clock:       clk,
		BatchSize:   batchSize,
		Lease:       lease,
		LeaseTTL:    leaseTTL,
		Events:      events,
		Metrics:     m,
		writer:      &orderWriter{orders: orderRepo, events: events, metrics: m},
	}
}

// RunScheduled is the ticker entry point. When another replica holds the
// lease the tick is skipped.
func (uc *DefaultSweeperUsecase) RunScheduled(ctx context.Context) (SweepReport, error) {
	if uc.Lease != nil {
		release, ok, err := uc.Lease.TryAcquire(ctx, sweeperLeaseName, uc.LeaseTTL)
		if err != nil {
			// sweeping without the lease is still correct
			slog.Warn("sweeper lease unavailable, sweeping anyway", "error", err)
		} else if !ok {
			return SweepReport{Skipped: true}, nil
		} else {
			defer release()
		}
	}
	return uc.SweepExpired(ctx, TriggerSchedule)
}

// SweepExpired releases up to BatchSize lapsed locks and expires their active
// orders. A failure on one listing is logged and the batch continues.
func (uc *DefaultSweeperUsecase) SweepExpired(ctx context.Context, trigger string) (SweepReport, error) {
	started := time.Now()
	now := uc.Clock.Now()

	var report SweepReport
	candidates, err := uc.ListingRepo.FindExpiredLocks(ctx, now, uc.BatchSize)
	if err != nil {
		return report, fmt.Errorf("find expired locks: %w", err)
	}
	report.Scanned = len(candidates)

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		released, expired, err := uc.sweepListing(ctx, candidate.ID, now)
		if err != nil {
			report.Failed++
			slog.Error("failed to sweep listing", "listing_id", candidate.ID, "error", err)
			continue
		}
		if released {
			report.Released++
		}
		report.OrdersExpired += expired
	}

	uc.Metrics.SweepRun(trigger, report.Released, report.Failed, time.Since(started).Seconds())
	if report.Scanned > 0 {
		slog.Info("expiry sweep finished",
			"trigger", trigger, "scanned", report.Scanned, "released", report.Released,
			"orders_expired", report.OrdersExpired, "failed", report.Failed)
	}
	return report, nil
}

// sweepListing re-reads the listing inside the transaction and only acts if
// the lock is still lapsed, so racing sweeps and payments are no-ops.
func (uc *DefaultSweeperUsecase) sweepListing(ctx context.Context, listingID string, now time.Time) (bool, int, error) {
	var (
		released bool
		expired  int
	)
	err := uc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		listing, err := uc.ListingRepo.GetByID(ctx, listingID)
		if err != nil {
			return err
		}
		if !listing.LockLapsed(now) {
			return nil
		}

		next, _ := listing.Release(now)
		if err := uc.ListingRepo.CompareAndSwap(ctx, &next, listing.Version); err != nil {
			return err
		}
		expired, err = uc.writer.closeActive(ctx, listingID, "", "lock expired", now)
		if err != nil {
			return err
		}

		released = true
		uc.Events.Notify(ctx, domain.ListingEvent(domain.EventListingReleased, &next, now))
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return released, expired, nil
}
