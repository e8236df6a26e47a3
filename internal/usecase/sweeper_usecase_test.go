package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/domain"
)

func TestSweeperUsecase_ReleasesLapsedLocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedListing(t, "L1", 5000)
	f.seedListing(t, "L2", 5000)
	o := f.checkout(t, "L1", buyerA, "cs_1")

	f.clock.Advance(5 * time.Minute)
	if _, err := f.locks.Acquire(ctx, "L2", buyerB); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(5*time.Minute + time.Second)

	report, err := f.sweeper.SweepExpired(ctx, TriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 1 || report.Released != 1 || report.OrdersExpired != 1 || report.Failed != 0 {
		t.Errorf("unexpected report %+v", report)
	}

	l1 := f.listing(t, "L1")
	if l1.Status != domain.ListingAvailable || l1.LockExpiresAt != nil || l1.LockedBy != "" {
		t.Errorf("L1 not released: %+v", l1)
	}
	if l2 := f.listing(t, "L2"); l2.Status != domain.ListingLocked {
		t.Errorf("L2 lock is still active and must survive, got %s", l2.Status)
	}
	if got := f.order(t, o.ID); got.Status != domain.StatusExpired {
		t.Errorf("order %s, want expired", got.Status)
	}
	f.publisher.waitFor(t, domain.EventOrderExpired, 1)

	report, err = f.sweeper.SweepExpired(ctx, TriggerManual)
	if err != nil || report.Released != 0 {
		t.Errorf("second sweep should find nothing: %+v err=%v", report, err)
	}
}

func TestSweeperUsecase_ConcurrentSweepsReleaseOnce(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("L%d", i)
		f.seedListing(t, id, 1000)
		f.checkout(t, id, buyerA, "cs_"+id)
	}
	f.clock.Advance(DefaultLockDuration + time.Second)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		released int
		expired  int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := f.sweeper.SweepExpired(context.Background(), TriggerManual)
			if err != nil {
				t.Errorf("sweep: %v", err)
				return
			}
			mu.Lock()
			released += report.Released
			expired += report.OrdersExpired
			mu.Unlock()
		}()
	}
	wg.Wait()

	if released != 10 || expired != 10 {
		t.Errorf("released %d listings and expired %d orders across sweeps, want 10 each", released, expired)
	}
}

func TestSweeperUsecase_RespectsBatchSize(t *testing.T) {
	f := newFixture(t)
	f.sweeper.BatchSize = 3
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("L%d", i)
		f.seedListing(t, id, 1000)
		if _, err := f.locks.Acquire(context.Background(), id, buyerA); err != nil {
			t.Fatal(err)
		}
	}
	f.clock.Advance(DefaultLockDuration)

	first, _ := f.sweeper.SweepExpired(context.Background(), TriggerSchedule)
	second, _ := f.sweeper.SweepExpired(context.Background(), TriggerSchedule)
	if first.Released != 3 || second.Released != 2 {
		t.Errorf("released %d then %d, want 3 then 2", first.Released, second.Released)
	}
}

type flakyListingRepo struct {
	domain.ListingRepository
	failID string
}

func (r *flakyListingRepo) CompareAndSwap(ctx context.Context, l *domain.Listing, expectedVersion int64) error {
	if l.ID == r.failID {
		return errors.New("connection reset")
	}
	return r.ListingRepository.CompareAndSwap(ctx, l, expectedVersion)
}

func TestSweeperUsecase_FailureDoesNotStopBatch(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"A", "B", "C"} {
		f.seedListing(t, id, 1000)
		if _, err := f.locks.Acquire(context.Background(), id, buyerA); err != nil {
			t.Fatal(err)
		}
	}
	f.clock.Advance(DefaultLockDuration + time.Second)
	f.sweeper.ListingRepo = &flakyListingRepo{ListingRepository: f.store.Listings(), failID: "B"}

	report, err := f.sweeper.SweepExpired(context.Background(), TriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	if report.Released != 2 || report.Failed != 1 {
		t.Errorf("unexpected report %+v", report)
	}
	if l := f.listing(t, "B"); l.Status != domain.ListingLocked {
		t.Errorf("failed listing should stay locked for the next sweep, got %s", l.Status)
	}
}

type stubLease struct {
	ok       bool
	err      error
	released bool
}

func (l *stubLease) TryAcquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() { l.released = true }, l.ok, l.err
}

func TestSweeperUsecase_RunScheduledLease(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "L1", 1000)
	if _, err := f.locks.Acquire(context.Background(), "L1", buyerA); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(DefaultLockDuration)

	held := &stubLease{ok: false}
	f.sweeper.Lease = held
	report, err := f.sweeper.RunScheduled(context.Background())
	if err != nil || !report.Skipped {
		t.Errorf("expected skipped tick, got %+v err=%v", report, err)
	}
	if l := f.listing(t, "L1"); l.Status != domain.ListingLocked {
		t.Errorf("skipped tick must not sweep, listing %s", l.Status)
	}

	free := &stubLease{ok: true}
	f.sweeper.Lease = free
	report, err = f.sweeper.RunScheduled(context.Background())
	if err != nil || report.Released != 1 {
		t.Errorf("expected one release, got %+v err=%v", report, err)
	}
	if !free.released {
		t.Errorf("lease was not released")
	}

	f.seedListing(t, "L2", 1000)
	if _, err := f.locks.Acquire(context.Background(), "L2", buyerA); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(DefaultLockDuration)
	f.sweeper.Lease = &stubLease{err: errors.New("redis down")}
	report, err = f.sweeper.RunScheduled(context.Background())
	if err != nil || report.Released != 1 {
		t.Errorf("sweep should proceed without the lease, got %+v err=%v", report, err)
	}
}
