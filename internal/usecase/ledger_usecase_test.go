package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/clock"
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/memory"
)

func TestLedgerUsecase_RecordProcessed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.ledger.RecordProcessed(ctx, "evt_1", domain.EventCheckoutCompleted, nil); err != nil {
		t.Fatal(err)
	}
	if err := f.ledger.RecordProcessed(ctx, "evt_1", domain.EventCheckoutCompleted, nil); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := f.ledger.RecordProcessed(ctx, "", domain.EventCheckoutCompleted, nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	ok, err := f.ledger.AlreadyProcessed(ctx, "evt_1")
	if err != nil || !ok {
		t.Errorf("AlreadyProcessed = %v, %v", ok, err)
	}
}

func TestLedgerUsecase_PurgeInBatches(t *testing.T) {
	store := memory.NewStore()
	clk := clock.NewManual(t0)
	ledger := NewDefaultLedgerUsecase(store.Events(), clk, 7*24*time.Hour, 2, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := ledger.RecordProcessed(ctx, fmt.Sprintf("old_%d", i), "x", nil); err != nil {
			t.Fatal(err)
		}
		clk.Advance(time.Minute)
	}
	clk.Advance(8 * 24 * time.Hour)
	if err := ledger.RecordProcessed(ctx, "fresh", "x", nil); err != nil {
		t.Fatal(err)
	}

	n, err := ledger.PurgeOlderThan(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("purged %d, want 5", n)
	}
	if ok, _ := ledger.AlreadyProcessed(ctx, "fresh"); !ok {
		t.Errorf("fresh event should survive the purge")
	}
	if ok, _ := ledger.AlreadyProcessed(ctx, "old_0"); ok {
		t.Errorf("old event should be purged")
	}
}
