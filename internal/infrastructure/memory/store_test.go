package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/domain"
)

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Listings().Create(ctx, &domain.Listing{ID: "L1", SellerID: "seller", Status: domain.ListingAvailable}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.Listings().GetByID(ctx, "L1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected rolled back listing to be missing, got %v", err)
	}
}

func TestListingRepository_CompareAndSwap(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Listings()

	l := &domain.Listing{ID: "L1", SellerID: "seller", Status: domain.ListingAvailable}
	if err := repo.Create(ctx, l); err != nil {
		t.Fatal(err)
	}

	first := *l
	first.Status = domain.ListingDelisted
	if err := repo.CompareAndSwap(ctx, &first, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("expected version 2, got %d", first.Version)
	}

	stale := *l
	if err := repo.CompareAndSwap(ctx, &stale, 1); !errors.Is(err, domain.ErrStaleVersion) {
		t.Errorf("expected ErrStaleVersion, got %v", err)
	}
}

func TestOrderRepository_OneActiveOrderPerListing(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Orders()

	if err := repo.Create(ctx, &domain.Order{ID: "O1", ListingID: "L1", BuyerID: "A", Status: domain.StatusPendingPayment}); err != nil {
		t.Fatal(err)
	}
	err := repo.Create(ctx, &domain.Order{ID: "O2", ListingID: "L1", BuyerID: "B", Status: domain.StatusPendingPayment})
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestEventLedgerRepository_DeleteOlderThanIsBounded(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	repo := s.Events()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"e1", "e2", "e3"} {
		if err := repo.Insert(ctx, &domain.WebhookEvent{EventID: id, ProcessedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := repo.DeleteOlderThan(ctx, base.Add(5*time.Hour), 2)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 deleted, got %d err=%v", n, err)
	}
	if ok, _ := repo.Exists(ctx, "e3"); !ok {
		t.Error("expected newest event to survive the first batch")
	}
}
