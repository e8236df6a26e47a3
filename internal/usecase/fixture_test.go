package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/LavaJover/lockin-market-service/internal/clock"
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/memory"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/metrics"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

const (
	seller = "seller-1"
	buyerA = "buyer-a"
	buyerB = "buyer-b"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.MarketEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.MarketEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// waitFor polls until the asynchronous publisher has seen n events of the type.
func (p *recordingPublisher) waitFor(t *testing.T, eventType string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.count(eventType) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d %s events, got %d", n, eventType, p.count(eventType))
}

type fixture struct {
	store     *memory.Store
	clock     *clock.Manual
	publisher *recordingPublisher
	metrics   *metrics.MarketMetrics

	listings *DefaultListingUsecase
	locks    *DefaultLockUsecase
	orders   *DefaultOrderUsecase
	ledger   *DefaultLedgerUsecase
	webhooks *DefaultWebhookUsecase
	sweeper  *DefaultSweeperUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	clk := clock.NewManual(t0)
	pub := &recordingPublisher{}
	m := metrics.NewMarketMetrics(prometheus.NewRegistry())
	events := NewEventNotifier(pub, m)

	f := &fixture{store: store, clock: clk, publisher: pub, metrics: m}
	f.listings = NewDefaultListingUsecase(store, store.Listings(), store.Orders(), clk, events, m)
	f.locks = NewDefaultLockUsecase(store, store.Listings(), store.Orders(), clk, DefaultLockDuration, events, m)
	f.orders = NewDefaultOrderUsecase(store, store.Orders(), store.Listings(), clk, events, m)
	f.ledger = NewDefaultLedgerUsecase(store.Events(), clk, DefaultLedgerRetention, DefaultPurgeBatchSize, m)
	f.webhooks = NewDefaultWebhookUsecase(store, f.ledger, f.orders, store.Orders(), m)
	f.sweeper = NewDefaultSweeperUsecase(store, store.Listings(), store.Orders(), clk, DefaultSweepBatchSize, nil, 0, events, m)
	return f
}

func (f *fixture) seedListing(t *testing.T, id string, priceCents int64) {
	t.Helper()
	err := f.store.Listings().Create(context.Background(), &domain.Listing{
		ID:         id,
		SellerID:   seller,
		Title:      "Vintage camera",
		PriceCents: priceCents,
		Currency:   "usd",
		Status:     domain.ListingAvailable,
		CreatedAt:  f.clock.Now(),
		UpdatedAt:  f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("seed listing: %v", err)
	}
}

func (f *fixture) listing(t *testing.T, id string) *domain.Listing {
	t.Helper()
	l, err := f.store.Listings().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get listing %s: %v", id, err)
	}
	return l
}

func (f *fixture) order(t *testing.T, id string) *domain.Order {
	t.Helper()
	o, err := f.store.Orders().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get order %s: %v", id, err)
	}
	return o
}

// checkout locks the listing for buyer, opens an order and attaches a session.
func (f *fixture) checkout(t *testing.T, listingID, buyerID, sessionRef string) *domain.Order {
	t.Helper()
	ctx := context.Background()
	if _, err := f.locks.Acquire(ctx, listingID, buyerID); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	o, created, err := f.orders.CreateOrder(ctx, listingID, buyerID)
	if err != nil || !created {
		t.Fatalf("create order: created=%v err=%v", created, err)
	}
	o, err = f.orders.AttachPaymentSession(ctx, o.ID, sessionRef, "")
	if err != nil {
		t.Fatalf("attach session: %v", err)
	}
	return o
}
