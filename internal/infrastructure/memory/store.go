// Package memory is a process-local store implementing every repository.
// Transactions serialize on a single mutex and roll back from a snapshot.
package memory

import (
	"context"
	"sync"

	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/txn"
)

type Store struct {
	mu          sync.Mutex
	listings    map[string]domain.Listing
	orders      map[string]domain.Order
	transitions []domain.OrderTransition
	events      map[string]domain.WebhookEvent
}

func NewStore() *Store {
	return &Store{
		listings: make(map[string]domain.Listing),
		orders:   make(map[string]domain.Order),
		events:   make(map[string]domain.WebhookEvent),
	}
}

type txKey struct{ s *Store }

// WithinTx holds the store lock for the whole of fn.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	snap := s.snapshot()
	txCtx, scope := txn.Begin(context.WithValue(ctx, txKey{s}, true))
	err := fn(txCtx)
	if err != nil {
		s.restore(snap)
	}
	s.mu.Unlock()

	if err != nil {
		scope.Discard()
		return err
	}
	scope.Committed()
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{s}).(bool)
	return v
}

// lock acquires the store mutex unless ctx already runs inside a transaction.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	listings    map[string]domain.Listing
	orders      map[string]domain.Order
	transitions []domain.OrderTransition
	events      map[string]domain.WebhookEvent
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		listings:    make(map[string]domain.Listing, len(s.listings)),
		orders:      make(map[string]domain.Order, len(s.orders)),
		transitions: append([]domain.OrderTransition(nil), s.transitions...),
		events:      make(map[string]domain.WebhookEvent, len(s.events)),
	}
	for k, v := range s.listings {
		snap.listings[k] = v
	}
	for k, v := range s.orders {
		snap.orders[k] = v
	}
	for k, v := range s.events {
		snap.events[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.listings = snap.listings
	s.orders = snap.orders
	s.transitions = snap.transitions
	s.events = snap.events
}

// Repositories views over the same store.

func (s *Store) Listings() *ListingRepository { return &ListingRepository{s: s} }

func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

func (s *Store) Events() *EventLedgerRepository { return &EventLedgerRepository{s: s} }
