package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/domain"
)

type EventLedgerRepository struct {
	s *Store
}

func (r *EventLedgerRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	defer r.s.lock(ctx)()

	_, ok := r.s.events[eventID]
	return ok, nil
}

func (r *EventLedgerRepository) Insert(ctx context.Context, event *domain.WebhookEvent) error {
	defer r.s.lock(ctx)()

	if _, ok := r.s.events[event.EventID]; ok {
		return fmt.Errorf("webhook event %s: %w", event.EventID, domain.ErrDuplicateKey)
	}
	r.s.events[event.EventID] = *event
	return nil
}

func (r *EventLedgerRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	defer r.s.lock(ctx)()

	var old []domain.WebhookEvent
	for _, e := range r.s.events {
		if e.ProcessedAt.Before(cutoff) {
			old = append(old, e)
		}
	}
	sort.Slice(old, func(i, j int) bool { return old[i].ProcessedAt.Before(old[j].ProcessedAt) })
	if limit > 0 && len(old) > limit {
		old = old[:limit]
	}
	for _, e := range old {
		delete(r.s.events, e.EventID)
	}
	return int64(len(old)), nil
}
