package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/clock"
	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/metrics"
)

const (
	DefaultLedgerRetention = 7 * 24 * time.Hour
	DefaultPurgeBatchSize  = 500
)

type LedgerUsecase interface {
	AlreadyProcessed(ctx context.Context, eventID string) (bool, error)
	RecordProcessed(ctx context.Context, eventID, eventType string, metadata map[string]string) error
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

type DefaultLedgerUsecase struct {
	EventRepo      domain.EventLedgerRepository
	Clock          clock.Clock
	Retention      time.Duration
	PurgeBatchSize int
	Metrics        *metrics.MarketMetrics
}

func NewDefaultLedgerUsecase(
	eventRepo domain.EventLedgerRepository,
	clk clock.Clock,
	retention time.Duration,
	purgeBatchSize int,
	m *metrics.MarketMetrics,
) *DefaultLedgerUsecase {
	if retention <= 0 {
		retention = DefaultLedgerRetention
	}
	if purgeBatchSize <= 0 {
		purgeBatchSize = DefaultPurgeBatchSize
	}
	return &DefaultLedgerUsecase{
		EventRepo:      eventRepo,
		Clock:          clk,
		Retention:      retention,
		PurgeBatchSize: purgeBatchSize,
		Metrics:        m,
	}
}

func (uc *DefaultLedgerUsecase) AlreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	return uc.EventRepo.Exists(ctx, eventID)
}

// RecordProcessed fails with domain.ErrDuplicateKey when the event id is
// already in the ledger. Callers treat that as an idempotency hit.
func (uc *DefaultLedgerUsecase) RecordProcessed(ctx context.Context, eventID, eventType string, metadata map[string]string) error {
	if eventID == "" {
		return fmt.Errorf("%w: event id is required", domain.ErrInvalidInput)
	}
	return uc.EventRepo.Insert(ctx, &domain.WebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: uc.Clock.Now(),
		Metadata:    metadata,
	})
}

// PurgeOlderThan deletes ledger records older than age in batches of
// PurgeBatchSize, so no single statement scales with the table.
func (uc *DefaultLedgerUsecase) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if age <= 0 {
		age = uc.Retention
	}
	cutoff := uc.Clock.Now().Add(-age)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := uc.EventRepo.DeleteOlderThan(ctx, cutoff, uc.PurgeBatchSize)
		total += n
		uc.Metrics.LedgerPurged(n)
		if err != nil {
			return total, fmt.Errorf("purge webhook events: %w", err)
		}
		if n < int64(uc.PurgeBatchSize) {
			break
		}
	}

	slog.Info("webhook ledger purged", "deleted", total, "cutoff", cutoff)
	return total, nil
}
