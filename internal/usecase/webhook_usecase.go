package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/lockin-market-service/internal/txn"
)

type IngestResult string

const (
	// IngestProcessed: the event's transition was applied and recorded.
	IngestProcessed IngestResult = "processed"
	// IngestDuplicate: the event id was already in the ledger.
	IngestDuplicate IngestResult = "duplicate"
	// IngestRejected: the transition was refused and retrying cannot change that.
	// The event is recorded so redeliveries resolve as duplicates.
	IngestRejected IngestResult = "rejected"
	// IngestIgnored: event type not acted upon; recorded and acknowledged.
	IngestIgnored IngestResult = "ignored"
)

// errEventRecorded marks a ledger insert that lost to a concurrent delivery.
// Duplicate keys raised by the transition itself are not covered.
var errEventRecorded = errors.New("payment event already recorded")

type WebhookUsecase interface {
	Ingest(ctx context.Context, event domain.PaymentEvent) (IngestResult, error)
}

type DefaultWebhookUsecase struct {
	Tx        txn.Manager
	Ledger    LedgerUsecase
	Orders    OrderUsecase
	OrderRepo domain.OrderRepository
	Metrics   *metrics.MarketMetrics
}

func NewDefaultWebhookUsecase(
	tx txn.Manager,
	ledger LedgerUsecase,
	orders OrderUsecase,
	orderRepo domain.OrderRepository,
	m *metrics.MarketMetrics,
) *DefaultWebhookUsecase {
	return &DefaultWebhookUsecase{
		Tx:        tx,
		Ledger:    ledger,
		Orders:    orders,
		OrderRepo: orderRepo,
		Metrics:   m,
	}
}

// Ingest applies a verified payment event at most once. The ledger record is
// written in the same transaction as the transition, after it, so a failed
// transition leaves the event unrecorded for the provider to redeliver.
// A returned error is transient and should surface as retryable.
func (uc *DefaultWebhookUsecase) Ingest(ctx context.Context, event domain.PaymentEvent) (IngestResult, error) {
	started := time.Now()
	if event.ID == "" {
		return "", fmt.Errorf("%w: event id is required", domain.ErrInvalidInput)
	}

	result, err := uc.ingest(ctx, event)
	outcome := string(result)
	if err != nil {
		outcome = "failed"
	}
	uc.Metrics.WebhookEvent(event.Type, outcome, time.Since(started).Seconds())
	return result, err
}

func (uc *DefaultWebhookUsecase) ingest(ctx context.Context, event domain.PaymentEvent) (IngestResult, error) {
	processed, err := uc.Ledger.AlreadyProcessed(ctx, event.ID)
	if err != nil {
		return "", fmt.Errorf("ledger lookup: %w", err)
	}
	if processed {
		slog.Info("payment event already processed", "event_id", event.ID, "type", event.Type)
		return IngestDuplicate, nil
	}

	var result IngestResult
	err = uc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		metadata := map[string]string{
			"object_id": event.ObjectID,
			"order_id":  event.OrderID,
		}

		var applyErr error
		result, applyErr = uc.apply(ctx, event)
		if applyErr != nil {
			if !permanent(applyErr) {
				return applyErr
			}
			slog.Warn("payment event rejected",
				"event_id", event.ID, "type", event.Type, "order_id", event.OrderID, "error", applyErr)
			result = IngestRejected
			metadata["reason"] = applyErr.Error()
		}
		metadata["outcome"] = string(result)

		if err := uc.Ledger.RecordProcessed(ctx, event.ID, event.Type, metadata); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				return errEventRecorded
			}
			return fmt.Errorf("record event: %w", err)
		}
		return nil
	})
	if errors.Is(err, errEventRecorded) {
		// a concurrent delivery of the same event committed first
		return IngestDuplicate, nil
	}
	if err != nil {
		slog.Error("payment event processing failed", "event_id", event.ID, "type", event.Type, "error", err)
		return "", err
	}
	return result, nil
}

func (uc *DefaultWebhookUsecase) apply(ctx context.Context, event domain.PaymentEvent) (IngestResult, error) {
	switch event.Type {
	case domain.EventCheckoutCompleted:
		orderID, err := uc.resolveOrderID(ctx, event)
		if err != nil {
			return "", err
		}
		if _, _, err := uc.Orders.MarkPaid(ctx, orderID, event.ObjectID); err != nil {
			return "", err
		}
	case domain.EventCheckoutExpired:
		orderID, err := uc.resolveOrderID(ctx, event)
		if err != nil {
			return "", err
		}
		if _, err := uc.Orders.ExpireOrder(ctx, orderID); err != nil {
			return "", err
		}
	case domain.EventChargeRefunded:
		orderID, err := uc.resolveOrderID(ctx, event)
		if err != nil {
			return "", err
		}
		if _, err := uc.Orders.RefundOrder(ctx, orderID, domain.ActorSystem); err != nil {
			return "", err
		}
	default:
		slog.Info("unhandled payment event type", "event_id", event.ID, "type", event.Type)
		return IngestIgnored, nil
	}
	return IngestProcessed, nil
}

// resolveOrderID prefers the order id from event metadata and falls back to
// the checkout session reference.
func (uc *DefaultWebhookUsecase) resolveOrderID(ctx context.Context, event domain.PaymentEvent) (string, error) {
	if event.OrderID != "" {
		return event.OrderID, nil
	}
	sessionRef := event.Metadata["checkout_session"]
	if sessionRef == "" && event.Type != domain.EventChargeRefunded {
		sessionRef = event.ObjectID
	}
	if sessionRef == "" {
		return "", fmt.Errorf("%w: event %s carries no order reference", domain.ErrInvalidInput, event.ID)
	}
	order, err := uc.OrderRepo.GetBySessionRef(ctx, sessionRef)
	if err != nil {
		return "", err
	}
	return order.ID, nil
}

// permanent reports errors a provider redelivery cannot fix.
func permanent(err error) bool {
	return domain.IsConflict(err) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrForbidden)
}
