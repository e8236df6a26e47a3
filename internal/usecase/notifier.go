package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/metrics"
	"github.com/LavaJover/lockin-market-service/internal/txn"
)

const publishTimeout = 10 * time.Second

// EventNotifier publishes lifecycle events once the surrounding transaction
// commits. Publishing is asynchronous and failures are only logged.
type EventNotifier struct {
	Publisher domain.EventPublisher
	Metrics   *metrics.MarketMetrics
}

func NewEventNotifier(publisher domain.EventPublisher, m *metrics.MarketMetrics) *EventNotifier {
	return &EventNotifier{Publisher: publisher, Metrics: m}
}

func (n *EventNotifier) Notify(ctx context.Context, event domain.MarketEvent) {
	if n == nil || n.Publisher == nil {
		return
	}
	base := context.WithoutCancel(ctx)
	txn.AfterCommit(ctx, func() {
		go func(event domain.MarketEvent) {
			pubCtx, cancel := context.WithTimeout(base, publishTimeout)
			defer cancel()
			if err := n.Publisher.Publish(pubCtx, event); err != nil {
				n.Metrics.PublishFailed(event.Type)
				slog.Error("failed to publish market event", "type", event.Type, "listing_id", event.ListingID, "order_id", event.OrderID, "error", err)
			}
		}(event)
	})
}

var orderEventTypes = map[domain.OrderStatus]string{
	domain.StatusPendingPayment:    domain.EventOrderCreated,
	domain.StatusPaymentProcessing: domain.EventOrderPaymentProcessing,
	domain.StatusPaid:              domain.EventOrderPaid,
	domain.StatusExpired:           domain.EventOrderExpired,
	domain.StatusCancelled:         domain.EventOrderCancelled,
	domain.StatusRefunded:          domain.EventOrderRefunded,
}

// orderWriter persists a guarded order transition together with its audit row.
type orderWriter struct {
	orders  domain.OrderRepository
	events  *EventNotifier
	metrics *metrics.MarketMetrics
}

func (w *orderWriter) apply(ctx context.Context, prev *domain.Order, next domain.Order, actor, reason string, now time.Time) (*domain.Order, error) {
	if err := w.orders.CompareAndSwap(ctx, &next, prev.Version); err != nil {
		return nil, err
	}
	if err := w.orders.AppendTransition(ctx, domain.OrderTransition{
		OrderID:    next.ID,
		From:       prev.Status,
		To:         next.Status,
		Actor:      actor,
		Reason:     reason,
		OccurredAt: now,
	}); err != nil {
		return nil, err
	}

	w.metrics.OrderTransition(string(prev.Status), string(next.Status))
	w.events.Notify(ctx, domain.OrderEvent(orderEventTypes[next.Status], &next, now))
	return &next, nil
}

// closeActive ends every active order on a listing. Orders whose buyer or
// seller is actorID are cancelled by them, all others expire.
func (w *orderWriter) closeActive(ctx context.Context, listingID, actorID, reason string, now time.Time) (int, error) {
	active, err := w.orders.FindActiveByListing(ctx, listingID)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, o := range active {
		var (
			next    domain.Order
			changed bool
			actor   = actorID
		)
		if o.IsParticipant(actorID) {
			next, changed, err = o.Cancel(actorID, now)
		} else {
			actor = domain.ActorSystem
			next, changed, err = o.Expire(now)
		}
		if err != nil {
			return closed, err
		}
		if !changed {
			continue
		}
		if _, err := w.apply(ctx, o, next, actor, reason, now); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}
