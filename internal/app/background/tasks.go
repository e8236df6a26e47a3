package background

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/infrastructure/payment"
	"github.com/LavaJover/lockin-market-service/internal/usecase"
)

const (
	defaultRetryBackoff    = time.Second
	defaultMaxRetryBackoff = 30 * time.Second
	ackTimeout             = 5 * time.Second
)

type BackgroundTasks struct {
	SweeperUsecase usecase.SweeperUsecase
	LedgerUsecase  usecase.LedgerUsecase
	WebhookUsecase usecase.WebhookUsecase

	SweepInterval time.Duration
	PurgeInterval time.Duration

	// PaymentEvents is optional. Messages on the topic carry provider event
	// envelopes that were verified upstream.
	PaymentEvents  domain.SubscriberPort
	PaymentTopic   string
	PaymentGroupID string

	// RetryBackoff doubles after every failed ingest, up to MaxRetryBackoff.
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration

	wg sync.WaitGroup
}

func NewBackgroundTasks(sweeper usecase.SweeperUsecase, ledger usecase.LedgerUsecase, webhooks usecase.WebhookUsecase, sweepInterval, purgeInterval time.Duration) *BackgroundTasks {
	return &BackgroundTasks{
		SweeperUsecase: sweeper,
		LedgerUsecase:  ledger,
		WebhookUsecase: webhooks,
		SweepInterval:  sweepInterval,
		PurgeInterval:  purgeInterval,

		RetryBackoff:    defaultRetryBackoff,
		MaxRetryBackoff: defaultMaxRetryBackoff,
	}
}

func (bt *BackgroundTasks) StartAll(ctx context.Context) {
	bt.start(ctx, bt.startExpirySweeper)
	bt.start(ctx, bt.startLedgerPurge)
	if bt.PaymentEvents != nil && bt.PaymentTopic != "" {
		bt.start(ctx, bt.startPaymentEventConsumer)
	}
}

// Wait blocks until every task returned after ctx was cancelled.
func (bt *BackgroundTasks) Wait() {
	bt.wg.Wait()
}

func (bt *BackgroundTasks) start(ctx context.Context, task func(context.Context)) {
	bt.wg.Add(1)
	go func() {
		defer bt.wg.Done()
		task(ctx)
	}()
}

func (bt *BackgroundTasks) startExpirySweeper(ctx context.Context) {
	ticker := time.NewTicker(bt.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := bt.SweeperUsecase.RunScheduled(ctx); err != nil && ctx.Err() == nil {
				slog.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

func (bt *BackgroundTasks) startLedgerPurge(ctx context.Context) {
	ticker := time.NewTicker(bt.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := bt.LedgerUsecase.PurgeOlderThan(ctx, 0); err != nil && ctx.Err() == nil {
				slog.Error("ledger purge failed", "error", err)
			}
		}
	}
}

func (bt *BackgroundTasks) startPaymentEventConsumer(ctx context.Context) {
	messages, err := bt.PaymentEvents.Subscribe(ctx, bt.PaymentTopic, bt.PaymentGroupID)
	if err != nil {
		slog.Error("payment event subscription failed", "topic", bt.PaymentTopic, "error", err)
		return
	}
	slog.Info("consuming payment events", "topic", bt.PaymentTopic)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			bt.handlePaymentMessage(ctx, msg)
		}
	}
}

// handlePaymentMessage retries transient ingest failures until they succeed
// or ctx ends. The message is acked only once it needs no further delivery,
// so an event interrupted by shutdown stays on the broker.
func (bt *BackgroundTasks) handlePaymentMessage(ctx context.Context, msg domain.Message) {
	if ctx.Err() != nil {
		return
	}
	event, err := payment.ParseEvent(msg.Value)
	if err != nil {
		slog.Warn("dropping malformed payment event", "key", string(msg.Key), "error", err)
		bt.ack(ctx, msg)
		return
	}

	backoff, maxBackoff := bt.RetryBackoff, bt.MaxRetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	if maxBackoff < backoff {
		maxBackoff = max(backoff, defaultMaxRetryBackoff)
	}
	for attempt := 1; ; attempt++ {
		result, err := bt.WebhookUsecase.Ingest(ctx, event)
		if err == nil {
			slog.Debug("payment event ingested", "event_id", event.ID, "result", result)
			bt.ack(ctx, msg)
			return
		}
		if errors.Is(err, domain.ErrInvalidInput) {
			slog.Warn("dropping invalid payment event", "event_id", event.ID, "error", err)
			bt.ack(ctx, msg)
			return
		}
		if ctx.Err() != nil {
			return
		}
		slog.Error("payment event ingest failed",
			"event_id", event.ID,
			"type", event.Type,
			"attempt", attempt,
			"retry_in", backoff,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (bt *BackgroundTasks) ack(ctx context.Context, msg domain.Message) {
	if msg.Ack == nil {
		return
	}
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()
	if err := msg.Ack(ackCtx); err != nil {
		// the event is redelivered and resolves as a ledger duplicate
		slog.Warn("payment event ack failed", "key", string(msg.Key), "error", err)
	}
}
