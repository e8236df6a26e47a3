package background

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavaJover/lockin-market-service/internal/domain"
	"github.com/LavaJover/lockin-market-service/internal/usecase"
)

type countingSweeper struct{ runs atomic.Int32 }

func (s *countingSweeper) SweepExpired(context.Context, string) (usecase.SweepReport, error) {
	return usecase.SweepReport{}, nil
}

func (s *countingSweeper) RunScheduled(context.Context) (usecase.SweepReport, error) {
	s.runs.Add(1)
	return usecase.SweepReport{}, nil
}

type countingLedger struct{ purges atomic.Int32 }

func (l *countingLedger) AlreadyProcessed(context.Context, string) (bool, error) { return false, nil }

func (l *countingLedger) RecordProcessed(context.Context, string, string, map[string]string) error {
	return nil
}

func (l *countingLedger) PurgeOlderThan(context.Context, time.Duration) (int64, error) {
	l.purges.Add(1)
	return 0, nil
}

type recordingWebhooks struct {
	mu       sync.Mutex
	ids      []string
	failures map[string]int
}

func (w *recordingWebhooks) Ingest(_ context.Context, event domain.PaymentEvent) (usecase.IngestResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ids = append(w.ids, event.ID)
	if w.failures[event.ID] > 0 {
		w.failures[event.ID]--
		return "", errors.New("database unavailable")
	}
	return usecase.IngestProcessed, nil
}

func (w *recordingWebhooks) seen() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.ids...)
}

type chanSubscriber struct{ ch chan domain.Message }

func (s chanSubscriber) Subscribe(context.Context, string, string) (<-chan domain.Message, error) {
	return s.ch, nil
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestBackgroundTasks_Tickers(t *testing.T) {
	sweeper := &countingSweeper{}
	ledger := &countingLedger{}
	bt := NewBackgroundTasks(sweeper, ledger, &recordingWebhooks{}, 10*time.Millisecond, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	bt.StartAll(ctx)
	waitUntil(t, func() bool { return sweeper.runs.Load() >= 2 && ledger.purges.Load() >= 2 })
	cancel()
	bt.Wait()
}

type ackLog struct {
	mu   sync.Mutex
	keys []string
}

// message returns a message whose Ack records key.
func (a *ackLog) message(key, value string) domain.Message {
	return domain.Message{
		Key:   []byte(key),
		Value: []byte(value),
		Ack: func(context.Context) error {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.keys = append(a.keys, key)
			return nil
		},
	}
}

func (a *ackLog) acked() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.keys...)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBackgroundTasks_PaymentEvents(t *testing.T) {
	webhooks := &recordingWebhooks{failures: map[string]int{"evt_retry": 4}}
	acks := &ackLog{}
	ch := make(chan domain.Message, 3)
	ch <- acks.message("malformed", `not json`)
	ch <- acks.message("retry", `{"id":"evt_retry","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	ch <- acks.message("second", `{"id":"evt_2","type":"checkout.session.expired","data":{"object":{"id":"cs_2"}}}`)
	close(ch)

	bt := NewBackgroundTasks(&countingSweeper{}, &countingLedger{}, webhooks, time.Hour, time.Hour)
	bt.PaymentEvents = chanSubscriber{ch: ch}
	bt.PaymentTopic = "payments"
	bt.RetryBackoff = time.Millisecond
	bt.MaxRetryBackoff = 4 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bt.StartAll(ctx)

	waitUntil(t, func() bool { return len(acks.acked()) == 3 })
	want := []string{"evt_retry", "evt_retry", "evt_retry", "evt_retry", "evt_retry", "evt_2"}
	if got := webhooks.seen(); !equalStrings(got, want) {
		t.Fatalf("expected ingest order %v, got %v", want, got)
	}
	if got := acks.acked(); !equalStrings(got, []string{"malformed", "retry", "second"}) {
		t.Errorf("unexpected ack order %v", got)
	}
	cancel()
	bt.Wait()
}

func TestBackgroundTasks_FailingEventIsNotAcked(t *testing.T) {
	webhooks := &recordingWebhooks{failures: map[string]int{"evt_stuck": 1 << 20}}
	acks := &ackLog{}
	ch := make(chan domain.Message, 2)
	ch <- acks.message("stuck", `{"id":"evt_stuck","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	ch <- acks.message("behind", `{"id":"evt_behind","type":"checkout.session.expired","data":{"object":{"id":"cs_2"}}}`)

	bt := NewBackgroundTasks(&countingSweeper{}, &countingLedger{}, webhooks, time.Hour, time.Hour)
	bt.PaymentEvents = chanSubscriber{ch: ch}
	bt.PaymentTopic = "payments"
	bt.RetryBackoff = time.Millisecond
	bt.MaxRetryBackoff = 2 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	bt.StartAll(ctx)

	// well past any fixed attempt budget
	waitUntil(t, func() bool { return len(webhooks.seen()) >= 10 })
	cancel()
	bt.Wait()

	if got := acks.acked(); len(got) != 0 {
		t.Errorf("nothing may be acked while the head event keeps failing, got %v", got)
	}
	for _, id := range webhooks.seen() {
		if id != "evt_stuck" {
			t.Fatalf("later event %s ingested ahead of the failing one", id)
		}
	}
}
