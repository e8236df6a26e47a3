package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MarketMetrics holds the counters for locks, orders, webhooks and the
// background tasks. A nil *MarketMetrics is valid and records nothing.
type MarketMetrics struct {
	LocksAcquiredTotal prometheus.Counter
	LockRejectedTotal  *prometheus.CounterVec

	OrderTransitionsTotal *prometheus.CounterVec
	OrdersPaidAmountTotal *prometheus.CounterVec

	WebhookEventsTotal     *prometheus.CounterVec
	WebhookProcessDuration *prometheus.HistogramVec

	SweepRunsTotal       *prometheus.CounterVec
	SweptListingsTotal   prometheus.Counter
	SweepFailuresTotal   prometheus.Counter
	SweepDuration        prometheus.Histogram
	LedgerPurgedTotal    prometheus.Counter
	EventPublishFailures *prometheus.CounterVec
}

func NewMarketMetrics(reg prometheus.Registerer) *MarketMetrics {
	f := promauto.With(reg)
	return &MarketMetrics{
		LocksAcquiredTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "market_locks_acquired_total",
			Help: "Listing locks acquired",
		}),
		LockRejectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "market_lock_rejected_total",
			Help: "Lock acquisitions rejected, by reason",
		}, []string{"reason"}),

		OrderTransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "market_order_transitions_total",
			Help: "Order status transitions",
		}, []string{"from", "to"}),
		OrdersPaidAmountTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "market_orders_paid_amount_cents_total",
			Help: "Sum of paid order prices in minor units",
		}, []string{"currency"}),

		WebhookEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "market_webhook_events_total",
			Help: "Payment webhook events by type and outcome",
		}, []string{"type", "outcome"}),
		WebhookProcessDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "market_webhook_process_duration_seconds",
			Help:    "Webhook ingest latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),

		SweepRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "market_sweep_runs_total",
			Help: "Expiry sweeper runs by trigger",
		}, []string{"trigger"}),
		SweptListingsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "market_swept_listings_total",
			Help: "Expired locks released by the sweeper",
		}),
		SweepFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "market_sweep_failures_total",
			Help: "Listings the sweeper failed to reconcile",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "market_sweep_duration_seconds",
			Help:    "Expiry sweeper run duration",
			Buckets: prometheus.DefBuckets,
		}),
		LedgerPurgedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "market_ledger_purged_total",
			Help: "Webhook ledger records purged",
		}),
		EventPublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "market_event_publish_failures_total",
			Help: "Lifecycle events that failed to publish",
		}, []string{"type"}),
	}
}

func (m *MarketMetrics) LockAcquired() {
	if m == nil {
		return
	}
	m.LocksAcquiredTotal.Inc()
}

func (m *MarketMetrics) LockRejected(reason string) {
	if m == nil {
		return
	}
	m.LockRejectedTotal.WithLabelValues(reason).Inc()
}

func (m *MarketMetrics) OrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.OrderTransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *MarketMetrics) OrderPaid(currency string, amountCents int64) {
	if m == nil {
		return
	}
	m.OrdersPaidAmountTotal.WithLabelValues(currency).Add(float64(amountCents))
}

func (m *MarketMetrics) WebhookEvent(eventType, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
	m.WebhookProcessDuration.WithLabelValues(eventType).Observe(seconds)
}

func (m *MarketMetrics) SweepRun(trigger string, swept, failed int, seconds float64) {
	if m == nil {
		return
	}
	m.SweepRunsTotal.WithLabelValues(trigger).Inc()
	m.SweptListingsTotal.Add(float64(swept))
	m.SweepFailuresTotal.Add(float64(failed))
	m.SweepDuration.Observe(seconds)
}

func (m *MarketMetrics) LedgerPurged(n int64) {
	if m == nil {
		return
	}
	m.LedgerPurgedTotal.Add(float64(n))
}

func (m *MarketMetrics) PublishFailed(eventType string) {
	if m == nil {
		return
	}
	m.EventPublishFailures.WithLabelValues(eventType).Inc()
}
