// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Feed metrics
	FeedEventsReceived *prometheus.CounterVec
	FeedFramesDropped  *prometheus.CounterVec
	FeedReconnects     prometheus.Counter

	// Ledger metrics
	LedgerSize        prometheus.Gauge
	LedgerEvictions   prometheus.Counter
	TradesUnknownMint prometheus.Counter
	ViewFlushes       prometheus.Counter

	// Persistence metrics
	PersistQueueDepth prometheus.Gauge
	PersistDropped    prometheus.Counter
	PersistErrors     *prometheus.CounterVec
	DBQueryDuration   *prometheus.HistogramVec

	// Execution metrics
	TradesExecuted *prometheus.CounterVec
	TradeDuration  prometheus.Histogram

	// Wallet metrics
	BalanceRefreshes prometheus.Counter
	WalletBalanceSol *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pump_deck"
	}

	return &Metrics{
		// Feed metrics
		FeedEventsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_received_total",
			Help:      "Total number of decoded feed events by kind",
		}, []string{"kind"}),
		FeedFramesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "frames_dropped_total",
			Help:      "Total number of dropped feed frames by reason",
		}, []string{"reason"}),
		FeedReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of feed reconnections",
		}),

		// Ledger metrics
		LedgerSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "size",
			Help:      "Current number of live token entities",
		}),
		LedgerEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "evictions_total",
			Help:      "Total number of entities evicted at capacity",
		}),
		TradesUnknownMint: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "trades_unknown_mint_total",
			Help:      "Total number of trades dropped for unknown mints",
		}),
		ViewFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "view_flushes_total",
			Help:      "Total number of coalesced view recompute signals",
		}),

		// Persistence metrics
		PersistQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "queue_depth",
			Help:      "Current depth of the persistence write queue",
		}),
		PersistDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "dropped_total",
			Help:      "Total number of writes dropped by the overflow policy",
		}),
		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "errors_total",
			Help:      "Total number of persistence errors by store",
		}, []string{"store"}),
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "query_duration_seconds",
			Help:      "Database query duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),

		// Execution metrics
		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trades_total",
			Help:      "Total number of trade executions by action and outcome",
		}, []string{"action", "outcome"}),
		TradeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "trade_duration_seconds",
			Help:      "End-to-end trade execution duration",
			Buckets:   prometheus.DefBuckets,
		}),

		// Wallet metrics
		BalanceRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "balance_refreshes_total",
			Help:      "Total number of batched balance refresh calls",
		}),
		WalletBalanceSol: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "balance_sol",
			Help:      "Last known wallet balance in SOL",
		}, []string{"wallet"}),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFeedEvent increments the feed events counter for one kind.
func RecordFeedEvent(kind string) {
	DefaultMetrics.FeedEventsReceived.WithLabelValues(kind).Inc()
}

// RecordFrameDropped records a dropped feed frame.
func RecordFrameDropped(reason string) {
	DefaultMetrics.FeedFramesDropped.WithLabelValues(reason).Inc()
}

// RecordReconnect increments the feed reconnect counter.
func RecordReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// UpdateLedgerSize updates the ledger size gauge.
func UpdateLedgerSize(n int) {
	DefaultMetrics.LedgerSize.Set(float64(n))
}

// RecordEviction counts one capacity eviction.
func RecordEviction() {
	DefaultMetrics.LedgerEvictions.Inc()
}

// RecordUnknownMintTrade counts a trade dropped for an unknown mint.
func RecordUnknownMintTrade() {
	DefaultMetrics.TradesUnknownMint.Inc()
}

// RecordViewFlush counts one coalesced recompute signal.
func RecordViewFlush() {
	DefaultMetrics.ViewFlushes.Inc()
}

// UpdatePersistQueueDepth updates the write queue depth gauge.
func UpdatePersistQueueDepth(n int) {
	DefaultMetrics.PersistQueueDepth.Set(float64(n))
}

// RecordPersistDropped counts a write dropped by the overflow policy.
func RecordPersistDropped() {
	DefaultMetrics.PersistDropped.Inc()
}

// RecordPersistError counts a persistence error for one store.
func RecordPersistError(store string) {
	DefaultMetrics.PersistErrors.WithLabelValues(store).Inc()
}

// ObserveDBQuery records one database query duration.
func ObserveDBQuery(database, operation string, d time.Duration) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
}

// RecordTrade records one trade execution outcome.
func RecordTrade(action, outcome string, durationSeconds float64) {
	DefaultMetrics.TradesExecuted.WithLabelValues(action, outcome).Inc()
	DefaultMetrics.TradeDuration.Observe(durationSeconds)
}

// RecordBalanceRefresh records a batched balance refresh and the resolved
// balances.
func RecordBalanceRefresh(balances map[string]float64) {
	DefaultMetrics.BalanceRefreshes.Inc()
	for wallet, bal := range balances {
		DefaultMetrics.WalletBalanceSol.WithLabelValues(wallet).Set(bal)
	}
}
