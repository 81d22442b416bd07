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
	// Backtest metrics
	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	BarsProcessed  prometheus.Counter
	TradesClosed   *prometheus.CounterVec
	IndicatorTimes *prometheus.HistogramVec

	// Sweep metrics
	SweepConfigsEvaluated prometheus.Counter
	SweepInFlight         prometheus.Gauge

	// Storage metrics
	StoreQueryDuration *prometheus.HistogramVec
	StoreQueryErrors   *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	BarsIngested       *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "signal_backtest_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Backtest metrics
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by kind and status",
		}, []string{"kind", "status"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"kind"}),
		BarsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "bars_processed_total",
			Help:      "Total number of bars stepped through the position machine",
		}),
		TradesClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_closed_total",
			Help:      "Total number of closed trades by exit reason",
		}, []string{"reason"}),
		IndicatorTimes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "vote_computation_seconds",
			Help:      "Time to compute and aggregate all indicator votes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"indicators"}),

		// Sweep metrics
		SweepConfigsEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "configs_evaluated_total",
			Help:      "Total number of sweep configurations simulated",
		}),
		SweepInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "in_flight",
			Help:      "Number of sweep simulations currently running",
		}),

		// Storage metrics
		StoreQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_duration_seconds",
			Help:      "Bar store query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		StoreQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_errors_total",
			Help:      "Total number of bar store query errors",
		}, []string{"backend", "operation"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "cache_lookups_total",
			Help:      "Bar cache lookups by result",
		}, []string{"result"}),
		BarsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "bars_ingested_total",
			Help:      "Total number of bars written by backend",
		}, []string{"backend"}),

		// Health metrics
		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful backtest run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// Run status labels
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RecordRun records a finished run of the given kind (backtest, sweep, verify).
func RecordRun(kind string, err error, duration time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	DefaultMetrics.RunsTotal.WithLabelValues(kind, status).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if err == nil {
		DefaultMetrics.LastSuccessfulRun.SetToCurrentTime()
	}
}

// RecordBarsProcessed adds n stepped bars.
func RecordBarsProcessed(n int) {
	DefaultMetrics.BarsProcessed.Add(float64(n))
}

// RecordTradeClosed increments the closed trades counter for reason.
func RecordTradeClosed(reason string) {
	DefaultMetrics.TradesClosed.WithLabelValues(reason).Inc()
}

// RecordVoteComputation records the time spent producing votes for n indicators.
func RecordVoteComputation(indicators string, duration time.Duration) {
	DefaultMetrics.IndicatorTimes.WithLabelValues(indicators).Observe(duration.Seconds())
}

// SweepStarted marks one sweep simulation as running.
func SweepStarted() {
	DefaultMetrics.SweepInFlight.Inc()
}

// SweepFinished marks one sweep simulation as done.
func SweepFinished() {
	DefaultMetrics.SweepInFlight.Dec()
	DefaultMetrics.SweepConfigsEvaluated.Inc()
}

// RecordStoreQuery records bar store query metrics.
func RecordStoreQuery(backend, operation string, duration time.Duration, err error) {
	DefaultMetrics.StoreQueryDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if err != nil {
		DefaultMetrics.StoreQueryErrors.WithLabelValues(backend, operation).Inc()
	}
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(result).Inc()
}

// RecordBarsIngested adds n bars written to backend.
func RecordBarsIngested(backend string, n int) {
	DefaultMetrics.BarsIngested.WithLabelValues(backend).Add(float64(n))
}
