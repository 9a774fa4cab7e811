// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backtest metrics
	BacktestRunsTotal     *prometheus.CounterVec
	BacktestDuration      prometheus.Histogram
	BacktestDaysSimulated prometheus.Counter
	BacktestTradesClosed  prometheus.Counter
	BacktestMarks         *prometheus.CounterVec
	BacktestsInFlight     prometheus.Gauge
	DispatcherQueueDepth  prometheus.Gauge

	// Ingestion metrics
	QuotesImported *prometheus.CounterVec
	ImportErrors   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	WSSubscribers       prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastCompletedBacktest prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "optionforge"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Backtest metrics
		BacktestRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of finished backtest runs by status and error kind",
		}, []string{"status", "error_kind"}),
		BacktestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest execution duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		BacktestDaysSimulated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "days_simulated_total",
			Help:      "Total number of trading days simulated by completed runs",
		}),
		BacktestTradesClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_closed_total",
			Help:      "Total number of trades closed by completed runs",
		}),
		BacktestMarks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "marks_total",
			Help:      "Total number of position marks by source",
		}, []string{"source"}),
		BacktestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "in_flight",
			Help:      "Number of backtests currently executing",
		}),
		DispatcherQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "queue_depth",
			Help:      "Number of submitted backtests waiting for a worker",
		}),

		// Ingestion metrics
		QuotesImported: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "quotes_imported_total",
			Help:      "Total number of option quotes imported by format",
		}, []string{"format"}),
		ImportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "import_errors_total",
			Help:      "Total number of failed imports by format",
		}, []string{"format"}),

		// HTTP metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		WSSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "websocket_subscribers",
			Help:      "Number of open progress websocket connections",
		}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastCompletedBacktest: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_completed_backtest_timestamp",
			Help:      "Unix timestamp of the last completed backtest",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordBacktestRun records a finished run. errorKind is empty on success.
func (m *Metrics) RecordBacktestRun(status, errorKind string, durationSeconds float64) {
	m.BacktestRunsTotal.WithLabelValues(status, errorKind).Inc()
	m.BacktestDuration.Observe(durationSeconds)
}

// RecordBacktestOutput records the volume of a completed run.
func (m *Metrics) RecordBacktestOutput(days, trades, quoted, modeled, skipped int) {
	m.BacktestDaysSimulated.Add(float64(days))
	m.BacktestTradesClosed.Add(float64(trades))
	m.BacktestMarks.WithLabelValues("quote").Add(float64(quoted))
	m.BacktestMarks.WithLabelValues("model").Add(float64(modeled))
	m.BacktestMarks.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordImport records an import of n quotes in the given format.
func (m *Metrics) RecordImport(format string, n int, err error) {
	if err != nil {
		m.ImportErrors.WithLabelValues(format).Inc()
		return
	}
	m.QuotesImported.WithLabelValues(format).Add(float64(n))
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(route, code string, seconds float64) {
	m.HTTPRequests.WithLabelValues(route, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
