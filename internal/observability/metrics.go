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
	// Pipeline metrics
	SignalsReceived    prometheus.Counter
	SignalsDropped     *prometheus.CounterVec
	CandidatesScreened *prometheus.CounterVec
	EntriesAnalyzed    *prometheus.CounterVec

	// Trading metrics
	PositionsOpened  prometheus.Counter
	PositionsClosed  *prometheus.CounterVec
	OpenPositions    prometheus.Gauge
	TicksProcessed   prometheus.Counter
	RealizedPnLSOL   prometheus.Gauge
	CashBalanceSOL   prometheus.Gauge
	TotalValueSOL    prometheus.Gauge

	// Collaborator metrics
	CollaboratorLatency *prometheus.HistogramVec
	CollaboratorErrors  *prometheus.CounterVec

	// Persistence metrics
	PersistQueueDepth  prometheus.Gauge
	PersistWrites      *prometheus.CounterVec
	PersistRetries     prometheus.Counter

	// Broadcast metrics
	ObserversConnected prometheus.Gauge
	MessagesDropped    prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_auto_trader"
	}

	return &Metrics{
		SignalsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "signals_received_total",
			Help:      "Total number of signals received from the feed",
		}),
		SignalsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "signals_dropped_total",
			Help:      "Total number of signals dropped before screening by reason",
		}, []string{"reason"}),
		CandidatesScreened: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "candidates_screened_total",
			Help:      "Total number of screening verdicts by outcome",
		}, []string{"outcome"}),
		EntriesAnalyzed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "entries_analyzed_total",
			Help:      "Total number of entry analyses by outcome",
		}, []string{"outcome"}),

		PositionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "positions_opened_total",
			Help:      "Total number of positions opened",
		}),
		PositionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "positions_closed_total",
			Help:      "Total number of positions closed by exit reason",
		}, []string{"reason"}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "open_positions",
			Help:      "Current number of open positions",
		}),
		TicksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "ticks_processed_total",
			Help:      "Total number of ticks processed by position monitors",
		}),
		RealizedPnLSOL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "realized_pnl_sol",
			Help:      "Cumulative realized P&L in SOL",
		}),
		CashBalanceSOL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "cash_balance_sol",
			Help:      "Current SOL cash balance",
		}),
		TotalValueSOL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "total_value_sol",
			Help:      "Cash plus open positions at last-known prices",
		}),

		CollaboratorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collaborator",
			Name:      "request_latency_seconds",
			Help:      "External collaborator request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		CollaboratorErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collaborator",
			Name:      "request_errors_total",
			Help:      "Total number of collaborator request failures",
		}, []string{"service"}),

		PersistQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "queue_depth",
			Help:      "Fills waiting for a durable write",
		}),
		PersistWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "writes_total",
			Help:      "Total number of durable-write attempts by status",
		}, []string{"status"}),
		PersistRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persist",
			Name:      "retries_total",
			Help:      "Total number of durable-write retries",
		}),

		ObserversConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "observers_connected",
			Help:      "Current number of connected observers",
		}),
		MessagesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "messages_dropped_total",
			Help:      "Total number of messages dropped on full observer buffers",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
