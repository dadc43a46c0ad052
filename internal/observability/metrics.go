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
	// Minting metrics
	MintBatches   prometheus.Counter
	PiecesMinted  prometheus.Counter
	MintErrors    *prometheus.CounterVec
	BatchSize     prometheus.Histogram
	LastGoldPrice prometheus.Gauge

	// Indexer metrics
	IndexerEventsApplied prometheus.Counter
	IndexerErrors        *prometheus.CounterVec
	IndexerLastApplied   prometheus.Gauge
	ObservationsStored   prometheus.Counter

	// HTTP metrics
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance with all metrics registered on reg.
// A nil reg registers on the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "patridefi"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Minting metrics
		MintBatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "batches_total",
			Help:      "Total number of successful mint batches",
		}),
		PiecesMinted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "pieces_total",
			Help:      "Total number of gold pieces minted",
		}),
		MintErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "errors_total",
			Help:      "Total number of rejected mint requests by reason",
		}, []string{"reason"}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "batch_size",
			Help:      "Number of pieces per mint batch",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		LastGoldPrice: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "last_gold_price",
			Help:      "Last gold price read from the oracle (8 decimals)",
		}),

		// Indexer metrics
		IndexerEventsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "events_applied_total",
			Help:      "Total number of log events applied to mirror stores",
		}),
		IndexerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "errors_total",
			Help:      "Total number of indexer errors by stage",
		}, []string{"stage"}),
		IndexerLastApplied: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "last_applied_seq",
			Help:      "Last log sequence applied by the indexer",
		}),
		ObservationsStored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "price_observations_total",
			Help:      "Total number of price observations written",
		}),

		// HTTP metrics
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration by route and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
