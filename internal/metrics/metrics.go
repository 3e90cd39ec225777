// Package metrics defines the Prometheus collectors exported by semsearch.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "semsearch",
			Name:      "search_requests_total",
			Help:      "Total number of nearest-neighbor searches",
		},
		[]string{"collection", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "semsearch",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration (embed + index query) in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"collection"},
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "semsearch",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding calls",
		},
		[]string{"embedder", "kind", "status"},
	)

	EmbeddingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "semsearch",
			Name:      "embedding_duration_seconds",
			Help:      "Embedding call duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"embedder", "kind"},
	)

	BootstrapTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "semsearch",
			Name:      "bootstrap_total",
			Help:      "Collection bootstrap outcomes",
		},
		[]string{"collection", "result"}, // "created" / "already_ready" / "error"
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "semsearch",
			Name:      "sessions_active",
			Help:      "Number of live query sessions held by the HTTP server",
		},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SearchRequestsTotal,
			SearchDuration,
			EmbeddingRequestsTotal,
			EmbeddingDuration,
			BootstrapTotal,
			SessionsActive,
		)
	})
}
