package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the service's Prometheus metrics.
type Collector struct {
	// Ingestion metrics
	DocumentsProcessed *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	QueueDepth         prometheus.Gauge

	// Retrieval metrics
	SearchLatency *prometheus.HistogramVec
	ChatRequests  *prometheus.CounterVec

	// Embedding metrics
	EmbeddingLatency  prometheus.Histogram
	EmbeddingsCreated prometheus.Counter
}

// NewCollector creates the service metrics and registers them with reg. A
// nil reg uses the default registry, which is what the metrics endpoint
// serves.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		DocumentsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_processed_total",
				Help: "Documents that finished the ingestion pipeline, by terminal status",
			},
			[]string{"status"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "document_processing_duration_seconds",
				Help:    "Time spent per ingestion stage in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"stage"},
		),

		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_queue_depth",
				Help: "Documents waiting in the ingestion queue",
			},
		),

		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Retrieval latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method"},
		),

		ChatRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_requests_total",
				Help: "Chat requests by outcome",
			},
			[]string{"status"},
		),

		EmbeddingLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "embedding_latency_seconds",
				Help:    "Embedding API call latency in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),

		EmbeddingsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "embeddings_created_total",
				Help: "Total embedding vectors generated",
			},
		),
	}

	reg.MustRegister(
		c.DocumentsProcessed,
		c.ProcessingDuration,
		c.QueueDepth,
		c.SearchLatency,
		c.ChatRequests,
		c.EmbeddingLatency,
		c.EmbeddingsCreated,
	)

	return c
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.Handler()
}
