package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssetsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediavault",
		Name:      "assets_ingested_total",
		Help:      "Total number of asset uploads, by outcome (created/duplicate/rejected)",
	}, []string{"outcome"})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediavault",
		Name:      "jobs_processed_total",
		Help:      "Total job deliveries, by job type and outcome (ok/retry/failed)",
	}, []string{"job", "outcome"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediavault",
		Name:      "job_duration_seconds",
		Help:      "Duration of job handler execution",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"job"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediavault",
		Name:      "queue_depth",
		Help:      "Number of pending jobs in the queue",
	})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mediavault",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected",
	})

	FacesMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediavault",
		Name:      "faces_matched_total",
		Help:      "Face identity resolutions, by outcome (matched/new_person)",
	}, []string{"outcome"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediavault",
		Name:      "inference_duration_seconds",
		Help:      "Duration of inference service calls",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"operation"})

	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediavault",
		Name:      "search_duration_seconds",
		Help:      "Duration of search queries, by mode (metadata/smart)",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode"})

	IndexBatchFlushes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mediavault",
		Name:      "index_batch_flushes_total",
		Help:      "Number of debounced search-index batch flushes",
	})

	IndexBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mediavault",
		Name:      "index_batch_size",
		Help:      "Entities applied per search-index batch flush",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediavault",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediavault",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
