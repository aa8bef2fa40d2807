package metrics

import (
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var uuidRegex = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method"},
	)

	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs submitted to the queue",
		},
		[]string{"job_type"},
	)

	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total number of processed jobs by outcome",
		},
		[]string{"job_type", "status"},
	)

	JobsProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobs_processing_duration_seconds",
			Help:    "Job processing duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"job_type", "stage"},
	)

	WorkerPoolActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_pool_active_jobs",
			Help: "Number of jobs currently being processed",
		},
	)

	WorkerPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_pool_size",
			Help: "Configured worker pool concurrency",
		},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of individual video pipeline stages",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"stage"},
	)

	ThumbnailsGenerated = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thumbnails_generated_per_job",
			Help:    "Number of thumbnails generated per job",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
		},
	)

	TranscodeOutputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transcode_output_bytes",
			Help:    "Size of transcoded video outputs in bytes",
			Buckets: prometheus.ExponentialBuckets(1024*1024, 4, 10),
		},
	)

	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of object storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Object storage operation duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	StorageBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_bytes_total",
			Help: "Total bytes moved to and from object storage",
		},
		[]string{"operation"},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and environment information",
		},
		[]string{"version", "environment", "component"},
	)
)

func SetAppInfo(version, environment, component string) {
	AppInfo.WithLabelValues(version, environment, component).Set(1)
}

func SetWorkerPoolSize(size int) {
	WorkerPoolSize.Set(float64(size))
}

// NormalizePath collapses UUIDs so path labels stay low-cardinality.
func NormalizePath(path string) string {
	return uuidRegex.ReplaceAllString(path, ":id")
}
