package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total number of HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartkosh_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration tracks request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartkosh_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ActiveRequests tracks currently active requests
	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartkosh_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)

	// ImportJobsTotal counts import jobs by terminal outcome
	ImportJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartkosh_import_jobs_total",
			Help: "Import jobs by terminal outcome",
		},
		[]string{"outcome"},
	)

	// ImportedTransactionsTotal counts ledger rows created by imports
	ImportedTransactionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartkosh_imported_transactions_total",
			Help: "Transactions created by statement imports",
		},
	)

	// ImportBatchDuration tracks how long each batch transaction takes to commit
	ImportBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartkosh_import_batch_duration_seconds",
			Help:    "Duration of each import batch transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ImportJobDuration tracks end-to-end import job duration
	ImportJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartkosh_import_job_duration_seconds",
			Help:    "End-to-end import job duration",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)
)

// MetricsMiddleware collects Prometheus metrics for every HTTP request.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ActiveRequests.Inc()
		defer ActiveRequests.Dec()

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
