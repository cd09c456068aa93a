package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "personnelbase_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "personnelbase_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "personnelbase_logins_total",
		Help: "Count of login attempts by result",
	}, []string{"result"})

	cascadeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "personnelbase_tenant_cascade_operations_total",
		Help: "Count of tenant cascade deletions by result",
	}, []string{"result"})

	reconcileOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "personnelbase_reconcile_operations_total",
		Help: "Count of reconcile sweep steps by step and result",
	}, []string{"step", "result"})

	bulkUploadRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "personnelbase_bulk_upload_rows_total",
		Help: "Count of bulk upload rows by result",
	}, []string{"result"})

	personnelRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "personnelbase_personnel_records",
		Help: "Number of non-deleted personnel records at last sweep",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLogin increments the login counter for the given result.
func ObserveLogin(result string) {
	loginsTotal.WithLabelValues(result).Inc()
}

// ObserveCascade increments the tenant cascade counter for the given result.
func ObserveCascade(result string) {
	cascadeOperations.WithLabelValues(result).Inc()
}

// ObserveReconcile increments the reconcile counter for a sweep step.
func ObserveReconcile(step, result string) {
	reconcileOperations.WithLabelValues(step, result).Inc()
}

// ObserveBulkUploadRows adds to the bulk upload row counter.
func ObserveBulkUploadRows(result string, count int) {
	bulkUploadRows.WithLabelValues(result).Add(float64(count))
}

// SetPersonnelRecords sets the personnel record gauge.
func SetPersonnelRecords(count int) {
	if count < 0 {
		count = 0
	}
	personnelRecords.Set(float64(count))
}
