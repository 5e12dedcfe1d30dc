// Package metrics registers the Prometheus instrumentation for the batch
// pipeline and the charge module client.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "billing_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultRetry   = "retry"
	ResultDead    = "dead"
)

var (
	registerOnce sync.Once

	jobsTotal   *prometheus.CounterVec
	jobLatency  *prometheus.HistogramVec
	ledgerCalls *prometheus.CounterVec
	batchTotal  *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
)

// Init registers the billing metrics with the default registry. Safe to
// call more than once.
func Init() {
	registerOnce.Do(func() {
		jobsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "jobs_total",
				Help: "Pipeline jobs processed by stage and result",
			},
			[]string{"stage", "result"},
		)
		jobLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "job_duration_seconds",
				Help:    "Pipeline job duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		)
		ledgerCalls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_requests_total",
				Help: "Charge module requests by operation and result",
			},
			[]string{"operation", "result"},
		)
		batchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batches_total",
				Help: "Batches reaching a terminal status",
			},
			[]string{"type", "status"},
		)

		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		)

		prometheus.MustRegister(jobsTotal, jobLatency, ledgerCalls, batchTotal, httpRequests, httpLatency)
	})
}

// RecordJob counts one processed pipeline job.
func RecordJob(stage, result string, duration time.Duration) {
	if jobsTotal == nil {
		return
	}
	jobsTotal.WithLabelValues(stage, result).Inc()
	jobLatency.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordLedgerCall counts one charge module request.
func RecordLedgerCall(operation, result string) {
	if ledgerCalls == nil {
		return
	}
	ledgerCalls.WithLabelValues(operation, result).Inc()
}

// RecordHTTPRequest counts one served HTTP request.
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if httpRequests == nil {
		return
	}
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordBatchFinished counts a batch reaching a terminal status.
func RecordBatchFinished(batchType, status string) {
	if batchTotal == nil {
		return
	}
	batchTotal.WithLabelValues(batchType, status).Inc()
}
