// Package metrics exposes the service's Prometheus collectors on a
// dedicated registry, served at /metrics by the HTTP layer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service records into.
type Metrics struct {
	registry *prometheus.Registry

	// JobsProcessed counts worker jobs by action and outcome.
	JobsProcessed *prometheus.CounterVec

	// JobBatchDuration observes how long one dequeue batch takes.
	JobBatchDuration prometheus.Histogram

	// CidrsUpserted and CidrsDeleted count row-level mutations done by
	// the worker.
	CidrsUpserted prometheus.Counter
	CidrsDeleted  prometheus.Counter

	// CidrsSkipped counts inputs dropped during parsing, by reason
	// ("malformed", "non_global").
	CidrsSkipped *prometheus.CounterVec

	// ExpiredReaped counts rows removed by the TTL reaper.
	ExpiredReaped prometheus.Counter

	// HTTPRequests counts API requests by method, route and status.
	HTTPRequests *prometheus.CounterVec
}

// New builds the collectors on a fresh registry, including the standard Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry: reg,
		JobsProcessed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cidrd_jobs_processed_total",
				Help: "Queue jobs processed by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		JobBatchDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cidrd_job_batch_duration_seconds",
				Help:    "Duration of one job queue batch, dequeue to commit",
				Buckets: prometheus.DefBuckets,
			},
		),
		CidrsUpserted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cidrd_cidrs_upserted_total",
				Help: "CIDR rows written by the worker",
			},
		),
		CidrsDeleted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cidrd_cidrs_deleted_total",
				Help: "CIDR rows deleted by the worker",
			},
		),
		CidrsSkipped: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cidrd_cidrs_skipped_total",
				Help: "Input CIDRs dropped during parsing, by reason",
			},
			[]string{"reason"},
		),
		ExpiredReaped: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cidrd_expired_cidrs_reaped_total",
				Help: "CIDR rows removed because their TTL elapsed",
			},
		),
		HTTPRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cidrd_http_requests_total",
				Help: "API requests by method, route and status code",
			},
			[]string{"method", "route", "status"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
