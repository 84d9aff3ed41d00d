package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

type Registry struct {
	reg *prometheus.Registry

	EnrichRequests *prometheus.CounterVec // category, outcome
	EnrichLatency  *prometheus.HistogramVec
	StatusUpdates  *prometheus.CounterVec // outcome
	ViewCacheHits  prometheus.Counter
	ViewCacheMiss  prometheus.Counter
	InvoicesIssued *prometheus.CounterVec // format
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	enrichRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderdesk_enrich_requests_total",
		Help: "Catalog enrichment lookups by category and outcome.",
	}, []string{"category", "outcome"})
	enrichLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orderdesk_enrich_latency_seconds",
		Help:    "Catalog lookup latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"category"})
	statusUpdates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderdesk_status_updates_total",
		Help: "Order status update attempts by outcome.",
	}, []string{"outcome"})
	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_view_cache_hits_total"})
	cacheMiss := prometheus.NewCounter(prometheus.CounterOpts{Name: "orderdesk_view_cache_misses_total"})
	invoices := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderdesk_invoices_rendered_total",
		Help: "Invoices rendered by output format.",
	}, []string{"format"})

	r.MustRegister(
		enrichRequests, enrichLatency, statusUpdates, cacheHits, cacheMiss, invoices,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{
		reg:            r,
		EnrichRequests: enrichRequests,
		EnrichLatency:  enrichLatency,
		StatusUpdates:  statusUpdates,
		ViewCacheHits:  cacheHits,
		ViewCacheMiss:  cacheMiss,
		InvoicesIssued: invoices,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
