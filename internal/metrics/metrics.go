// Package metrics collects Prometheus metrics for ingestion and token refreshes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the counters. A nil *Collector records nothing.
type Collector struct {
	ingested       *prometheus.CounterVec
	skipped        *prometheus.CounterVec
	tokenRefreshes *prometheus.CounterVec
	upstreamCalls  *prometheus.CounterVec
	importPages    prometheus.Counter
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stravastats_activities_ingested_total",
			Help: "Activities upserted into the repository, by source.",
		}, []string{"source"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stravastats_activities_skipped_total",
			Help: "Activity payloads not stored, by reason.",
		}, []string{"reason"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stravastats_token_refreshes_total",
			Help: "Upstream token refresh attempts, by result.",
		}, []string{"result"}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stravastats_upstream_calls_total",
			Help: "Strava API calls, by operation and result.",
		}, []string{"op", "result"}),
		importPages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stravastats_import_pages_total",
			Help: "Activity listing pages fetched by historical imports.",
		}),
	}

	reg.MustRegister(c.ingested, c.skipped, c.tokenRefreshes, c.upstreamCalls, c.importPages)
	return c
}

// Handler exposes the metrics registered with g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (c *Collector) RecordIngested(source string) {
	if c == nil {
		return
	}
	c.ingested.WithLabelValues(source).Inc()
}

func (c *Collector) RecordSkipped(reason string) {
	if c == nil {
		return
	}
	c.skipped.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordTokenRefresh(result string) {
	if c == nil {
		return
	}
	c.tokenRefreshes.WithLabelValues(result).Inc()
}

// RecordUpstreamCall counts a Strava call; err decides the result label.
func (c *Collector) RecordUpstreamCall(op string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.upstreamCalls.WithLabelValues(op, result).Inc()
}

func (c *Collector) RecordImportPage() {
	if c == nil {
		return
	}
	c.importPages.Inc()
}
