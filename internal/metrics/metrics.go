// Package metrics exposes the aggregation core's Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nightfeed"

var (
	// RecordsIngested counts processed scraped records by outcome:
	// inserted, updated, unchanged, error.
	RecordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "records_total",
		Help:      "Scraped records processed, by outcome.",
	}, []string{"outcome"})

	// MatchDecisions counts matcher outcomes per entity type:
	// linked, created, skipped.
	MatchDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "match",
		Name:      "decisions_total",
		Help:      "Matcher decisions, by entity type and decision.",
	}, []string{"entity_type", "decision"})

	// Transitions counts state machine executions by target status and result.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "workflow",
		Name:      "transitions_total",
		Help:      "Status transitions, by target status and result.",
	}, []string{"to_status", "result"})

	// ScrapeRuns counts orchestrated runs by final status.
	ScrapeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scrape",
		Name:      "runs_total",
		Help:      "Scrape runs, by final status.",
	}, []string{"status"})
)

// Handler serves the default registry; mounted on the HTTP API as /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
