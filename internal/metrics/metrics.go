// Package metrics exposes Prometheus collectors for the catalog crawler.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	listingPagesTotal          *prometheus.CounterVec
	linksDiscoveredTotal       prometheus.Counter
	recordsExtractedTotal      *prometheus.CounterVec
	extractorFailuresTotal     *prometheus.CounterVec
	phaseEventsTotal           *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		listingPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_listing_pages_total",
				Help: "Total number of listing page steps, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		linksDiscoveredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_links_discovered_total",
				Help: "Total number of product links collected from listing pages.",
			},
		)

		recordsExtractedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_records_extracted_total",
				Help: "Total number of product records extracted, labeled by bundle kind.",
			},
			[]string{"bundle_kind"},
		)

		extractorFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_extractor_failures_total",
				Help: "Total number of extraction source failures, labeled by source.",
			},
			[]string{"source"},
		)

		phaseEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_phase_events_total",
				Help: "Total number of crawl and navigation phase transitions.",
			},
			[]string{"phase", "event"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// BundleKind collapses a bundle label to a low-cardinality metric label.
func BundleKind(bundle string) string {
	switch {
	case bundle == "Single":
		return "single"
	case strings.HasPrefix(bundle, "Case ("):
		return "case"
	case strings.HasPrefix(bundle, "Pack ("):
		return "pack"
	default:
		return "other"
	}
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveListingPage counts one crawl step by outcome.
func ObserveListingPage(outcome string) {
	Init()
	listingPagesTotal.WithLabelValues(outcome).Inc()
}

// ObserveLinksDiscovered adds n collected product links.
func ObserveLinksDiscovered(n int) {
	Init()
	if n > 0 {
		linksDiscoveredTotal.Add(float64(n))
	}
}

// ObserveRecord counts one extracted record.
func ObserveRecord(bundle string) {
	Init()
	recordsExtractedTotal.WithLabelValues(BundleKind(bundle)).Inc()
}

// ObserveExtractorFailure counts a failed extraction source.
func ObserveExtractorFailure(source string) {
	Init()
	extractorFailuresTotal.WithLabelValues(source).Inc()
}

// ObservePhaseEvent counts a phase transition such as crawl/started.
func ObservePhaseEvent(phase, event string) {
	Init()
	phaseEventsTotal.WithLabelValues(phase, event).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
