// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pageFetchesTotal              *prometheus.CounterVec
	referencesTotal               *prometheus.CounterVec
	retrievalsTotal               *prometheus.CounterVec
	bytesTotal                    *prometheus.CounterVec
	retrievalDurationSeconds      prometheus.Histogram
	activeWorkers                 prometheus.Gauge
	rateLimitDelaysSeconds        *prometheus.HistogramVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec
	crawlsTotal                   prometheus.Counter
	lastCrawlBandwidthMegabytesPS prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pageFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miles_page_fetches_total",
				Help: "Total number of base page fetches, labeled by status.",
			},
			[]string{"status"},
		)

		referencesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miles_references_total",
				Help: "Total number of resource references extracted, labeled by type.",
			},
			[]string{"type"},
		)

		retrievalsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miles_retrievals_total",
				Help: "Total number of retrieval attempts, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		bytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miles_bytes_total",
				Help: "Total number of bytes written to disk, labeled by site.",
			},
			[]string{"site"},
		)

		retrievalDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "miles_retrieval_duration_seconds",
				Help:    "Histogram of retrieval latencies, fetch and write included.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "miles_active_workers",
				Help: "Number of workers currently running a retrieval.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miles_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests to the metrics endpoint, labeled by method and code.",
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

		crawlsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "miles_crawls_total",
				Help: "Total number of completed crawl runs.",
			},
		)

		lastCrawlBandwidthMegabytesPS = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "miles_last_crawl_bandwidth_megabytes_per_second",
				Help: "Bandwidth reported by the most recent crawl run.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObservePageFetch counts a base page fetch.
func ObservePageFetch(status string) {
	Init()
	pageFetchesTotal.WithLabelValues(status).Inc()
}

// ObserveReference counts one extracted reference of the given type.
func ObserveReference(resourceType string) {
	Init()
	referencesTotal.WithLabelValues(resourceType).Inc()
}

// ObserveRetrieval records a retrieval attempt and the bytes it saved.
func ObserveRetrieval(locator, status string, bytesWritten int64, duration time.Duration) {
	Init()
	site := SanitizeSite(locator)
	retrievalsTotal.WithLabelValues(site, status).Inc()
	if bytesWritten > 0 {
		bytesTotal.WithLabelValues(site).Add(float64(bytesWritten))
	}
	retrievalDurationSeconds.Observe(duration.Seconds())
}

// ObserveCrawl records the bandwidth of a finished crawl run.
func ObserveCrawl(bandwidth float64) {
	Init()
	crawlsTotal.Inc()
	lastCrawlBandwidthMegabytesPS.Set(bandwidth)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
