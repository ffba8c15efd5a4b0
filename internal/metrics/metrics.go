// Package metrics exposes Prometheus collectors for the campaign service.
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
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	scrapePagesTotal           *prometheus.CounterVec
	generationsTotal           *prometheus.CounterVec
	completionRequestsTotal    *prometheus.CounterVec
	completionDurationSeconds  prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30, 60},
			},
			[]string{"method", "route"},
		)

		scrapePagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaign_scrape_pages_total",
				Help: "Total number of product pages scraped, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		generationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaign_generations_total",
				Help: "Total number of campaign generation attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		completionRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaign_completion_requests_total",
				Help: "Total number of completion service calls, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		completionDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "campaign_completion_duration_seconds",
				Help:    "Histogram of completion service call latencies.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
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
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveScrape increments the scrape counter for the given site and outcome.
func ObserveScrape(site string, outcome string) {
	scrapePagesTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
}

// ObserveGeneration increments the generation counter for the given outcome.
func ObserveGeneration(outcome string) {
	generationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCompletion records one completion service call.
func ObserveCompletion(duration time.Duration, err error) {
	outcome := "succeeded"
	if err != nil {
		outcome = "failed"
	}
	completionRequestsTotal.WithLabelValues(outcome).Inc()
	completionDurationSeconds.Observe(duration.Seconds())
}
