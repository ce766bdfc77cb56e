// Package metrics holds the Prometheus collectors shared by every binary.
// Service specific collectors live next to the code that updates them.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slotbook",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by method, path and status code.",
	}, []string{"method", "path", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "slotbook",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slotbook",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a rate limiter.",
	}, []string{"limiter"})

	outboundRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "slotbook",
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "Outbound calls to the calendar authority, by operation and outcome.",
	}, []string{"op", "outcome"})
)

func ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

func RateLimited(limiter string) {
	rateLimited.WithLabelValues(limiter).Inc()
}

// Outbound counts an authority call; outcome is "ok", "rejected" or "error".
func Outbound(op, outcome string) {
	outboundRequests.WithLabelValues(op, outcome).Inc()
}
