// Package metrics registers the Prometheus collectors of the ledger.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CascadeRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_cascade_runs_total",
			Help: "Total number of balance cascade runs",
		},
		[]string{"result"},
	)

	CascadeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_cascade_duration_seconds",
			Help:    "Duration of balance cascade runs",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2},
		},
	)

	CascadePeriods = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_cascade_periods",
			Help:    "Number of months recomputed per cascade run",
			Buckets: []float64{0, 1, 2, 3, 6, 9, 12},
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	SuspiciousRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_http_suspicious_requests_total",
			Help: "Requests matching a known attack pattern",
		},
	)
)

// ObserveCascade records the outcome of one run.
func ObserveCascade(periods int, err error) {
	if err != nil {
		CascadeRuns.WithLabelValues("error").Inc()
		return
	}
	CascadeRuns.WithLabelValues("ok").Inc()
	CascadePeriods.Observe(float64(periods))
}

// ObserveHTTP counts a served request.
func ObserveHTTP(route string, status int) {
	HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
