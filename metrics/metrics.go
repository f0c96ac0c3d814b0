// Package metrics defines the Prometheus metrics exported on /metrics
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RouteQueries counts itinerary requests by direction and outcome
	RouteQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusplanner_route_queries_total",
		Help: "Number of itinerary requests, by direction (to_school, from_school) and outcome (ok, no_route, bad_request, error)",
	}, []string{"direction", "outcome"})

	// UpstreamLatency observes the duration of requests to third-party services
	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campusplanner_upstream_request_duration_seconds",
		Help:    "Duration of HTTP requests to third-party services",
		Buckets: prometheus.DefBuckets,
	}, []string{"upstream", "code"})

	// APIRequests counts API responses by resource and status code
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusplanner_api_requests_total",
		Help: "Number of API requests, by route and status code",
	}, []string{"route", "code"})

	// Users tracks the number of registered users, and how many completed onboarding
	Users = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "campusplanner_users",
		Help: "Number of registered users, by onboarding status",
	}, []string{"onboarded"})
)

// Route outcomes
const (
	OutcomeOK         = "ok"
	OutcomeNoRoute    = "no_route"
	OutcomeBadRequest = "bad_request"
	OutcomeError      = "error"
)

// Handler serves the metrics of the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// RegisterAge exports a gauge with the age, in seconds, of something that is
// periodically refreshed. lastUpdate returning the zero time exports -1.
func RegisterAge(name, help string, lastUpdate func() time.Time) error {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, func() float64 {
		t := lastUpdate()
		if t.IsZero() {
			return -1
		}
		return time.Since(t).Seconds()
	})
	err := prometheus.Register(gauge)
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		prometheus.Unregister(are.ExistingCollector)
		return prometheus.Register(gauge)
	}
	return err
}

type instrumentedTransport struct {
	upstream string
	base     http.RoundTripper
}

// InstrumentedTransport wraps base so that the duration of every request is
// observed in UpstreamLatency under the given upstream name
func InstrumentedTransport(upstream string, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &instrumentedTransport{upstream: upstream, base: base}
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	response, err := t.base.RoundTrip(req)
	code := "error"
	if err == nil {
		code = strconv.Itoa(response.StatusCode)
	}
	UpstreamLatency.WithLabelValues(t.upstream, code).Observe(time.Since(start).Seconds())
	return response, err
}
