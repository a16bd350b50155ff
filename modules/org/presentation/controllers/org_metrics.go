package controllers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	orgAPIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "org",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Org API requests by endpoint, status code and method.",
	}, []string{"endpoint", "code", "method"})

	orgAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "org",
		Subsystem: "api",
		Name:      "latency_seconds",
		Help:      "Org API latency. Writes include serializable retries.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"endpoint", "code", "method"})

	orgAPIInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "org",
		Subsystem: "api",
		Name:      "in_flight_requests",
		Help:      "Org API requests currently being served.",
	}, []string{"endpoint"})
)

// instrumentAPI labels metrics with a stable endpoint name instead of the raw
// path, which carries ids.
func instrumentAPI(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	labels := prometheus.Labels{"endpoint": endpoint}
	h := promhttp.InstrumentHandlerInFlight(
		orgAPIInFlight.With(labels),
		promhttp.InstrumentHandlerDuration(
			orgAPILatency.MustCurryWith(labels),
			promhttp.InstrumentHandlerCounter(orgAPIRequests.MustCurryWith(labels), next),
		),
	)
	return h.ServeHTTP
}
