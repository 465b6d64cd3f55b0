package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the router's Prometheus metrics
type Metrics struct {
	Queries       *prometheus.CounterVec
	Ambiguous     prometheus.Counter
	Degraded      *prometheus.CounterVec
	AnalyzerFails *prometheus.CounterVec
	Latency       *prometheus.HistogramVec
}

// NewMetrics registers router metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_router_queries_total",
			Help: "Total number of routed queries by type and mode",
		}, []string{"query_type", "mode"}),

		Ambiguous: factory.NewCounter(prometheus.CounterOpts{
			Name: "tutor_router_ambiguous_total",
			Help: "Queries answered with a clarification instead of dispatch",
		}),

		Degraded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_router_degraded_total",
			Help: "Responses returned with a degraded notice by reason",
		}, []string{"reason"}), // reason: "deadline", "analyzer_failed", "visual_unavailable"

		AnalyzerFails: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tutor_router_analyzer_failures_total",
			Help: "Analyzer failures by analyzer name",
		}, []string{"analyzer"}),

		// Up to the 30s visual deadline
		Latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tutor_router_route_duration_seconds",
			Help:    "Route latency in seconds by query type",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"query_type"}),
	}
}
