// Package telemetry provides observability primitives for the budget server.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the server.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	AuthAttempts     *prometheus.CounterVec
	SessionsCreated  prometheus.Counter
	SessionsReaped   prometheus.Counter
	BudgetSaves      prometheus.Counter
	StaticCacheHits  prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "budget",
			Name:      "requests_total",
			Help:      "Total number of dispatched requests by route action.",
		}, []string{"action"}),

		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "budget",
			Name:                            "dispatch_duration_seconds",
			Help:                            "Time from accept to reply or actor hand-off.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"action"}),

		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "budget",
			Name:      "auth_attempts_total",
			Help:      "Register and login attempts by outcome.",
		}, []string{"op", "outcome"}),

		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "budget",
			Name:      "sessions_created_total",
			Help:      "Total user sessions spawned.",
		}),

		SessionsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "budget",
			Name:      "sessions_reaped_total",
			Help:      "Total user sessions removed by the timeout sweep.",
		}),

		BudgetSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "budget",
			Name:      "budget_saves_total",
			Help:      "Total budget persistence writes.",
		}),

		StaticCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "budget",
			Name:      "static_cache_hits_total",
			Help:      "Static file responses served from the byte cache.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.DispatchDuration,
		m.AuthAttempts,
		m.SessionsCreated,
		m.SessionsReaped,
		m.BudgetSaves,
		m.StaticCacheHits,
	)
	return m
}

// RegisterSessionsGauge exposes the live-session count as a gauge. Wired in
// main once the session manager exists.
func RegisterSessionsGauge(reg prometheus.Registerer, count func() float64) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "budget",
		Name:      "active_sessions",
		Help:      "Number of live user sessions.",
	}, count))
}
