// Package metrics exposes prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsCreated counts created sessions by mode (live or demo).
	SessionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emotionink_sessions_created_total",
		Help: "Number of sessions created.",
	}, []string{"mode"})

	// Turns counts completed interaction turns by mode and outcome.
	Turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emotionink_turns_total",
		Help: "Number of interaction turns processed.",
	}, []string{"mode", "outcome"})

	// GatewayErrors counts gateway failures by operation.
	GatewayErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emotionink_gateway_errors_total",
		Help: "Number of AI gateway failures.",
	}, []string{"op"})

	// GatewayDuration observes gateway call latency by operation.
	GatewayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "emotionink_gateway_request_seconds",
		Help:    "AI gateway request duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"op"})
)
