// Package metrics defines the Prometheus instruments shared by the
// care-monitoring services. Each service exposes them on its own /metrics
// endpoint; the "service" label keeps scrapes distinguishable when several
// services run in one process during development.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Bus metrics
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carepulse_bus_events_consumed_total",
			Help: "Events consumed from the bus, by queue and outcome",
		},
		[]string{"queue", "outcome"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carepulse_bus_events_published_total",
			Help: "Events published to the bus, by subject and outcome",
		},
		[]string{"subject", "outcome"},
	)

	// Resilience metrics
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carepulse_breaker_transitions_total",
			Help: "Circuit breaker state transitions, by dependency and new state",
		},
		[]string{"dependency", "state"},
	)

	// Notification metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carepulse_notifications_total",
			Help: "Notification delivery attempts, by channel and status",
		},
		[]string{"channel", "status"},
	)

	// Alert metrics
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carepulse_alerts_created_total",
			Help: "Alerts created, by type and severity",
		},
		[]string{"alert_type", "severity"},
	)

	// Dispatch metrics
	CallsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carepulse_calls_created_total",
			Help: "Emergency calls created, by priority",
		},
		[]string{"priority"},
	)

	CallsAssigned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carepulse_calls_assigned_total",
			Help: "Emergency calls successfully assigned to a dispatcher",
		},
	)

	// Prediction metrics
	PredictionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "carepulse_prediction_duration_seconds",
			Help:    "Duration of risk model inference in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PredictionsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carepulse_predictions_skipped_total",
			Help: "Telemetry batches skipped for lack of key features",
		},
	)
)

// Outcome label values for bus metrics.
const (
	OutcomeOK     = "ok"
	OutcomeError  = "error"
	OutcomeNacked = "nacked"
	OutcomeDupe   = "duplicate"
)
