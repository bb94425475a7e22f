// Package events defines standard subject names for the care-monitoring bus.
package events

// Subject constants for the care-monitoring message bus.
// Follow the pattern: {domain}.{action}.{resource}
const (
	// Telemetry subjects - raw wearable/sensor readings from the ingest edge
	SubjectTelemetryReceived = "telemetry.data.received"

	// AI pipeline subjects - published by the predict service
	SubjectPredictionGenerated = "ai.prediction.generated" // Every scored telemetry batch
	SubjectRiskAlert           = "ai.risk.alert"           // Risk score crossed the alert threshold

	// Alert lifecycle subjects - published by the alert service
	SubjectAlertCreated = "alert.created"

	// Location subjects - published by the location edge
	SubjectGeofenceViolation = "location.geofence.violation"

	// Dispatcher subjects - published by the dispatch service
	SubjectCallCreated = "dispatcher.call.created"
)

// Durable consumer (queue) names. Each queue is an independent cursor over
// the stream: risk-alert-queue and dispatcher-risk-alert-queue both receive
// every ai.risk.alert event.
const (
	QueueTelemetry         = "telemetry-queue"
	QueueRiskAlert         = "risk-alert-queue"
	QueueDispatcherRisk    = "dispatcher-risk-alert-queue"
	QueueGeofenceViolation = "geofence-violation-queue"
	QueueAlertCreated      = "alert-created-queue"
)

// StreamName is the durable stream capturing all care-monitoring events.
// It plays the role of the topic exchange in the broker topology.
const StreamName = "CARE_EVENTS"

// StreamSubjects are the subject families captured by the stream.
var StreamSubjects = []string{
	"telemetry.>",
	"ai.>",
	"alert.>",
	"location.>",
	"dispatcher.>",
}
