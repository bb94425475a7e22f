package events

import "time"

// Source names stamped into envelopes by each producer.
const (
	SourcePredict  = "predict-service"
	SourceAlert    = "alert-service"
	SourceNotify   = "notify-service"
	SourceDispatch = "dispatch-service"
)

// TelemetryMetric is a single sensor reading inside a telemetry event.
type TelemetryMetric struct {
	Type         string    `json:"type"`
	Value        float64   `json:"value"`
	Unit         string    `json:"unit,omitempty"`
	QualityScore *float64  `json:"qualityScore,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// TelemetryLocation is an optional device position attached to telemetry.
type TelemetryLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Source    string  `json:"source,omitempty"`
}

// TelemetryData is the payload of telemetry.data.received.
type TelemetryData struct {
	DeviceID string             `json:"deviceId,omitempty"`
	Metrics  []TelemetryMetric  `json:"metrics"`
	Location *TelemetryLocation `json:"location,omitempty"`
}

// PredictionOutput is the scored result embedded in prediction events.
type PredictionOutput struct {
	RiskScore   float64  `json:"riskScore"`
	Confidence  float64  `json:"confidence"`
	Severity    string   `json:"severity"`
	TimeHorizon string   `json:"timeHorizon,omitempty"`
	Factors     []string `json:"factors,omitempty"`
}

// PredictionGeneratedData is the payload of ai.prediction.generated.
type PredictionGeneratedData struct {
	PredictionType     string             `json:"predictionType"`
	ModelID            string             `json:"modelId"`
	ModelVersion       string             `json:"modelVersion"`
	InputFeatures      map[string]float64 `json:"inputFeatures"`
	Output             PredictionOutput   `json:"output"`
	InferenceLatencyMs int64              `json:"inferenceLatencyMs"`
}

// RiskAlertData is the payload of ai.risk.alert.
type RiskAlertData struct {
	AlertType      string  `json:"alertType"`
	RiskScore      float64 `json:"riskScore"`
	Confidence     float64 `json:"confidence"`
	Priority       int     `json:"priority"`
	Severity       string  `json:"severity"`
	Recommendation string  `json:"recommendation,omitempty"`
	ModelID        string  `json:"modelId"`
	ModelVersion   string  `json:"modelVersion"`
}

// AlertCreatedData is the payload of alert.created.
type AlertCreatedData struct {
	AlertID      string    `json:"alertId"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	AlertType    string    `json:"alertType"`
	Severity     string    `json:"severity"`
	Status       string    `json:"status"`
	AIConfidence *float64  `json:"aiConfidence,omitempty"`
	TriggeredAt  time.Time `json:"triggeredAt"`
}

// GeofenceViolationData is the payload of location.geofence.violation.
type GeofenceViolationData struct {
	GeofenceID    string            `json:"geofenceId"`
	GeofenceType  string            `json:"geofenceType"`
	ViolationType string            `json:"violationType"` // "exit" or "entry"
	Location      TelemetryLocation `json:"location"`
}

// CallCreatedData is the payload of dispatcher.call.created.
type CallCreatedData struct {
	CallID           string         `json:"callId"`
	CallType         string         `json:"callType"`
	Priority         string         `json:"priority"`
	Status           string         `json:"status"`
	DispatcherID     string         `json:"dispatcherId,omitempty"`
	HealthSnapshot   map[string]any `json:"healthSnapshot,omitempty"`
	LocationSnapshot map[string]any `json:"locationSnapshot,omitempty"`
	AIAnalysis       map[string]any `json:"aiAnalysis,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}
