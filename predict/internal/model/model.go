// Package model implements the fall-risk scoring model.
//
// The model is a weighted heuristic over per-feature sub-scores. Each
// sub-score maps one telemetry feature into [0,1] using fixed thresholds;
// the weighted sum is clamped to [0,1] and banded into a severity. It is a
// pure function of its input, which keeps it trivially testable and lets the
// service layer wrap inference in its own retry policy.
package model

import "math"

// Version identifies the heuristic revision used to produce a prediction.
const Version = "1.2.0"

// ModelID names the model in published prediction events.
const ModelID = "fall-risk-heuristic"

// Severity bands for the risk score.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

const normalGravity = 9.8

// Features is the normalized telemetry feature map fed into the model.
// Numeric features are float64; flags are bool; timeOfDay is a string.
type Features map[string]any

// keyFeatures are the features that carry enough signal to score on.
// Prediction is skipped unless at least MinKeyFeatures are present.
var keyFeatures = []string{
	"activity",
	"heart_rate",
	"steps",
	"accelerometer_magnitude",
	"spo2",
}

// MinKeyFeatures is the minimum number of key features required to score.
const MinKeyFeatures = 2

// confidenceFeatures are the features counted toward data completeness.
var confidenceFeatures = []string{
	"activity",
	"heart_rate",
	"heart_rate_variability",
	"steps",
	"accelerometer_magnitude",
	"spo2",
}

// Model scores feature maps. The heuristic below is the only local
// implementation; the interface leaves room for remote inference, which is
// why callers wrap Predict in their retry policy.
type Model interface {
	Predict(f Features) (Prediction, error)
	ID() string
	Version() string
}

// Heuristic is the in-process weighted-threshold model.
type Heuristic struct{}

// Predict scores the feature map. The heuristic never fails.
func (Heuristic) Predict(f Features) (Prediction, error) {
	return Predict(f), nil
}

// ID returns the model identifier.
func (Heuristic) ID() string { return ModelID }

// Version returns the heuristic revision.
func (Heuristic) Version() string { return Version }

// Prediction is the model output for one telemetry batch.
type Prediction struct {
	RiskScore       float64  `json:"riskScore"`
	Confidence      float64  `json:"confidence"`
	Severity        string   `json:"severity"`
	TimeHorizon     string   `json:"timeHorizon"`
	Factors         []string `json:"factors,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

type weights struct {
	activity           float64
	heartRate          float64
	hrv                float64
	steps              float64
	accelerometer      float64
	timeOfDay          float64
	movementPattern    float64
	spo2               float64
	escalationTemporal float64
}

var defaultWeights = weights{
	activity:           0.22,
	heartRate:          0.18,
	hrv:                0.13,
	steps:              0.09,
	accelerometer:      0.13,
	timeOfDay:          0.04,
	movementPattern:    0.04,
	spo2:               0.04,
	escalationTemporal: 0.13,
}

// HasMinimumFeatures reports whether the feature map carries enough key
// features to make scoring meaningful. Callers skip prediction when it
// returns false.
func HasMinimumFeatures(f Features) bool {
	return countPresent(f, keyFeatures) >= MinKeyFeatures
}

// Predict scores the feature map. It never fails: missing features simply
// contribute nothing.
func Predict(f Features) Prediction {
	w := defaultWeights
	var factors, recommendations []string
	risk := 0.0

	if s := evaluateActivity(f); s > 0 {
		risk += s * w.activity
		factors = append(factors, "abnormal_activity")
	}

	if s := evaluateHeartRate(f); s > 0 {
		risk += s * w.heartRate
		if hr, ok := floatFeature(f, "heart_rate"); ok {
			if hr > 100 {
				factors = append(factors, "elevated_heart_rate")
				recommendations = append(recommendations, "Monitor heart rate closely")
			} else if hr < 50 {
				factors = append(factors, "low_heart_rate")
				recommendations = append(recommendations, "Check for medical emergency")
			}
		}
	}

	if s := evaluateHRV(f); s > 0 {
		risk += s * w.hrv
		factors = append(factors, "irregular_hrv")
	}

	if s := evaluateSteps(f); s > 0 {
		risk += s * w.steps
		factors = append(factors, "reduced_mobility")
	}

	if s := evaluateAccelerometer(f); s > 0 {
		risk += s * w.accelerometer
		factors = append(factors, "sudden_movement")
		recommendations = append(recommendations, "Check for fall event")
	}

	if s := evaluateSpO2(f); s > 0 {
		risk += s * w.spo2
		factors = append(factors, "low_oxygen")
		recommendations = append(recommendations, "Check oxygen saturation")
	}

	if s := evaluateTimeOfDay(f); s > 0 {
		risk += s * w.timeOfDay
		factors = append(factors, "night_time_risk")
	}

	if s := evaluateMovementPattern(f); s > 0 {
		risk += s * w.movementPattern
		factors = append(factors, "irregular_movement")
	}

	if s := evaluateEscalationTemporal(f); s > 0 {
		risk += s * w.escalationTemporal
		factors = append(factors, "escalation_risk")
	}

	risk = clamp01(risk)

	if len(recommendations) == 0 && risk > 0.3 {
		recommendations = append(recommendations, "Continue monitoring")
	}

	return Prediction{
		RiskScore:       round2(risk),
		Confidence:      round2(confidence(f, risk)),
		Severity:        DetermineSeverity(risk),
		TimeHorizon:     timeHorizon(risk),
		Factors:         factors,
		Recommendations: recommendations,
	}
}

// DetermineSeverity bands a risk score into a severity level.
func DetermineSeverity(risk float64) string {
	switch {
	case risk < 0.25:
		return SeverityLow
	case risk < 0.45:
		return SeverityMedium
	case risk < 0.70:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

func evaluateActivity(f Features) float64 {
	activity, ok := floatFeature(f, "activity")
	if !ok {
		return 0
	}
	switch {
	case activity < 0.1:
		// Very low activity might indicate lying down after a fall.
		return 0.8
	case activity < 0.2:
		return 0.5
	case activity < 0.3:
		return 0.2
	}
	if delta, ok := floatFeature(f, "activity_delta"); ok && delta < -0.5 {
		return 0.6
	}
	return 0
}

func evaluateHeartRate(f Features) float64 {
	hr, ok := floatFeature(f, "heart_rate")
	if !ok {
		return 0
	}
	baseline, ok := floatFeature(f, "heart_rate_baseline")
	if !ok || baseline <= 0 {
		baseline = 70
	}
	switch {
	case hr > 120:
		return 0.7
	case hr > 100:
		return 0.4
	case hr < 40:
		return 0.9
	case hr < 50:
		return 0.6
	}
	if math.Abs(hr-baseline)/baseline > 0.3 {
		return 0.3
	}
	return 0
}

func evaluateHRV(f Features) float64 {
	hrv, ok := floatFeature(f, "heart_rate_variability")
	if !ok {
		return 0
	}
	switch {
	case hrv < 20:
		return 0.5
	case hrv < 30:
		return 0.3
	case hrv > 100:
		return 0.2
	}
	return 0
}

func evaluateSteps(f Features) float64 {
	steps, ok := floatFeature(f, "steps")
	if !ok {
		return 0
	}
	expected, ok := floatFeature(f, "expected_steps")
	if !ok || expected <= 0 {
		expected = 1000
	}
	switch {
	case steps < expected*0.1:
		return 0.6
	case steps < expected*0.3:
		return 0.3
	}
	if delta, ok := floatFeature(f, "steps_delta"); ok && delta < -0.5 {
		return 0.4
	}
	return 0
}

func evaluateAccelerometer(f Features) float64 {
	magnitude, ok := floatFeature(f, "accelerometer_magnitude")
	if !ok {
		return 0
	}
	switch {
	case magnitude > normalGravity*2:
		// Sudden high acceleration, potential fall.
		return 0.9
	case magnitude > normalGravity*1.5:
		return 0.6
	}
	if delta, ok := floatFeature(f, "accelerometer_delta"); ok {
		if math.Abs(delta) > normalGravity*0.5 {
			return 0.5
		}
	}
	return 0
}

func evaluateSpO2(f Features) float64 {
	spo2, ok := floatFeature(f, "spo2")
	if !ok {
		return 0
	}
	switch {
	case spo2 < 85:
		return 0.9
	case spo2 < 90:
		return 0.6
	case spo2 < 94:
		return 0.3
	}
	return 0
}

func evaluateTimeOfDay(f Features) float64 {
	if tod, ok := f["time_of_day"].(string); ok && tod == "night" {
		return 0.2
	}
	if hour, ok := floatFeature(f, "hour"); ok && hour >= 4 && hour < 6 {
		return 0.3
	}
	return 0
}

func evaluateMovementPattern(f Features) float64 {
	if variance, ok := floatFeature(f, "movement_variance"); ok {
		if variance > 0.8 {
			return 0.4
		}
		if variance > 0.6 {
			return 0.2
		}
	}
	if stopped, ok := f["movement_stop_detected"].(bool); ok && stopped {
		return 0.5
	}
	return 0
}

// evaluateEscalationTemporal scores the ward's recent warning history:
// repeated warnings that historically preceded critical situations raise
// the risk even when the current vitals look moderate.
func evaluateEscalationTemporal(f Features) float64 {
	score := 0.0

	if recent, ok := f["has_recent_warning"].(bool); ok && recent {
		warnings, _ := floatFeature(f, "recent_warning_count")
		switch {
		case warnings >= 3:
			score += 0.4
		case warnings >= 2:
			score += 0.25
		case warnings >= 1:
			score += 0.15
		}

		if criticals, ok := floatFeature(f, "recent_critical_count"); ok && criticals > 0 {
			score += 0.3
		}

		if prob, ok := floatFeature(f, "escalation_probability"); ok && prob > 0 {
			score += prob * 0.4
			if prob >= 0.8 {
				score += 0.2
			}
		}

		avgHours, okAvg := floatFeature(f, "avg_time_to_critical_hours")
		sinceMs, okSince := floatFeature(f, "time_since_last_warning_ms")
		if okAvg && avgHours > 0 && okSince && sinceMs > 0 {
			ratio := (sinceMs / (1000 * 60 * 60)) / avgHours
			switch {
			case ratio >= 0.8:
				score += 0.3
			case ratio >= 0.6:
				score += 0.2
			case ratio >= 0.4:
				score += 0.1
			}
		}
	}

	if escalations, ok := floatFeature(f, "escalation_count"); ok {
		switch {
		case escalations >= 5:
			score += 0.15
		case escalations >= 3:
			score += 0.1
		case escalations >= 1:
			score += 0.05
		}
	}

	return math.Min(1.0, score)
}

// confidence reflects data completeness, not the risk value itself. An
// extreme score computed from sparse data is discounted as a possible
// outlier.
func confidence(f Features, risk float64) float64 {
	available := countPresent(f, confidenceFeatures)

	var c float64
	switch {
	case available >= 5:
		c = 0.92
	case available >= 3:
		c = 0.85
	case available >= 2:
		c = 0.75
	default:
		c = 0.65
	}

	if risk > 0.9 && available < 4 {
		c *= 0.9
	}

	return math.Min(0.95, math.Max(0.5, c))
}

func timeHorizon(risk float64) string {
	switch {
	case risk >= 0.7:
		return "5-15 minutes"
	case risk >= 0.5:
		return "15-30 minutes"
	case risk >= 0.3:
		return "30-60 minutes"
	default:
		return "1-2 hours"
	}
}

func countPresent(f Features, keys []string) int {
	n := 0
	for _, k := range keys {
		if _, ok := f[k]; ok {
			n++
		}
	}
	return n
}

func floatFeature(f Features, key string) (float64, bool) {
	switch v := f[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func clamp01(v float64) float64 {
	return math.Min(1.0, math.Max(0.0, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
