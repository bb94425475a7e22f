package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasMinimumFeatures(t *testing.T) {
	tests := []struct {
		name     string
		features Features
		want     bool
	}{
		{
			name:     "empty map",
			features: Features{},
			want:     false,
		},
		{
			name:     "single key feature",
			features: Features{"heart_rate": 72.0},
			want:     false,
		},
		{
			name:     "two key features",
			features: Features{"heart_rate": 72.0, "steps": 4200.0},
			want:     true,
		},
		{
			name: "non-key features do not count",
			features: Features{
				"heart_rate":             72.0,
				"heart_rate_variability": 45.0,
				"movement_variance":      0.2,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasMinimumFeatures(tt.features))
		})
	}
}

func TestDetermineSeverity_Bands(t *testing.T) {
	assert.Equal(t, SeverityLow, DetermineSeverity(0.0))
	assert.Equal(t, SeverityLow, DetermineSeverity(0.24))
	assert.Equal(t, SeverityMedium, DetermineSeverity(0.25))
	assert.Equal(t, SeverityMedium, DetermineSeverity(0.44))
	assert.Equal(t, SeverityHigh, DetermineSeverity(0.45))
	assert.Equal(t, SeverityHigh, DetermineSeverity(0.69))
	assert.Equal(t, SeverityCritical, DetermineSeverity(0.70))
	assert.Equal(t, SeverityCritical, DetermineSeverity(1.0))
}

func TestPredict_HealthyVitalsScoreLow(t *testing.T) {
	p := Predict(Features{
		"activity":                0.6,
		"heart_rate":              72.0,
		"heart_rate_variability":  55.0,
		"steps":                   5000.0,
		"accelerometer_magnitude": 9.8,
		"spo2":                    98.0,
	})

	assert.Equal(t, 0.0, p.RiskScore)
	assert.Equal(t, SeverityLow, p.Severity)
	assert.Empty(t, p.Factors)
	assert.Equal(t, 0.92, p.Confidence, "full feature set yields highest confidence")
}

func TestPredict_FallSignatureScoresCritical(t *testing.T) {
	p := Predict(Features{
		"activity":                0.05, // lying still
		"heart_rate":              130.0,
		"heart_rate_variability":  15.0,
		"steps":                   20.0,
		"accelerometer_magnitude": 25.0, // above 2x gravity
		"spo2":                    80.0,
		"has_recent_warning":      true,
		"recent_warning_count":    3.0,
		"recent_critical_count":   1.0,
		"escalation_probability":  0.9,
	})

	require.GreaterOrEqual(t, p.RiskScore, 0.70)
	assert.Equal(t, SeverityCritical, p.Severity)
	assert.Equal(t, "5-15 minutes", p.TimeHorizon)
	assert.Contains(t, p.Factors, "sudden_movement")
	assert.Contains(t, p.Factors, "abnormal_activity")
	assert.Contains(t, p.Factors, "escalation_risk")
	assert.Contains(t, p.Recommendations, "Check for fall event")
}

func TestPredict_AccelerometerImpactThreshold(t *testing.T) {
	below := Predict(Features{
		"accelerometer_magnitude": 9.8,
		"heart_rate":              72.0,
	})
	above := Predict(Features{
		"accelerometer_magnitude": 9.8*2 + 0.1,
		"heart_rate":              72.0,
	})

	assert.Equal(t, 0.0, below.RiskScore)
	// 0.9 sub-score at weight 0.13
	assert.InDelta(t, 0.12, above.RiskScore, 0.005)
	assert.Contains(t, above.Factors, "sudden_movement")
}

func TestPredict_ScoreStaysBounded(t *testing.T) {
	// Every feature at its worst cannot push the score past 1.
	p := Predict(Features{
		"activity":                   0.0,
		"heart_rate":                 35.0,
		"heart_rate_variability":     10.0,
		"steps":                      0.0,
		"accelerometer_magnitude":    40.0,
		"spo2":                       70.0,
		"time_of_day":                "night",
		"movement_stop_detected":     true,
		"has_recent_warning":         true,
		"recent_warning_count":       5.0,
		"recent_critical_count":      2.0,
		"escalation_probability":     1.0,
		"avg_time_to_critical_hours": 2.0,
		"time_since_last_warning_ms": 2.0 * 60 * 60 * 1000,
		"escalation_count":           6.0,
	})

	assert.LessOrEqual(t, p.RiskScore, 1.0)
	assert.GreaterOrEqual(t, p.RiskScore, 0.0)
	assert.Equal(t, SeverityCritical, p.Severity)
}

func TestPredict_ConfidenceTracksCompleteness(t *testing.T) {
	sparse := Predict(Features{
		"heart_rate": 72.0,
		"steps":      3000.0,
	})
	rich := Predict(Features{
		"activity":                0.5,
		"heart_rate":              72.0,
		"heart_rate_variability":  50.0,
		"steps":                   3000.0,
		"accelerometer_magnitude": 9.8,
	})

	assert.Equal(t, 0.75, sparse.Confidence)
	assert.Equal(t, 0.92, rich.Confidence)
	assert.Greater(t, rich.Confidence, sparse.Confidence)
}

func TestPredict_ConfidenceWithinBounds(t *testing.T) {
	p := Predict(Features{})
	assert.GreaterOrEqual(t, p.Confidence, 0.5)
	assert.LessOrEqual(t, p.Confidence, 0.95)
}

func TestPredict_Deterministic(t *testing.T) {
	f := Features{
		"activity":                0.15,
		"heart_rate":              110.0,
		"accelerometer_magnitude": 16.0,
	}

	first := Predict(f)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Predict(f))
	}
}

func TestPredict_BradycardiaFlagsEmergency(t *testing.T) {
	p := Predict(Features{
		"heart_rate": 42.0,
		"steps":      2000.0,
	})

	assert.Contains(t, p.Factors, "low_heart_rate")
	assert.Contains(t, p.Recommendations, "Check for medical emergency")
}

func TestPredict_IntFeatureValuesAccepted(t *testing.T) {
	// Feature maps decoded from JSON carry float64, but hand-built maps in
	// callers may use ints.
	p := Predict(Features{
		"heart_rate": 130,
		"steps":      20,
	})
	assert.Greater(t, p.RiskScore, 0.0)
}
