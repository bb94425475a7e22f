package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to string
		wantErr  error
	}{
		{StatusActive, StatusAcknowledged, nil},
		{StatusActive, StatusResolved, nil},
		{StatusActive, StatusFalsePositive, nil},
		{StatusAcknowledged, StatusResolved, ErrInvalidTransition},
		{StatusResolved, StatusActive, ErrInvalidTransition},
		{StatusFalsePositive, StatusAcknowledged, ErrInvalidTransition},
		{StatusActive, StatusActive, ErrInvalidTransition},
		{StatusActive, "escalated", ErrUnknownStatus},
		{"bogus", StatusResolved, ErrUnknownStatus},
	}

	for _, tt := range tests {
		t.Run(tt.from+"_to_"+tt.to, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestParseSeverity_DefaultsUnknownToMedium(t *testing.T) {
	assert.Equal(t, SeverityLow, ParseSeverity("low"))
	assert.Equal(t, SeverityCritical, ParseSeverity("critical"))
	assert.Equal(t, SeverityMedium, ParseSeverity("unknown_value"))
	assert.Equal(t, SeverityMedium, ParseSeverity(""))
	assert.Equal(t, SeverityMedium, ParseSeverity("CRITICAL"), "matching is case-sensitive")
}

func TestTitleFor(t *testing.T) {
	assert.Equal(t, "High fall risk", TitleFor("high_fall_risk"))
	assert.Equal(t, "Safe zone violation", TitleFor("geofence_violation"))
	assert.Equal(t, "Warning", TitleFor("some_new_alert_type"))
	assert.Equal(t, "Warning", TitleFor(""))
}
