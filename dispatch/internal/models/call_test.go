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
		{StatusCreated, StatusAssigned, nil},
		{StatusCreated, StatusCanceled, nil},
		{StatusAssigned, StatusInProgress, nil},
		{StatusAssigned, StatusCanceled, nil},
		{StatusInProgress, StatusResolved, nil},
		{StatusInProgress, StatusCanceled, nil},
		{StatusCreated, StatusResolved, ErrInvalidTransition},
		{StatusCreated, StatusInProgress, ErrInvalidTransition},
		{StatusResolved, StatusInProgress, ErrInvalidTransition},
		{StatusResolved, StatusCanceled, ErrInvalidTransition},
		{StatusCanceled, StatusAssigned, ErrInvalidTransition},
		{StatusAssigned, StatusCreated, ErrInvalidTransition},
		{StatusCreated, "escalated", ErrUnknownStatus},
		{"bogus", StatusAssigned, ErrUnknownStatus},
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

func TestDeterminePriority(t *testing.T) {
	tests := []struct {
		name       string
		severity   string
		aiPriority int
		want       string
	}{
		{"ai priority 9 forces critical", "low", 9, PriorityCritical},
		{"ai priority 10 forces critical", "medium", 10, PriorityCritical},
		{"critical severity", "critical", 8, PriorityCritical},
		{"high severity", "high", 5, PriorityHigh},
		{"medium severity", "medium", 3, PriorityMedium},
		{"low severity floors at medium", "low", 1, PriorityMedium},
		{"unknown severity floors at medium", "weird", 0, PriorityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeterminePriority(tt.severity, tt.aiPriority))
		})
	}
}
