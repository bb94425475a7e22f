// Package models defines the Alert record and its lifecycle rules.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Severity levels, ordered from least to most urgent.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert statuses. An alert is born active; every other status is terminal.
const (
	StatusActive        = "active"
	StatusAcknowledged  = "acknowledged"
	StatusResolved      = "resolved"
	StatusFalsePositive = "false_positive"
)

// ErrInvalidTransition is returned when a status update would violate the
// alert lifecycle.
var ErrInvalidTransition = errors.New("invalid alert status transition")

// ErrUnknownStatus is returned for status strings outside the enum.
var ErrUnknownStatus = errors.New("unknown alert status")

// legalTransitions is the alert state machine: active fans out to the three
// terminal states, terminal states go nowhere.
var legalTransitions = map[string][]string{
	StatusActive:        {StatusAcknowledged, StatusResolved, StatusFalsePositive},
	StatusAcknowledged:  {},
	StatusResolved:      {},
	StatusFalsePositive: {},
}

// ValidStatus reports whether s is a known alert status.
func ValidStatus(s string) bool {
	_, ok := legalTransitions[s]
	return ok
}

// ValidateTransition checks that from→to is a legal lifecycle step.
func ValidateTransition(from, to string) error {
	next, ok := legalTransitions[from]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, from)
	}
	if !ValidStatus(to) {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	for _, s := range next {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// ParseSeverity normalizes a severity string, defaulting unknown values to
// medium. Producers outside this repo have shipped unexpected severities
// before; an alert with a guessed severity beats a dropped one.
func ParseSeverity(s string) string {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return s
	default:
		return SeverityMedium
	}
}

// alertTitles maps alert taxonomy keys to human-readable titles.
var alertTitles = map[string]string{
	"high_fall_risk":       "High fall risk",
	"health_deterioration": "Health deterioration",
	"anomaly_detected":     "Anomaly detected",
	"device_offline":       "Device offline",
	"geofence_violation":   "Safe zone violation",
}

// TitleFor returns the display title for an alert type, with a generic
// fallback for unknown types.
func TitleFor(alertType string) string {
	if title, ok := alertTitles[alertType]; ok {
		return title
	}
	return "Warning"
}

// Alert is a detected risk requiring attention.
type Alert struct {
	ID           string         `json:"id"`
	WardID       string         `json:"wardId"`
	AlertType    string         `json:"alertType"`
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	Severity     string         `json:"severity"`
	Status       string         `json:"status"`
	AIConfidence *float64       `json:"aiConfidence,omitempty"`
	RiskScore    *float64       `json:"riskScore,omitempty"`
	Priority     int            `json:"priority"`
	DataSnapshot map[string]any `json:"dataSnapshot,omitempty"`

	// SourceEventID is the eventId of the bus event that created this
	// alert. A unique constraint on it makes creation idempotent under
	// redelivery.
	SourceEventID string `json:"sourceEventId"`

	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
}

// ListFilters narrow alert queries.
type ListFilters struct {
	WardID   string
	Status   string
	Severity string
	Page     int
	Limit    int
}
