// Package repository persists predictions for audit and for the temporal
// escalation features fed back into the model.
package repository

import (
	"context"
	"errors"
	"time"
)

// ErrPredictionNotFound is returned when a prediction ID does not exist.
var ErrPredictionNotFound = errors.New("prediction not found")

// Prediction is a stored model output for one telemetry batch.
type Prediction struct {
	ID             string         `json:"id"`
	WardID         string         `json:"wardId"`
	ModelID        string         `json:"modelId"`
	ModelVersion   string         `json:"modelVersion"`
	PredictionType string         `json:"predictionType"`
	InputFeatures  map[string]any `json:"inputFeatures"`
	RiskScore      float64        `json:"riskScore"`
	Confidence     float64        `json:"confidence"`
	Severity       string         `json:"severity"`
	TimeHorizon    string         `json:"timeHorizon,omitempty"`
	Factors        []string       `json:"factors,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// EscalationStats summarizes a ward's recent risk history. The model uses it
// to raise the score for wards whose warnings have been piling up.
type EscalationStats struct {
	// WarningCount is the number of recent medium/high predictions.
	WarningCount int

	// CriticalCount is the number of recent critical predictions.
	CriticalCount int

	// LastWarningAt is when the most recent warning was recorded.
	LastWarningAt *time.Time
}

// Repository stores and queries predictions.
type Repository interface {
	Save(ctx context.Context, p *Prediction) error
	FindByID(ctx context.Context, id string) (*Prediction, error)
	FindByWard(ctx context.Context, wardID string, limit int) ([]*Prediction, error)
	RecentEscalationStats(ctx context.Context, wardID string, window time.Duration) (*EscalationStats, error)
	Close() error
}
