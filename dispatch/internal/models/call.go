// Package models defines the emergency call domain types and the legal
// call lifecycle.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Call priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Call lifecycle statuses.
const (
	StatusCreated    = "created"
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusCanceled   = "canceled"
)

// Typed lifecycle errors. Handlers map these to 4xx responses; they are
// never fatal to the event pipeline.
var (
	ErrInvalidTransition = errors.New("invalid call status transition")
	ErrUnknownStatus     = errors.New("unknown call status")
)

// legalTransitions is the forward-only call lifecycle. A call can be
// canceled from any non-terminal state; resolved and canceled are final.
var legalTransitions = map[string][]string{
	StatusCreated:    {StatusAssigned, StatusCanceled},
	StatusAssigned:   {StatusInProgress, StatusCanceled},
	StatusInProgress: {StatusResolved, StatusCanceled},
	StatusResolved:   {},
	StatusCanceled:   {},
}

// ValidStatus reports whether s is a known call status.
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

// DeterminePriority derives the call priority from an alert severity and
// the AI's numeric priority. An AI priority of 9 or above forces critical
// regardless of severity; everything below high floors at medium.
func DeterminePriority(severity string, aiPriority int) string {
	if aiPriority >= 9 {
		return PriorityCritical
	}
	switch severity {
	case "critical":
		return PriorityCritical
	case "high":
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// EmergencyCall is a dispatcher-facing incident.
type EmergencyCall struct {
	ID               string         `json:"id"`
	WardID           string         `json:"wardId"`
	CallType         string         `json:"callType"`
	Priority         string         `json:"priority"`
	Status           string         `json:"status"`
	DispatcherID     *string        `json:"dispatcherId,omitempty"`
	Source           string         `json:"source"`
	HealthSnapshot   map[string]any `json:"healthSnapshot,omitempty"`
	LocationSnapshot map[string]any `json:"locationSnapshot,omitempty"`
	AIAnalysis       map[string]any `json:"aiAnalysis,omitempty"`
	Notes            string         `json:"notes,omitempty"`
	SourceEventID    string         `json:"sourceEventId,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	AssignedAt       *time.Time     `json:"assignedAt,omitempty"`
	ResolvedAt       *time.Time     `json:"resolvedAt,omitempty"`
}

// Dispatcher is an operator who can take emergency calls.
type Dispatcher struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Available   bool      `json:"available"`
	ActiveCalls int       `json:"activeCalls"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ListFilters narrows call listings.
type ListFilters struct {
	Status       string
	Priority     string
	DispatcherID string
	WardID       string
	Page         int
	Limit        int
}

// CallStats aggregates call counts for the operations dashboard.
type CallStats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"byStatus"`
	ByPriority map[string]int `json:"byPriority"`
}
