// Package repository persists the notification audit trail.
package repository

import (
	"context"
	"time"
)

// Notification is one delivery attempt to one guardian over one channel.
// SentAt is set only when the provider accepted the message; CreatedAt is
// when the attempt was recorded.
type Notification struct {
	ID           string         `json:"id"`
	GuardianID   string         `json:"guardianId"`
	Channel      string         `json:"channel"`
	Status       string         `json:"status"`
	Content      string         `json:"content"`
	AlertID      string         `json:"alertId"`
	WardID       string         `json:"wardId"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	SentAt       *time.Time     `json:"sentAt,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Delivery attempt outcomes.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Repository stores notification audit rows.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListByAlert(ctx context.Context, alertID string) ([]*Notification, error)
	Close() error
}
