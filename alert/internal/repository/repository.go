// Package repository persists alerts.
package repository

import (
	"context"
	"errors"

	"github.com/carepulse-systems/carepulse-stack/alert/internal/models"
)

// ErrAlertNotFound is returned when an alert ID does not exist.
var ErrAlertNotFound = errors.New("alert not found")

// Repository stores and queries alerts.
type Repository interface {
	// Create inserts the alert. It is idempotent on SourceEventID: when an
	// alert for the same source event already exists, the existing alert is
	// returned and created is false.
	Create(ctx context.Context, a *models.Alert) (alert *models.Alert, created bool, err error)

	GetByID(ctx context.Context, id string) (*models.Alert, error)

	List(ctx context.Context, f models.ListFilters) ([]*models.Alert, int, error)

	// UpdateStatus persists the new status. acknowledgedAt/resolvedAt are
	// set on first entry into the matching state and never overwritten.
	UpdateStatus(ctx context.Context, id, status string) (*models.Alert, error)

	Close() error
}
