// Package repository persists emergency calls and dispatcher availability.
package repository

import (
	"context"
	"errors"

	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/models"
)

// Sentinel lookup errors.
var (
	ErrCallNotFound          = errors.New("call not found")
	ErrDispatcherNotFound    = errors.New("dispatcher not found")
	ErrNoDispatcherAvailable = errors.New("no dispatcher available")
)

// Repository stores emergency calls and dispatchers.
type Repository interface {
	// CreateCall inserts the call. It is idempotent on SourceEventID when
	// set: a redelivered event returns the existing call with created=false.
	CreateCall(ctx context.Context, c *models.EmergencyCall) (call *models.EmergencyCall, created bool, err error)

	GetCall(ctx context.Context, id string) (*models.EmergencyCall, error)

	ListCalls(ctx context.Context, f models.ListFilters) ([]*models.EmergencyCall, int, error)

	// FindBestAvailableDispatcher returns the available dispatcher with the
	// fewest active calls, or ErrNoDispatcherAvailable.
	FindBestAvailableDispatcher(ctx context.Context) (*models.Dispatcher, error)

	// AssignCall transitions the call to assigned and marks the dispatcher
	// busy in a single transaction.
	AssignCall(ctx context.Context, callID, dispatcherID string) (*models.EmergencyCall, error)

	// UpdateCallStatus persists the new status. Entering resolved or
	// canceled releases any assigned dispatcher in the same transaction;
	// resolvedAt is set on first entry into resolved and never overwritten.
	UpdateCallStatus(ctx context.Context, id, status, notes string) (*models.EmergencyCall, error)

	Stats(ctx context.Context) (*models.CallStats, error)

	Close() error
}
