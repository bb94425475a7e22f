// Package service implements call escalation: critical risk events become
// emergency calls routed to the least-loaded available dispatcher.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse-systems/carepulse-stack/common/events"
	"github.com/carepulse-systems/carepulse-stack/common/logging"
	"github.com/carepulse-systems/carepulse-stack/common/metrics"
	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/models"
	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/repository"
)

// EscalationPriorityThreshold is the numeric AI priority at or above which
// a non-critical risk event still escalates to an emergency call.
const EscalationPriorityThreshold = 8

// Publisher is the slice of the bus client the service needs.
type Publisher interface {
	PublishEvent(ctx context.Context, env *events.Envelope) error
}

// Service escalates risk events and manages the call lifecycle.
type Service struct {
	repo      repository.Repository
	publisher Publisher
	logger    *logging.Logger

	priorityThreshold int
	now               func() time.Time
}

// New creates the dispatch service. threshold <= 0 uses the default.
func New(repo repository.Repository, publisher Publisher, logger *logging.Logger, threshold int) *Service {
	if threshold <= 0 {
		threshold = EscalationPriorityThreshold
	}
	return &Service{
		repo:              repo,
		publisher:         publisher,
		logger:            logger,
		priorityThreshold: threshold,
		now:               time.Now,
	}
}

// HandleRiskAlert processes one ai.risk.alert event. Only critical or
// high-priority events escalate; everything else is acknowledged quietly.
// Persistence failures propagate so the bus redelivers; the create is
// idempotent on the event ID, so redelivery cannot open a second call.
func (s *Service) HandleRiskAlert(ctx context.Context, env *events.Envelope) error {
	var data events.RiskAlertData
	if err := env.DecodeData(&data); err != nil {
		return err
	}

	if data.Severity != "critical" && data.Priority < s.priorityThreshold {
		s.logger.DebugContext(ctx, "risk event below escalation threshold",
			logging.EventID(env.EventID),
			logging.Severity(data.Severity),
			"priority", data.Priority)
		return nil
	}

	call := &models.EmergencyCall{
		ID:       uuid.NewString(),
		WardID:   wardOrUnknown(env),
		CallType: "emergency",
		Priority: models.DeterminePriority(data.Severity, data.Priority),
		Status:   models.StatusCreated,
		Source:   "ai_prediction",
		HealthSnapshot: map[string]any{
			"riskScore":  data.RiskScore,
			"confidence": data.Confidence,
			"alertType":  data.AlertType,
		},
		AIAnalysis: map[string]any{
			"modelId":      data.ModelID,
			"modelVersion": data.ModelVersion,
		},
		SourceEventID: env.EventID,
		CreatedAt:     s.now().UTC(),
	}

	created, inserted, err := s.repo.CreateCall(ctx, call)
	if err != nil {
		return fmt.Errorf("persist call: %w", err)
	}
	if !inserted {
		s.logger.InfoContext(ctx, "call already exists for event",
			logging.EventID(env.EventID), logging.CallID(created.ID))
		return nil
	}

	metrics.CallsCreated.WithLabelValues(created.Priority).Inc()

	created = s.tryAssign(ctx, created)
	s.publishCallCreated(ctx, env.CorrelationID, created)

	s.logger.InfoContext(ctx, "emergency call created",
		logging.CallID(created.ID),
		logging.WardID(created.WardID),
		"priority", created.Priority,
		"dispatcher_id", dispatcherOrNone(created))

	return nil
}

// CreateManualCall opens a call on behalf of the dispatcher application.
type CreateCallRequest struct {
	WardID           string         `json:"wardId"`
	CallType         string         `json:"callType"`
	Priority         string         `json:"priority"`
	Source           string         `json:"source"`
	HealthSnapshot   map[string]any `json:"healthSnapshot"`
	LocationSnapshot map[string]any `json:"locationSnapshot"`
	Notes            string         `json:"notes"`
}

func (s *Service) CreateManualCall(ctx context.Context, req CreateCallRequest) (*models.EmergencyCall, error) {
	if req.WardID == "" {
		return nil, errors.New("wardId is required")
	}
	if req.CallType == "" {
		req.CallType = "assistance"
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if req.Source == "" {
		req.Source = "dispatcher_app"
	}

	call := &models.EmergencyCall{
		ID:               uuid.NewString(),
		WardID:           req.WardID,
		CallType:         req.CallType,
		Priority:         req.Priority,
		Status:           models.StatusCreated,
		Source:           req.Source,
		HealthSnapshot:   req.HealthSnapshot,
		LocationSnapshot: req.LocationSnapshot,
		Notes:            req.Notes,
		CreatedAt:        s.now().UTC(),
	}

	created, _, err := s.repo.CreateCall(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("persist call: %w", err)
	}

	metrics.CallsCreated.WithLabelValues(created.Priority).Inc()

	created = s.tryAssign(ctx, created)
	s.publishCallCreated(ctx, "", created)

	return created, nil
}

// tryAssign routes the call to the least-loaded available dispatcher. When
// nobody is available, or assignment fails, the call stays created; it can
// be assigned manually later.
func (s *Service) tryAssign(ctx context.Context, call *models.EmergencyCall) *models.EmergencyCall {
	dispatcher, err := s.repo.FindBestAvailableDispatcher(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNoDispatcherAvailable) {
			s.logger.WarnContext(ctx, "no dispatcher available, call stays unassigned",
				logging.CallID(call.ID))
		} else {
			s.logger.ErrorContext(ctx, "dispatcher lookup failed",
				logging.CallID(call.ID), logging.Error(err))
		}
		return call
	}

	assigned, err := s.repo.AssignCall(ctx, call.ID, dispatcher.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "call assignment failed",
			logging.CallID(call.ID),
			logging.DispatcherID(dispatcher.ID),
			logging.Error(err))
		return call
	}

	metrics.CallsAssigned.Inc()
	s.logger.InfoContext(ctx, "call assigned",
		logging.CallID(call.ID), logging.DispatcherID(dispatcher.ID))
	return assigned
}

// AssignCall manually routes a call to a specific dispatcher.
func (s *Service) AssignCall(ctx context.Context, callID, dispatcherID string) (*models.EmergencyCall, error) {
	call, err := s.repo.GetCall(ctx, callID)
	if err != nil {
		return nil, err
	}

	if err := models.ValidateTransition(call.Status, models.StatusAssigned); err != nil {
		return nil, err
	}

	assigned, err := s.repo.AssignCall(ctx, callID, dispatcherID)
	if err != nil {
		return nil, err
	}

	metrics.CallsAssigned.Inc()
	s.logger.InfoContext(ctx, "call assigned",
		logging.CallID(callID), logging.DispatcherID(dispatcherID))

	return assigned, nil
}

// UpdateCallStatus applies a lifecycle transition. Unknown statuses and
// illegal transitions fail with typed errors before anything is persisted;
// entering resolved or canceled frees the assigned dispatcher.
func (s *Service) UpdateCallStatus(ctx context.Context, callID, status, notes string) (*models.EmergencyCall, error) {
	call, err := s.repo.GetCall(ctx, callID)
	if err != nil {
		return nil, err
	}

	if err := models.ValidateTransition(call.Status, status); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateCallStatus(ctx, callID, status, notes)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "call status updated",
		logging.CallID(callID), logging.Status(status))

	return updated, nil
}

// GetCall fetches one call.
func (s *Service) GetCall(ctx context.Context, callID string) (*models.EmergencyCall, error) {
	return s.repo.GetCall(ctx, callID)
}

// ListCalls returns a filtered page of calls and the total count.
func (s *Service) ListCalls(ctx context.Context, f models.ListFilters) ([]*models.EmergencyCall, int, error) {
	return s.repo.ListCalls(ctx, f)
}

// Stats aggregates call counts for the dashboard.
func (s *Service) Stats(ctx context.Context) (*models.CallStats, error) {
	return s.repo.Stats(ctx)
}

// publishCallCreated announces the new call. Failures are logged, never
// returned: the call exists, and failing the handler would recreate it.
func (s *Service) publishCallCreated(ctx context.Context, correlationID string, call *models.EmergencyCall) {
	payload := events.CallCreatedData{
		CallID:           call.ID,
		CallType:         call.CallType,
		Priority:         call.Priority,
		Status:           call.Status,
		DispatcherID:     dispatcherOrNone(call),
		HealthSnapshot:   call.HealthSnapshot,
		LocationSnapshot: call.LocationSnapshot,
		AIAnalysis:       call.AIAnalysis,
		CreatedAt:        call.CreatedAt,
	}

	env, err := events.New(events.SubjectCallCreated, events.SourceDispatch, correlationID, payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build call.created event",
			logging.CallID(call.ID), logging.Error(err))
		return
	}
	env.WardID = call.WardID

	if err := s.publisher.PublishEvent(ctx, env); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish call.created",
			logging.CallID(call.ID), logging.Error(err))
	}
}

func wardOrUnknown(env *events.Envelope) string {
	if env.WardID == "" {
		return "unknown"
	}
	return env.WardID
}

func dispatcherOrNone(call *models.EmergencyCall) string {
	if call.DispatcherID == nil {
		return ""
	}
	return *call.DispatcherID
}
