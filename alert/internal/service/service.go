// Package service implements the alert orchestrator: risk and geofence
// events in, persisted alerts and alert.created events out.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse-systems/carepulse-stack/alert/internal/models"
	"github.com/carepulse-systems/carepulse-stack/alert/internal/repository"
	"github.com/carepulse-systems/carepulse-stack/common/dedupe"
	"github.com/carepulse-systems/carepulse-stack/common/events"
	"github.com/carepulse-systems/carepulse-stack/common/logging"
	"github.com/carepulse-systems/carepulse-stack/common/metrics"
)

// Publisher is the slice of the bus client the service needs.
type Publisher interface {
	PublishEvent(ctx context.Context, env *events.Envelope) error
}

// Service orchestrates the alert lifecycle.
type Service struct {
	repo      repository.Repository
	publisher Publisher
	deduper   dedupe.Deduper
	logger    *logging.Logger

	now func() time.Time
}

// New creates the alert service. A nil deduper disables the Redis check;
// the repository's unique constraint still prevents duplicates.
func New(repo repository.Repository, publisher Publisher, deduper dedupe.Deduper, logger *logging.Logger) *Service {
	if deduper == nil {
		deduper = dedupe.Noop{}
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		deduper:   deduper,
		logger:    logger,
		now:       time.Now,
	}
}

// HandleRiskAlert processes one ai.risk.alert event.
//
// Persistence failures are returned so the bus redelivers the event; the
// create is idempotent on the event ID, so redelivery cannot duplicate the
// alert. A publish failure after successful persistence is logged and
// swallowed: the alert exists, and failing the handler would recreate it.
func (s *Service) HandleRiskAlert(ctx context.Context, env *events.Envelope) error {
	var data events.RiskAlertData
	if err := env.DecodeData(&data); err != nil {
		return err
	}

	description := data.Recommendation
	if description == "" {
		description = "AI detected potential risk"
	}

	confidence := data.Confidence
	riskScore := data.RiskScore

	alert := &models.Alert{
		ID:           uuid.NewString(),
		WardID:       wardOrUnknown(env),
		AlertType:    data.AlertType,
		Title:        models.TitleFor(data.AlertType),
		Description:  description,
		Severity:     models.ParseSeverity(data.Severity),
		Status:       models.StatusActive,
		AIConfidence: &confidence,
		RiskScore:    &riskScore,
		Priority:     data.Priority,
		DataSnapshot: map[string]any{
			"modelId":      data.ModelID,
			"modelVersion": data.ModelVersion,
		},
		SourceEventID: env.EventID,
		CreatedAt:     s.now().UTC(),
	}

	return s.createAndAnnounce(ctx, events.QueueRiskAlert, env, alert)
}

// HandleGeofenceViolation processes one location.geofence.violation event.
// Leaving a safe zone is treated as high severity; an entry violation
// (restricted area) as medium.
func (s *Service) HandleGeofenceViolation(ctx context.Context, env *events.Envelope) error {
	var data events.GeofenceViolationData
	if err := env.DecodeData(&data); err != nil {
		return err
	}

	severity := models.SeverityMedium
	if data.ViolationType == "exit" {
		severity = models.SeverityHigh
	}

	alert := &models.Alert{
		ID:          uuid.NewString(),
		WardID:      wardOrUnknown(env),
		AlertType:   "geofence_violation",
		Title:       models.TitleFor("geofence_violation"),
		Description: fmt.Sprintf("Ward %s %sed geofence %s", wardOrUnknown(env), data.ViolationType, data.GeofenceID),
		Severity:    severity,
		Status:      models.StatusActive,
		Priority:    7,
		DataSnapshot: map[string]any{
			"geofenceId":    data.GeofenceID,
			"geofenceType":  data.GeofenceType,
			"violationType": data.ViolationType,
			"latitude":      data.Location.Latitude,
			"longitude":     data.Location.Longitude,
		},
		SourceEventID: env.EventID,
		CreatedAt:     s.now().UTC(),
	}

	return s.createAndAnnounce(ctx, events.QueueGeofenceViolation, env, alert)
}

func (s *Service) createAndAnnounce(ctx context.Context, queue string, trigger *events.Envelope, alert *models.Alert) error {
	first, err := s.deduper.FirstDelivery(ctx, queue, trigger.EventID)
	if err != nil {
		s.logger.WarnContext(ctx, "dedupe check failed, proceeding",
			logging.EventID(trigger.EventID), logging.Error(err))
	}
	if !first {
		s.logger.InfoContext(ctx, "duplicate event delivery skipped",
			logging.EventID(trigger.EventID), logging.WardID(alert.WardID))
		metrics.EventsConsumed.WithLabelValues(queue, metrics.OutcomeDupe).Inc()
		return nil
	}

	created, inserted, err := s.repo.Create(ctx, alert)
	if err != nil {
		return fmt.Errorf("persist alert: %w", err)
	}
	if !inserted {
		// Redelivery raced past the dedupe cache; the original alert won.
		s.logger.InfoContext(ctx, "alert already exists for event",
			logging.EventID(trigger.EventID), logging.AlertID(created.ID))
		return nil
	}

	metrics.AlertsCreated.WithLabelValues(created.AlertType, created.Severity).Inc()

	s.publishAlertCreated(ctx, trigger, created)

	s.logger.InfoContext(ctx, "alert created",
		logging.AlertID(created.ID),
		logging.WardID(created.WardID),
		logging.Severity(created.Severity),
		logging.EventType(trigger.EventType))

	return nil
}

// publishAlertCreated announces the new alert. Failures are logged, never
// returned: rolling back an existing alert is worse than a lost event.
func (s *Service) publishAlertCreated(ctx context.Context, trigger *events.Envelope, alert *models.Alert) {
	payload := events.AlertCreatedData{
		AlertID:      alert.ID,
		Title:        alert.Title,
		Description:  alert.Description,
		AlertType:    alert.AlertType,
		Severity:     alert.Severity,
		Status:       alert.Status,
		AIConfidence: alert.AIConfidence,
		TriggeredAt:  alert.CreatedAt,
	}

	env, err := events.New(events.SubjectAlertCreated, events.SourceAlert, trigger.CorrelationID, payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build alert.created event",
			logging.AlertID(alert.ID), logging.Error(err))
		return
	}
	env.WardID = alert.WardID

	if err := s.publisher.PublishEvent(ctx, env); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish alert.created",
			logging.AlertID(alert.ID), logging.Error(err))
	}
}

// UpdateStatus applies a lifecycle transition to an alert. Unknown statuses
// and illegal transitions fail with typed errors before anything is
// persisted.
func (s *Service) UpdateStatus(ctx context.Context, alertID, status string) (*models.Alert, error) {
	alert, err := s.repo.GetByID(ctx, alertID)
	if err != nil {
		return nil, err
	}

	if err := models.ValidateTransition(alert.Status, status); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, alertID, status)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "alert status updated",
		logging.AlertID(alertID),
		logging.Status(status))

	return updated, nil
}

// GetAlert fetches one alert.
func (s *Service) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	return s.repo.GetByID(ctx, alertID)
}

// ListAlerts returns a filtered page of alerts and the total count.
func (s *Service) ListAlerts(ctx context.Context, f models.ListFilters) ([]*models.Alert, int, error) {
	return s.repo.List(ctx, f)
}

func wardOrUnknown(env *events.Envelope) string {
	if env.WardID == "" {
		return "unknown"
	}
	return env.WardID
}
