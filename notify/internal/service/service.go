// Package service implements the notification fan-out: one alert.created
// event in, one delivery attempt per (guardian, reachable channel) out.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse-systems/carepulse-stack/common/events"
	"github.com/carepulse-systems/carepulse-stack/common/logging"
	"github.com/carepulse-systems/carepulse-stack/common/metrics"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/channels"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/guardians"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/repository"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/template"
)

// DefaultFanOutLimit bounds how many provider calls run at once.
const DefaultFanOutLimit = 8

// Service fans alert notifications out to guardians.
type Service struct {
	directory guardians.Directory
	channels  []channels.Channel
	repo      repository.Repository
	logger    *logging.Logger

	// sem bounds in-flight provider calls across all deliveries.
	sem chan struct{}

	now func() time.Time
}

// New creates the fan-out service.
func New(directory guardians.Directory, chs []channels.Channel, repo repository.Repository, logger *logging.Logger, fanOutLimit int) *Service {
	if fanOutLimit <= 0 {
		fanOutLimit = DefaultFanOutLimit
	}
	return &Service{
		directory: directory,
		channels:  chs,
		repo:      repo,
		logger:    logger,
		sem:       make(chan struct{}, fanOutLimit),
		now:       time.Now,
	}
}

// HandleAlertCreated processes one alert.created event. It never returns an
// error: a notification that cannot be delivered is recorded as failed, and
// redelivering the event would only spam the guardians who were reached.
func (s *Service) HandleAlertCreated(ctx context.Context, env *events.Envelope) error {
	var data events.AlertCreatedData
	if err := env.DecodeData(&data); err != nil {
		s.logger.ErrorContext(ctx, "undecodable alert.created payload dropped",
			logging.EventID(env.EventID), logging.Error(err))
		return nil
	}

	wardID := env.WardID
	recipients, err := s.directory.GuardiansForWard(ctx, wardID)
	if err != nil {
		s.logger.ErrorContext(ctx, "guardian lookup failed, no notifications sent",
			logging.AlertID(data.AlertID), logging.WardID(wardID), logging.Error(err))
		return nil
	}
	if len(recipients) == 0 {
		s.logger.InfoContext(ctx, "no guardians registered for ward",
			logging.AlertID(data.AlertID), logging.WardID(wardID))
		return nil
	}

	msg := channels.Message{
		Template: template.Render(data.Severity, data.Title, data.Description),
		AlertID:  data.AlertID,
		WardID:   wardID,
		Severity: data.Severity,
	}

	var sent, failed atomic.Int64
	var wg sync.WaitGroup

	for _, g := range recipients {
		for _, ch := range s.channels {
			if !ch.Reaches(g) {
				continue
			}
			wg.Add(1)
			go func(g guardians.Guardian, ch channels.Channel) {
				defer wg.Done()
				s.sem <- struct{}{}
				defer func() { <-s.sem }()

				if s.deliver(ctx, g, ch, msg) {
					sent.Add(1)
				} else {
					failed.Add(1)
				}
			}(g, ch)
		}
	}

	wg.Wait()

	s.logger.InfoContext(ctx, "alert notifications processed",
		logging.AlertID(data.AlertID),
		logging.WardID(wardID),
		"guardians", len(recipients),
		"sent", sent.Load(),
		"failed", failed.Load())

	return nil
}

// deliver sends over one channel to one guardian and records the attempt.
// Reports whether the send succeeded.
func (s *Service) deliver(ctx context.Context, g guardians.Guardian, ch channels.Channel, msg channels.Message) bool {
	err := ch.Send(ctx, g, msg)

	status := repository.StatusSent
	errMsg := ""
	if err != nil {
		status = repository.StatusFailed
		errMsg = err.Error()
		s.logger.ErrorContext(ctx, "notification delivery failed",
			logging.Channel(ch.Type()),
			logging.AlertID(msg.AlertID),
			"guardian_id", g.ID,
			logging.Error(err))
	}

	metrics.NotificationsSent.WithLabelValues(ch.Type(), status).Inc()

	metadata := map[string]any{
		"severity": msg.Severity,
	}
	if corr := logging.CorrelationID(ctx); corr != "" {
		metadata["correlationId"] = corr
	}

	record := &repository.Notification{
		ID:           uuid.NewString(),
		GuardianID:   g.ID,
		Channel:      ch.Type(),
		Status:       status,
		Content:      ch.Content(msg.Template),
		AlertID:      msg.AlertID,
		WardID:       msg.WardID,
		ErrorMessage: errMsg,
		Metadata:     metadata,
		CreatedAt:    s.now().UTC(),
	}
	if status == repository.StatusSent {
		sentAt := s.now().UTC()
		record.SentAt = &sentAt
	}
	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.ErrorContext(ctx, "failed to record notification attempt",
			logging.Channel(ch.Type()),
			logging.AlertID(msg.AlertID),
			logging.Error(err))
	}

	return status == repository.StatusSent
}
