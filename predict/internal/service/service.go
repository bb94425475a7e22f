// Package service runs the telemetry scoring pipeline: consume a telemetry
// batch, extract features, score it, persist the prediction, and publish the
// resulting events.
package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse-systems/carepulse-stack/common/events"
	"github.com/carepulse-systems/carepulse-stack/common/logging"
	"github.com/carepulse-systems/carepulse-stack/common/metrics"
	"github.com/carepulse-systems/carepulse-stack/common/resilience"
	"github.com/carepulse-systems/carepulse-stack/predict/internal/features"
	"github.com/carepulse-systems/carepulse-stack/predict/internal/model"
	"github.com/carepulse-systems/carepulse-stack/predict/internal/repository"
)

const predictionType = "fall_prediction"

// Publisher is the slice of the bus client the service needs.
type Publisher interface {
	PublishEvent(ctx context.Context, env *events.Envelope) error
}

// Options configures the scoring service.
type Options struct {
	// RiskThreshold is the riskScore at or above which ai.risk.alert is
	// published.
	RiskThreshold float64

	// EscalationWindow bounds the recent-warning lookback.
	EscalationWindow time.Duration

	// Retry wraps model invocation.
	Retry resilience.RetryOptions
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		RiskThreshold:    0.7,
		EscalationWindow: 24 * time.Hour,
		Retry:            resilience.DefaultRetryOptions(),
	}
}

// Service scores telemetry batches.
type Service struct {
	repo      repository.Repository
	publisher Publisher
	mdl       model.Model
	logger    *logging.Logger
	opts      Options

	now func() time.Time
}

// New creates the scoring service.
func New(repo repository.Repository, publisher Publisher, mdl model.Model, logger *logging.Logger, opts Options) *Service {
	if opts.RiskThreshold <= 0 {
		opts.RiskThreshold = 0.7
	}
	if opts.EscalationWindow <= 0 {
		opts.EscalationWindow = 24 * time.Hour
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		mdl:       mdl,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// HandleTelemetry processes one telemetry.data.received event.
//
// Validation failures are returned so the bus requeues the message. A batch
// without enough key features is skipped with a log line, not an error.
// Publish failures never fail the handler: the prediction is already stored
// and redelivery would score the batch twice.
func (s *Service) HandleTelemetry(ctx context.Context, env *events.Envelope) error {
	start := s.now()

	if env.WardID == "" {
		return &events.ValidationError{Field: "wardId"}
	}
	var data events.TelemetryData
	if err := env.DecodeData(&data); err != nil {
		return err
	}
	if len(data.Metrics) == 0 {
		return &events.ValidationError{Field: "data.metrics"}
	}

	f := features.Extract(&data, env.Timestamp)
	s.addEscalationFeatures(ctx, env.WardID, f)

	if !model.HasMinimumFeatures(f) {
		metrics.PredictionsSkipped.Inc()
		s.logger.WarnContext(ctx, "insufficient features for prediction",
			logging.WardID(env.WardID),
			"available_features", len(f))
		return nil
	}

	prediction, err := resilience.RetryValue(ctx, s.opts.Retry, func() (model.Prediction, error) {
		return s.mdl.Predict(f)
	})
	if err != nil {
		return err
	}

	latency := s.now().Sub(start)
	metrics.PredictionDuration.Observe(latency.Seconds())

	stored := &repository.Prediction{
		ID:             uuid.NewString(),
		WardID:         env.WardID,
		ModelID:        s.mdl.ID(),
		ModelVersion:   s.mdl.Version(),
		PredictionType: predictionType,
		InputFeatures:  map[string]any(f),
		RiskScore:      prediction.RiskScore,
		Confidence:     prediction.Confidence,
		Severity:       prediction.Severity,
		TimeHorizon:    prediction.TimeHorizon,
		Factors:        prediction.Factors,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.Save(ctx, stored); err != nil {
		// The prediction is still worth publishing; losing the audit row
		// is preferable to rescoring the batch on redelivery.
		s.logger.ErrorContext(ctx, "failed to save prediction",
			logging.WardID(env.WardID), logging.Error(err))
	}

	s.publishPrediction(ctx, env, f, prediction, latency)

	if prediction.RiskScore >= s.opts.RiskThreshold {
		s.publishRiskAlert(ctx, env, prediction)
	}

	s.logger.InfoContext(ctx, "prediction generated",
		logging.WardID(env.WardID),
		"prediction_id", stored.ID,
		"risk_score", prediction.RiskScore,
		logging.Severity(prediction.Severity),
		"confidence", prediction.Confidence,
		logging.Duration(latency.Milliseconds()))

	return nil
}

// addEscalationFeatures enriches the feature map with the ward's recent
// warning history. Best effort: a query failure costs model accuracy, not
// the prediction.
func (s *Service) addEscalationFeatures(ctx context.Context, wardID string, f model.Features) {
	stats, err := s.repo.RecentEscalationStats(ctx, wardID, s.opts.EscalationWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load escalation history",
			logging.WardID(wardID), logging.Error(err))
		return
	}

	if stats.WarningCount == 0 && stats.CriticalCount == 0 {
		return
	}

	f["has_recent_warning"] = true
	f["recent_warning_count"] = float64(stats.WarningCount)
	f["recent_critical_count"] = float64(stats.CriticalCount)
	if stats.LastWarningAt != nil {
		f["time_since_last_warning_ms"] = float64(s.now().Sub(*stats.LastWarningAt).Milliseconds())
	}
}

func (s *Service) publishPrediction(ctx context.Context, trigger *events.Envelope, f model.Features, p model.Prediction, latency time.Duration) {
	payload := events.PredictionGeneratedData{
		PredictionType: predictionType,
		ModelID:        s.mdl.ID(),
		ModelVersion:   s.mdl.Version(),
		InputFeatures:  numericFeatures(f),
		Output: events.PredictionOutput{
			RiskScore:   p.RiskScore,
			Confidence:  p.Confidence,
			Severity:    p.Severity,
			TimeHorizon: p.TimeHorizon,
			Factors:     p.Factors,
		},
		InferenceLatencyMs: latency.Milliseconds(),
	}

	env, err := events.New(events.SubjectPredictionGenerated, events.SourcePredict, trigger.CorrelationID, payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build prediction event", logging.Error(err))
		return
	}
	env.WardID = trigger.WardID

	if err := s.publisher.PublishEvent(ctx, env); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish prediction event",
			logging.WardID(trigger.WardID), logging.Error(err))
	}
}

func (s *Service) publishRiskAlert(ctx context.Context, trigger *events.Envelope, p model.Prediction) {
	recommendation := "Immediate monitoring recommended"
	if len(p.Recommendations) > 0 {
		recommendation = p.Recommendations[0]
	}

	payload := events.RiskAlertData{
		AlertType:      "high_fall_risk",
		RiskScore:      p.RiskScore,
		Confidence:     p.Confidence,
		Priority:       riskPriority(p.RiskScore),
		Severity:       p.Severity,
		Recommendation: recommendation,
		ModelID:        s.mdl.ID(),
		ModelVersion:   s.mdl.Version(),
	}

	env, err := events.New(events.SubjectRiskAlert, events.SourcePredict, trigger.CorrelationID, payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build risk alert event", logging.Error(err))
		return
	}
	env.WardID = trigger.WardID

	if err := s.publisher.PublishEvent(ctx, env); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish risk alert",
			logging.WardID(trigger.WardID), logging.Error(err))
		return
	}

	s.logger.WarnContext(ctx, "high risk alert published",
		logging.WardID(trigger.WardID),
		"risk_score", p.RiskScore,
		logging.Severity(p.Severity),
		"factors", p.Factors)
}

// riskPriority maps a risk score onto the 1-10 alert priority scale.
func riskPriority(risk float64) int {
	p := int(math.Round(risk * 10))
	if p < 1 {
		p = 1
	}
	if p > 10 {
		p = 10
	}
	return p
}

// numericFeatures filters the feature map down to the float-valued entries
// carried in the published event.
func numericFeatures(f model.Features) map[string]float64 {
	out := make(map[string]float64, len(f))
	for k, v := range f {
		switch n := v.(type) {
		case float64:
			out[k] = n
		case int:
			out[k] = float64(n)
		}
	}
	return out
}
