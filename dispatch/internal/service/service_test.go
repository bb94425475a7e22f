package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepulse-systems/carepulse-stack/common/events"
	"github.com/carepulse-systems/carepulse-stack/common/logging"
	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/models"
	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/repository"
)

type mockRepository struct {
	createCallFunc       func(ctx context.Context, c *models.EmergencyCall) (*models.EmergencyCall, bool, error)
	getCallFunc          func(ctx context.Context, id string) (*models.EmergencyCall, error)
	findDispatcherFunc   func(ctx context.Context) (*models.Dispatcher, error)
	assignCallFunc       func(ctx context.Context, callID, dispatcherID string) (*models.EmergencyCall, error)
	updateCallStatusFunc func(ctx context.Context, id, status, notes string) (*models.EmergencyCall, error)

	created  []*models.EmergencyCall
	assigned []string
}

func (m *mockRepository) CreateCall(ctx context.Context, c *models.EmergencyCall) (*models.EmergencyCall, bool, error) {
	if m.createCallFunc != nil {
		return m.createCallFunc(ctx, c)
	}
	m.created = append(m.created, c)
	return c, true, nil
}

func (m *mockRepository) GetCall(ctx context.Context, id string) (*models.EmergencyCall, error) {
	if m.getCallFunc != nil {
		return m.getCallFunc(ctx, id)
	}
	return nil, repository.ErrCallNotFound
}

func (m *mockRepository) ListCalls(ctx context.Context, f models.ListFilters) ([]*models.EmergencyCall, int, error) {
	return nil, 0, nil
}

func (m *mockRepository) FindBestAvailableDispatcher(ctx context.Context) (*models.Dispatcher, error) {
	if m.findDispatcherFunc != nil {
		return m.findDispatcherFunc(ctx)
	}
	return nil, repository.ErrNoDispatcherAvailable
}

func (m *mockRepository) AssignCall(ctx context.Context, callID, dispatcherID string) (*models.EmergencyCall, error) {
	m.assigned = append(m.assigned, dispatcherID)
	if m.assignCallFunc != nil {
		return m.assignCallFunc(ctx, callID, dispatcherID)
	}
	return nil, repository.ErrCallNotFound
}

func (m *mockRepository) UpdateCallStatus(ctx context.Context, id, status, notes string) (*models.EmergencyCall, error) {
	if m.updateCallStatusFunc != nil {
		return m.updateCallStatusFunc(ctx, id, status, notes)
	}
	return nil, repository.ErrCallNotFound
}

func (m *mockRepository) Stats(ctx context.Context) (*models.CallStats, error) {
	return &models.CallStats{}, nil
}

func (m *mockRepository) Close() error { return nil }

type mockPublisher struct {
	publishFunc func(ctx context.Context, env *events.Envelope) error

	published []*events.Envelope
}

func (m *mockPublisher) PublishEvent(ctx context.Context, env *events.Envelope) error {
	m.published = append(m.published, env)
	if m.publishFunc != nil {
		return m.publishFunc(ctx, env)
	}
	return nil
}

func riskAlertEnvelope(t *testing.T, severity string, priority int) *events.Envelope {
	t.Helper()
	env, err := events.New(events.SubjectRiskAlert, events.SourcePredict, "corr-risk", events.RiskAlertData{
		AlertType:    "high_fall_risk",
		RiskScore:    0.91,
		Confidence:   0.88,
		Priority:     priority,
		Severity:     severity,
		ModelID:      "fall-risk-heuristic",
		ModelVersion: "1.2.0",
	})
	require.NoError(t, err)
	env.WardID = "ward-1"
	return env
}

func TestHandleRiskAlert_BelowThresholdIsIgnored(t *testing.T) {
	repo := &mockRepository{}
	pub := &mockPublisher{}
	svc := New(repo, pub, logging.Default(), 0)

	env := riskAlertEnvelope(t, "medium", 5)
	require.NoError(t, svc.HandleRiskAlert(context.Background(), env))

	assert.Empty(t, repo.created)
	assert.Empty(t, pub.published)
}

func TestHandleRiskAlert_CriticalSeverityEscalates(t *testing.T) {
	repo := &mockRepository{}
	pub := &mockPublisher{}
	svc := New(repo, pub, logging.Default(), 0)

	env := riskAlertEnvelope(t, "critical", 5)
	require.NoError(t, svc.HandleRiskAlert(context.Background(), env))

	require.Len(t, repo.created, 1)
	call := repo.created[0]
	assert.Equal(t, "ward-1", call.WardID)
	assert.Equal(t, "emergency", call.CallType)
	assert.Equal(t, models.PriorityCritical, call.Priority)
	assert.Equal(t, models.StatusCreated, call.Status)
	assert.Equal(t, "ai_prediction", call.Source)
	assert.Equal(t, env.EventID, call.SourceEventID)
	assert.Equal(t, 0.91, call.HealthSnapshot["riskScore"])
	assert.Equal(t, "fall-risk-heuristic", call.AIAnalysis["modelId"])
}

func TestHandleRiskAlert_HighNumericPriorityEscalates(t *testing.T) {
	repo := &mockRepository{}
	svc := New(repo, &mockPublisher{}, logging.Default(), 0)

	env := riskAlertEnvelope(t, "high", 8)
	require.NoError(t, svc.HandleRiskAlert(context.Background(), env))

	require.Len(t, repo.created, 1)
	assert.Equal(t, models.PriorityHigh, repo.created[0].Priority)
}

func TestHandleRiskAlert_AIPriorityNineForcesCritical(t *testing.T) {
	repo := &mockRepository{}
	svc := New(repo, &mockPublisher{}, logging.Default(), 0)

	env := riskAlertEnvelope(t, "high", 9)
	require.NoError(t, svc.HandleRiskAlert(context.Background(), env))

	require.Len(t, repo.created, 1)
	assert.Equal(t, models.PriorityCritical, repo.created[0].Priority)
}

func TestHandleRiskAlert_AssignsLeastLoadedDispatcher(t *testing.T) {
	dispatcherID := "disp-7"
	repo := &mockRepository{
		findDispatcherFunc: func(ctx context.Context) (*models.Dispatcher, error) {
			return &models.Dispatcher{ID: dispatcherID, Available: true, ActiveCalls: 0}, nil
		},
		assignCallFunc: func(ctx context.Context, callID, dID string) (*models.EmergencyCall, error) {
			return &models.EmergencyCall{
				ID:           callID,
				WardID:       "ward-1",
				Status:       models.StatusAssigned,
				DispatcherID: &dID,
			}, nil
		},
	}
	pub := &mockPublisher{}
	svc := New(repo, pub, logging.Default(), 0)

	env := riskAlertEnvelope(t, "critical", 5)
	require.NoError(t, svc.HandleRiskAlert(context.Background(), env))

	require.Equal(t, []string{dispatcherID}, repo.assigned)

	require.Len(t, pub.published, 1)
	var data events.CallCreatedData
	require.NoError(t, pub.published[0].DecodeData(&data))
	assert.Equal(t, models.StatusAssigned, data.Status)
	assert.Equal(t, dispatcherID, data.DispatcherID)
}

func TestHandleRiskAlert_NoDispatcherLeavesCallCreated(t *testing.T) {
	repo := &mockRepository{}
	pub := &mockPublisher{}
	svc := New(repo, pub, logging.Default(), 0)

	env := riskAlertEnvelope(t, "critical", 5)
	require.NoError(t, svc.HandleRiskAlert(context.Background(), env))

	require.Len(t, repo.created, 1)
	assert.Nil(t, repo.created[0].DispatcherID)
	assert.Equal(t, models.StatusCreated, repo.created[0].Status)

	require.Len(t, pub.published, 1)
	var data events.CallCreatedData
	require.NoError(t, pub.published[0].DecodeData(&data))
	assert.Equal(t, models.StatusCreated, data.Status)
	assert.Empty(t, data.DispatcherID)
}

func TestHandleRiskAlert_PublishCarriesCorrelationAndWard(t *testing.T) {
	pub := &mockPublisher{}
	svc := New(&mockRepository{}, pub, logging.Default(), 0)

	env := riskAlertEnvelope(t, "critical", 5)
	require.NoError(t, svc.HandleRiskAlert(context.Background(), env))

	require.Len(t, pub.published, 1)
	out := pub.published[0]
	assert.Equal(t, events.SubjectCallCreated, out.EventType)
	assert.Equal(t, "corr-risk", out.CorrelationID)
	assert.Equal(t, "ward-1", out.WardID)
}

func TestHandleRiskAlert_PersistenceFailurePropagates(t *testing.T) {
	repo := &mockRepository{
		createCallFunc: func(ctx context.Context, c *models.EmergencyCall) (*models.EmergencyCall, bool, error) {
			return nil, false, errors.New("connection refused")
		},
	}
	pub := &mockPublisher{}
	svc := New(repo, pub, logging.Default(), 0)

	env := riskAlertEnvelope(t, "critical", 5)
	err := svc.HandleRiskAlert(context.Background(), env)
	require.Error(t, err)
	assert.Empty(t, pub.published)
}

func TestHandleRiskAlert_PublishFailureIsSwallowed(t *testing.T) {
	pub := &mockPublisher{
		publishFunc: func(ctx context.Context, env *events.Envelope) error {
			return errors.New("bus down")
		},
	}
	svc := New(&mockRepository{}, pub, logging.Default(), 0)

	env := riskAlertEnvelope(t, "critical", 5)
	require.NoError(t, svc.HandleRiskAlert(context.Background(), env))
}

func TestHandleRiskAlert_RedeliveredEventDoesNotDuplicate(t *testing.T) {
	existing := &models.EmergencyCall{ID: "call-1", Status: models.StatusAssigned}
	repo := &mockRepository{
		createCallFunc: func(ctx context.Context, c *models.EmergencyCall) (*models.EmergencyCall, bool, error) {
			return existing, false, nil
		},
	}
	pub := &mockPublisher{}
	svc := New(repo, pub, logging.Default(), 0)

	env := riskAlertEnvelope(t, "critical", 5)
	require.NoError(t, svc.HandleRiskAlert(context.Background(), env))

	assert.Empty(t, repo.assigned)
	assert.Empty(t, pub.published)
}

func TestCreateManualCall_AppliesDefaults(t *testing.T) {
	repo := &mockRepository{}
	svc := New(repo, &mockPublisher{}, logging.Default(), 0)

	call, err := svc.CreateManualCall(context.Background(), CreateCallRequest{WardID: "ward-2"})
	require.NoError(t, err)

	assert.Equal(t, "assistance", call.CallType)
	assert.Equal(t, models.PriorityMedium, call.Priority)
	assert.Equal(t, "dispatcher_app", call.Source)
	assert.Equal(t, models.StatusCreated, call.Status)
	assert.Empty(t, call.SourceEventID)
}

func TestCreateManualCall_RequiresWard(t *testing.T) {
	svc := New(&mockRepository{}, &mockPublisher{}, logging.Default(), 0)

	_, err := svc.CreateManualCall(context.Background(), CreateCallRequest{})
	require.Error(t, err)
}

func TestAssignCall_RejectsTerminalCall(t *testing.T) {
	repo := &mockRepository{
		getCallFunc: func(ctx context.Context, id string) (*models.EmergencyCall, error) {
			return &models.EmergencyCall{ID: id, Status: models.StatusResolved}, nil
		},
	}
	svc := New(repo, &mockPublisher{}, logging.Default(), 0)

	_, err := svc.AssignCall(context.Background(), "call-1", "disp-1")
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Empty(t, repo.assigned)
}

func TestUpdateCallStatus_LegalTransition(t *testing.T) {
	repo := &mockRepository{
		getCallFunc: func(ctx context.Context, id string) (*models.EmergencyCall, error) {
			return &models.EmergencyCall{ID: id, Status: models.StatusAssigned}, nil
		},
		updateCallStatusFunc: func(ctx context.Context, id, status, notes string) (*models.EmergencyCall, error) {
			return &models.EmergencyCall{ID: id, Status: status, Notes: notes}, nil
		},
	}
	svc := New(repo, &mockPublisher{}, logging.Default(), 0)

	call, err := svc.UpdateCallStatus(context.Background(), "call-1", models.StatusInProgress, "en route")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, call.Status)
	assert.Equal(t, "en route", call.Notes)
}

func TestUpdateCallStatus_IllegalTransition(t *testing.T) {
	repo := &mockRepository{
		getCallFunc: func(ctx context.Context, id string) (*models.EmergencyCall, error) {
			return &models.EmergencyCall{ID: id, Status: models.StatusCreated}, nil
		},
	}
	svc := New(repo, &mockPublisher{}, logging.Default(), 0)

	_, err := svc.UpdateCallStatus(context.Background(), "call-1", models.StatusResolved, "")
	require.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestUpdateCallStatus_UnknownStatus(t *testing.T) {
	repo := &mockRepository{
		getCallFunc: func(ctx context.Context, id string) (*models.EmergencyCall, error) {
			return &models.EmergencyCall{ID: id, Status: models.StatusCreated}, nil
		},
	}
	svc := New(repo, &mockPublisher{}, logging.Default(), 0)

	_, err := svc.UpdateCallStatus(context.Background(), "call-1", "escalated", "")
	require.ErrorIs(t, err, models.ErrUnknownStatus)
}

func TestUpdateCallStatus_NotFound(t *testing.T) {
	svc := New(&mockRepository{}, &mockPublisher{}, logging.Default(), 0)

	_, err := svc.UpdateCallStatus(context.Background(), "missing", models.StatusCanceled, "")
	require.ErrorIs(t, err, repository.ErrCallNotFound)
}
