package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carepulse-systems/carepulse-stack/common/events"
	"github.com/carepulse-systems/carepulse-stack/common/logging"
	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/models"
	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/repository"
	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/service"
)

type mockRepository struct {
	createCallFunc       func(ctx context.Context, c *models.EmergencyCall) (*models.EmergencyCall, bool, error)
	getCallFunc          func(ctx context.Context, id string) (*models.EmergencyCall, error)
	listCallsFunc        func(ctx context.Context, f models.ListFilters) ([]*models.EmergencyCall, int, error)
	findDispatcherFunc   func(ctx context.Context) (*models.Dispatcher, error)
	assignCallFunc       func(ctx context.Context, callID, dispatcherID string) (*models.EmergencyCall, error)
	updateCallStatusFunc func(ctx context.Context, id, status, notes string) (*models.EmergencyCall, error)
	statsFunc            func(ctx context.Context) (*models.CallStats, error)
}

func (m *mockRepository) CreateCall(ctx context.Context, c *models.EmergencyCall) (*models.EmergencyCall, bool, error) {
	if m.createCallFunc != nil {
		return m.createCallFunc(ctx, c)
	}
	return c, true, nil
}

func (m *mockRepository) GetCall(ctx context.Context, id string) (*models.EmergencyCall, error) {
	if m.getCallFunc != nil {
		return m.getCallFunc(ctx, id)
	}
	return nil, repository.ErrCallNotFound
}

func (m *mockRepository) ListCalls(ctx context.Context, f models.ListFilters) ([]*models.EmergencyCall, int, error) {
	if m.listCallsFunc != nil {
		return m.listCallsFunc(ctx, f)
	}
	return []*models.EmergencyCall{}, 0, nil
}

func (m *mockRepository) FindBestAvailableDispatcher(ctx context.Context) (*models.Dispatcher, error) {
	if m.findDispatcherFunc != nil {
		return m.findDispatcherFunc(ctx)
	}
	return nil, repository.ErrNoDispatcherAvailable
}

func (m *mockRepository) AssignCall(ctx context.Context, callID, dispatcherID string) (*models.EmergencyCall, error) {
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
	if m.statsFunc != nil {
		return m.statsFunc(ctx)
	}
	return &models.CallStats{}, nil
}

func (m *mockRepository) Close() error { return nil }

type noopPublisher struct{}

func (noopPublisher) PublishEvent(ctx context.Context, env *events.Envelope) error { return nil }

func newHandler(repo *mockRepository) *Handler {
	return NewHandler(service.New(repo, noopPublisher{}, logging.Default(), 0))
}

func TestListCalls(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		setupMock      func(*mockRepository)
		expectedStatus int
		expectedTotal  float64
	}{
		{
			name: "returns calls with pagination",
			url:  "/api/v1/calls?page=2&limit=10",
			setupMock: func(m *mockRepository) {
				m.listCallsFunc = func(ctx context.Context, f models.ListFilters) ([]*models.EmergencyCall, int, error) {
					return []*models.EmergencyCall{{ID: "call-1"}}, 11, nil
				}
			},
			expectedStatus: http.StatusOK,
			expectedTotal:  11,
		},
		{
			name: "forwards filters",
			url:  "/api/v1/calls?status=created&priority=critical&dispatcherId=d-1&wardId=w-1",
			setupMock: func(m *mockRepository) {
				m.listCallsFunc = func(ctx context.Context, f models.ListFilters) ([]*models.EmergencyCall, int, error) {
					if f.Status != "created" || f.Priority != "critical" ||
						f.DispatcherID != "d-1" || f.WardID != "w-1" {
						t.Errorf("filters not forwarded: %+v", f)
					}
					return []*models.EmergencyCall{}, 0, nil
				}
			},
			expectedStatus: http.StatusOK,
			expectedTotal:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{}
			tt.setupMock(repo)
			h := newHandler(repo)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rec := httptest.NewRecorder()
			h.Calls(rec, req)

			require.Equal(t, tt.expectedStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.expectedTotal, body["total"])
		})
	}
}

func TestCreateCall(t *testing.T) {
	t.Run("creates manual call", func(t *testing.T) {
		repo := &mockRepository{}
		h := newHandler(repo)

		body, _ := json.Marshal(map[string]string{"wardId": "ward-9", "notes": "wellness check"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/calls", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		h.Calls(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)

		var call models.EmergencyCall
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &call))
		assert.Equal(t, "ward-9", call.WardID)
		assert.Equal(t, "assistance", call.CallType)
		assert.Equal(t, models.PriorityMedium, call.Priority)
	})

	t.Run("missing wardId is rejected", func(t *testing.T) {
		h := newHandler(&mockRepository{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/calls", bytes.NewReader([]byte(`{}`)))
		rec := httptest.NewRecorder()
		h.Calls(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		h := newHandler(&mockRepository{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/calls", bytes.NewReader([]byte(`not json`)))
		rec := httptest.NewRecorder()
		h.Calls(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetCall(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo := &mockRepository{
			getCallFunc: func(ctx context.Context, id string) (*models.EmergencyCall, error) {
				return &models.EmergencyCall{ID: id, Status: models.StatusCreated}, nil
			},
		}
		h := newHandler(repo)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/calls/call-42", nil)
		rec := httptest.NewRecorder()
		h.GetCall(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var call models.EmergencyCall
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &call))
		assert.Equal(t, "call-42", call.ID)
	})

	t.Run("not found", func(t *testing.T) {
		h := newHandler(&mockRepository{})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/calls/missing", nil)
		rec := httptest.NewRecorder()
		h.GetCall(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAssign(t *testing.T) {
	t.Run("assigns created call", func(t *testing.T) {
		repo := &mockRepository{
			getCallFunc: func(ctx context.Context, id string) (*models.EmergencyCall, error) {
				return &models.EmergencyCall{ID: id, Status: models.StatusCreated}, nil
			},
			assignCallFunc: func(ctx context.Context, callID, dispatcherID string) (*models.EmergencyCall, error) {
				return &models.EmergencyCall{
					ID: callID, Status: models.StatusAssigned, DispatcherID: &dispatcherID,
				}, nil
			},
		}
		h := newHandler(repo)

		body, _ := json.Marshal(AssignRequest{DispatcherID: "disp-1"})
		req := httptest.NewRequest(http.MethodPut, "/api/v1/calls/call-1/assign", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		h.Assign(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var call models.EmergencyCall
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &call))
		assert.Equal(t, models.StatusAssigned, call.Status)
		require.NotNil(t, call.DispatcherID)
		assert.Equal(t, "disp-1", *call.DispatcherID)
	})

	t.Run("terminal call is unprocessable", func(t *testing.T) {
		repo := &mockRepository{
			getCallFunc: func(ctx context.Context, id string) (*models.EmergencyCall, error) {
				return &models.EmergencyCall{ID: id, Status: models.StatusCanceled}, nil
			},
		}
		h := newHandler(repo)

		body, _ := json.Marshal(AssignRequest{DispatcherID: "disp-1"})
		req := httptest.NewRequest(http.MethodPut, "/api/v1/calls/call-1/assign", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		h.Assign(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("missing dispatcher id", func(t *testing.T) {
		h := newHandler(&mockRepository{})

		req := httptest.NewRequest(http.MethodPut, "/api/v1/calls/call-1/assign", bytes.NewReader([]byte(`{}`)))
		rec := httptest.NewRecorder()
		h.Assign(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUpdateStatus(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*mockRepository)
		expectedStatus int
	}{
		{
			name: "in_progress to resolved",
			body: `{"status": "resolved", "notes": "ward is safe"}`,
			setupMock: func(m *mockRepository) {
				m.getCallFunc = func(ctx context.Context, id string) (*models.EmergencyCall, error) {
					return &models.EmergencyCall{ID: id, Status: models.StatusInProgress}, nil
				}
				m.updateCallStatusFunc = func(ctx context.Context, id, status, notes string) (*models.EmergencyCall, error) {
					return &models.EmergencyCall{ID: id, Status: status, Notes: notes}, nil
				}
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "unknown status",
			body: `{"status": "paused"}`,
			setupMock: func(m *mockRepository) {
				m.getCallFunc = func(ctx context.Context, id string) (*models.EmergencyCall, error) {
					return &models.EmergencyCall{ID: id, Status: models.StatusCreated}, nil
				}
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "skipping assignment is illegal",
			body: `{"status": "resolved"}`,
			setupMock: func(m *mockRepository) {
				m.getCallFunc = func(ctx context.Context, id string) (*models.EmergencyCall, error) {
					return &models.EmergencyCall{ID: id, Status: models.StatusCreated}, nil
				}
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "call not found",
			body:           `{"status": "canceled"}`,
			setupMock:      func(m *mockRepository) {},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "invalid body",
			body:           `not json`,
			setupMock:      func(m *mockRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{}
			tt.setupMock(repo)
			h := newHandler(repo)

			req := httptest.NewRequest(http.MethodPut, "/api/v1/calls/call-1/status", bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()
			h.UpdateStatus(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}
