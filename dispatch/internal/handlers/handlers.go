// Package handlers exposes the emergency call HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/carepulse-systems/carepulse-stack/common/httputil"

	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/models"
	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/repository"
	"github.com/carepulse-systems/carepulse-stack/dispatch/internal/service"
)

type Handler struct {
	service *service.Service
}

func NewHandler(service *service.Service) *Handler {
	return &Handler{service: service}
}

// AssignRequest is the body for PUT /api/v1/calls/:id/assign.
type AssignRequest struct {
	DispatcherID string `json:"dispatcherId"`
}

// UpdateStatusRequest is the body for PUT /api/v1/calls/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// Calls handles GET and POST /api/v1/calls
func (h *Handler) Calls(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listCalls(w, r)
	case http.MethodPost:
		h.createCall(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listCalls(w http.ResponseWriter, r *http.Request) {
	pagination := httputil.ParsePagination(r, 20, 100)
	filters := models.ListFilters{
		Status:       r.URL.Query().Get("status"),
		Priority:     r.URL.Query().Get("priority"),
		DispatcherID: r.URL.Query().Get("dispatcherId"),
		WardID:       r.URL.Query().Get("wardId"),
		Page:         pagination.Page,
		Limit:        pagination.Limit,
	}

	calls, total, err := h.service.ListCalls(r.Context(), filters)
	if err != nil {
		log.Printf("Error listing calls: %v", err)
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to list calls")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"calls": calls,
		"total": total,
		"page":  pagination.Page,
		"limit": pagination.Limit,
	})
}

func (h *Handler) createCall(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	call, err := h.service.CreateManualCall(r.Context(), req)
	if err != nil {
		if req.WardID == "" {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Error creating call: %v", err)
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to create call")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, call)
}

// Stats handles GET /api/v1/calls/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := h.service.Stats(r.Context())
	if err != nil {
		log.Printf("Error aggregating call stats: %v", err)
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to aggregate call stats")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}

// GetCall handles GET /api/v1/calls/:id
func (h *Handler) GetCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Path[len("/api/v1/calls/"):]
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Call ID required")
		return
	}

	call, err := h.service.GetCall(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrCallNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "Call not found")
			return
		}
		log.Printf("Error getting call: %v", err)
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to get call")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, call)
}

// Assign handles PUT /api/v1/calls/:id/assign
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSuffix(r.URL.Path[len("/api/v1/calls/"):], "/assign")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Call ID required")
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DispatcherID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Dispatcher ID required")
		return
	}

	call, err := h.service.AssignCall(r.Context(), id, req.DispatcherID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCallNotFound):
			httputil.WriteError(w, http.StatusNotFound, "Call not found")
		case errors.Is(err, repository.ErrDispatcherNotFound):
			httputil.WriteError(w, http.StatusNotFound, "Dispatcher not found")
		case errors.Is(err, models.ErrUnknownStatus), errors.Is(err, models.ErrInvalidTransition):
			httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			log.Printf("Error assigning call: %v", err)
			httputil.WriteError(w, http.StatusInternalServerError, "Failed to assign call")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, call)
}

// UpdateStatus handles PUT /api/v1/calls/:id/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSuffix(r.URL.Path[len("/api/v1/calls/"):], "/status")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Call ID required")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	call, err := h.service.UpdateCallStatus(r.Context(), id, req.Status, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCallNotFound):
			httputil.WriteError(w, http.StatusNotFound, "Call not found")
		case errors.Is(err, models.ErrUnknownStatus), errors.Is(err, models.ErrInvalidTransition):
			httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			log.Printf("Error updating call status: %v", err)
			httputil.WriteError(w, http.StatusInternalServerError, "Failed to update call status")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, call)
}
