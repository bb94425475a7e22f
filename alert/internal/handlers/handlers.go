// Package handlers exposes the alert HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/carepulse-systems/carepulse-stack/common/httputil"

	"github.com/carepulse-systems/carepulse-stack/alert/internal/models"
	"github.com/carepulse-systems/carepulse-stack/alert/internal/repository"
	"github.com/carepulse-systems/carepulse-stack/alert/internal/service"
)

type Handler struct {
	service *service.Service
}

func NewHandler(service *service.Service) *Handler {
	return &Handler{service: service}
}

// UpdateStatusRequest is the body for PUT /api/v1/alerts/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// ListAlerts handles GET /api/v1/alerts
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	pagination := httputil.ParsePagination(r, 20, 100)
	filters := models.ListFilters{
		WardID:   r.URL.Query().Get("wardId"),
		Status:   r.URL.Query().Get("status"),
		Severity: r.URL.Query().Get("severity"),
		Page:     pagination.Page,
		Limit:    pagination.Limit,
	}

	alerts, total, err := h.service.ListAlerts(r.Context(), filters)
	if err != nil {
		log.Printf("Error listing alerts: %v", err)
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"total":  total,
		"page":   pagination.Page,
		"limit":  pagination.Limit,
	})
}

// GetAlert handles GET /api/v1/alerts/:id
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Path[len("/api/v1/alerts/"):]
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Alert ID required")
		return
	}

	alert, err := h.service.GetAlert(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "Alert not found")
			return
		}
		log.Printf("Error getting alert: %v", err)
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to get alert")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, alert)
}

// UpdateStatus handles PUT /api/v1/alerts/:id/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSuffix(r.URL.Path[len("/api/v1/alerts/"):], "/status")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Alert ID required")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	alert, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlertNotFound):
			httputil.WriteError(w, http.StatusNotFound, "Alert not found")
		case errors.Is(err, models.ErrUnknownStatus), errors.Is(err, models.ErrInvalidTransition):
			httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			log.Printf("Error updating alert status: %v", err)
			httputil.WriteError(w, http.StatusInternalServerError, "Failed to update alert status")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, alert)
}
