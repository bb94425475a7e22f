// Package httputil provides small helpers shared by the HTTP APIs.
package httputil

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
)

// WriteJSON writes a JSON response with the given status code and data.
// It properly checks for encoding errors and logs them.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// ParseIntParam parses an integer query parameter with a default value.
// Returns defaultVal if the parameter is empty or invalid.
func ParseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return defaultVal
}

// Pagination represents common pagination parameters for API responses.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total,omitempty"`
}

// ParsePagination extracts pagination parameters from the query string,
// enforcing sensible defaults and a maximum page size.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	page := ParseIntParam(r.URL.Query().Get("page"), 1)
	limit := ParseIntParam(r.URL.Query().Get("limit"), defaultLimit)

	if limit > maxLimit {
		limit = maxLimit
	}
	if page < 1 {
		page = 1
	}

	return Pagination{
		Page:  page,
		Limit: limit,
	}
}

// Offset calculates the database offset for pagination.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}
