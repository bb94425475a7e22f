package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, http.StatusCreated, map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "abc", body["id"])
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, http.StatusNotFound, "not found")

	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not found", body["error"])
}

func TestParseIntParam(t *testing.T) {
	assert.Equal(t, 42, ParseIntParam("42", 1))
	assert.Equal(t, 1, ParseIntParam("", 1))
	assert.Equal(t, 1, ParseIntParam("nope", 1))
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=500", nil)

	p := ParsePagination(req, 20, 100)

	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 100, p.Limit, "limit clamps to max")
	assert.Equal(t, 200, p.Offset())

	req = httptest.NewRequest(http.MethodGet, "/?page=0", nil)
	p = ParsePagination(req, 20, 100)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.Limit)
}
