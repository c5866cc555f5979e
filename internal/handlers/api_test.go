package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/services/reaper"
)

type stubEngine bool

func (s stubEngine) Available() bool { return bool(s) }

type stubSweeps []reaper.JobStatus

func (s stubSweeps) Statuses() []reaper.JobStatus { return s }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name   string
		engine EngineChecker
		want   string
	}{
		{"no checks", nil, "ok"},
		{"engine present", stubEngine(true), "ok"},
		{"engine missing", stubEngine(false), "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAPIHandler(arbor.NewLogger(), tt.engine, stubSweeps{{Name: reaper.JobOutputs, Schedule: "@every 1h"}})

			rec := httptest.NewRecorder()
			h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.want, body["status"])
			assert.Len(t, body["sweeps"], 1)
		})
	}
}

func TestVersionHandler(t *testing.T) {
	h := NewAPIHandler(arbor.NewLogger(), nil, nil)

	rec := httptest.NewRecorder()
	h.VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "version")

	rec = httptest.NewRecorder()
	h.VersionHandler(rec, httptest.NewRequest(http.MethodPost, "/api/version", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
