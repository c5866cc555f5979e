package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/common"
)

type APIHandler struct {
	logger arbor.ILogger
	engine EngineChecker
	sweeps SweepReporter
}

// NewAPIHandler creates the health and version handler. engine and sweeps may be nil.
func NewAPIHandler(logger arbor.ILogger, engine EngineChecker, sweeps SweepReporter) *APIHandler {
	return &APIHandler{
		logger: logger,
		engine: engine,
		sweeps: sweeps,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, common.GetBuildInfo())
}

// HealthHandler returns health check status
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	response := map[string]interface{}{
		"status":     "ok",
		"goroutines": common.GetGoroutineCount(),
	}
	if h.engine != nil {
		available := h.engine.Available()
		response["engine_available"] = available
		if !available {
			response["status"] = "degraded"
		}
	}
	if h.sweeps != nil {
		response["sweeps"] = h.sweeps.Statuses()
	}

	WriteJSON(w, http.StatusOK, response)
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
