package handler

import (
	"net/http"

	"github.com/horaja/arbitrage-engine/internal/domain"
)

// StatusProvider returns the current engine status snapshot.
type StatusProvider func() domain.EngineStatus

// StatusHandler serves the engine's operational status for the dashboard.
type StatusHandler struct {
	status StatusProvider
}

// NewStatusHandler creates a StatusHandler backed by the given provider.
func NewStatusHandler(status StatusProvider) *StatusHandler {
	return &StatusHandler{status: status}
}

// GetStatus responds with the current engine status.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}
