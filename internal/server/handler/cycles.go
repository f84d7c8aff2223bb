package handler

import (
	"log/slog"
	"net/http"

	"github.com/horaja/arbitrage-engine/internal/domain"
)

// CycleHandler serves recently detected arbitrage cycles.
type CycleHandler struct {
	store  domain.CycleStore
	logger *slog.Logger
}

// NewCycleHandler creates a CycleHandler backed by store.
func NewCycleHandler(store domain.CycleStore, logger *slog.Logger) *CycleHandler {
	return &CycleHandler{store: store, logger: logHandler(logger, "cycles")}
}

// ListRecent returns the most recently detected cycles, newest first.
// GET /api/cycles/recent
func (h *CycleHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	events, err := h.store.ListRecent(r.Context(), opts.Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list recent cycles failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list cycles")
		return
	}
	writeJSON(w, http.StatusOK, events)
}
