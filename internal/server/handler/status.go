package handler

import (
	"net/http"

	"github.com/alanyoungcy/questbot/internal/lifecycle"
)

// StatusSource exposes the lifecycle's current run state.
type StatusSource interface {
	Snapshot() lifecycle.RunState
}

// StatusHandler serves the bot's run state.
type StatusHandler struct {
	source StatusSource
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(source StatusSource) *StatusHandler {
	return &StatusHandler{source: source}
}

// GetStatus responds with the lifecycle snapshot.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.source.Snapshot())
}
