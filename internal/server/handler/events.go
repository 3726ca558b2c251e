package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// StreamReader replays a bounded event stream.
type StreamReader interface {
	StreamRead(ctx context.Context, stream, lastID string, count int) ([][]byte, string, error)
}

// EventHandler replays recent lifecycle events from the shared stream.
type EventHandler struct {
	reader StreamReader
	stream string
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler reading stream.
func NewEventHandler(reader StreamReader, stream string, logger *slog.Logger) *EventHandler {
	return &EventHandler{reader: reader, stream: stream, logger: logger}
}

type listEventsResponse struct {
	Events []json.RawMessage `json:"events"`
	Next   string            `json:"next"`
}

// List returns up to ?limit= events after the ?after= stream ID ("0" or
// empty reads from the start). Pass the returned next value to continue.
// GET /api/events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	limit := 100
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = min(n, 1000)
	}

	payloads, next, err := h.reader.StreamRead(r.Context(), h.stream, after, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: read events failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}

	resp := listEventsResponse{Events: make([]json.RawMessage, 0, len(payloads)), Next: next}
	for _, p := range payloads {
		if json.Valid(p) {
			resp.Events = append(resp.Events, json.RawMessage(p))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
