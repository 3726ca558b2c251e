package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/questbot/internal/domain"
)

// BetHandler serves the local bet journal.
type BetHandler struct {
	journal domain.BetJournal
	logger  *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(journal domain.BetJournal, logger *slog.Logger) *BetHandler {
	return &BetHandler{journal: journal, logger: logger}
}

type listBetsResponse struct {
	Bets []domain.BetRecord `json:"bets"`
}

// ListByMarket returns journaled attempts for one market, newest first.
// GET /api/markets/{id}/bets
func (h *BetHandler) ListByMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	bets, err := h.journal.ListByMarket(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list bets failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list bets")
		return
	}
	if bets == nil {
		bets = []domain.BetRecord{}
	}
	writeJSON(w, http.StatusOK, listBetsResponse{Bets: bets})
}

// Count returns how many successful attempts were journaled since the given
// RFC 3339 time (default: the last 24 hours).
// GET /api/bets/count?since=...
func (h *BetHandler) Count(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		since = t
	}
	n, err := h.journal.CountSince(r.Context(), since)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count bets failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to count bets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"since": since.UTC().Format(time.RFC3339),
		"count": n,
	})
}
