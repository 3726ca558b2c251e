// Package service holds the persistence side of the bot: it turns lifecycle
// events into journal rows, audit entries, bus messages and market archives.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/questbot/internal/domain"
)

// EventsChannel is both the Pub/Sub channel and the stream name events are
// published on.
const EventsChannel = "events"

// sinkTimeout bounds each individual sink write.
const sinkTimeout = 5 * time.Second

// Archiver uploads the record of a settled market.
type Archiver interface {
	ArchiveMarket(ctx context.Context, market domain.Market, events []domain.Event) (string, error)
}

// RecorderDeps lists the sinks a Recorder writes to. Every field is optional.
type RecorderDeps struct {
	Journal  domain.BetJournal
	Audit    domain.AuditStore
	Bus      domain.EventBus
	Archiver Archiver
}

// Recorder is a lifecycle observer. Sink failures are logged and never
// propagate back to the state machine.
type Recorder struct {
	deps    RecorderDeps
	pending map[string][]domain.Event
	logger  *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(deps RecorderDeps, logger *slog.Logger) *Recorder {
	return &Recorder{
		deps:    deps,
		pending: make(map[string][]domain.Event),
		logger:  logger.With(slog.String("component", "recorder")),
	}
}

// OnEvent is called on the lifecycle goroutine only, so pending needs no lock.
func (r *Recorder) OnEvent(ctx context.Context, ev domain.Event) {
	r.publish(ctx, ev)

	switch ev.Type {
	case domain.EventBetPlaced, domain.EventBetFailed:
		if ev.Bet != nil {
			r.journal(ctx, *ev.Bet)
		}
		r.audit(ctx, ev)
	case domain.EventMarketSelected, domain.EventStopped:
		r.audit(ctx, ev)
	}

	// Back in searching, any market still buffered was abandoned without a
	// resolution; resolved ones are archived and removed below.
	if ev.Type == domain.EventStateChanged && ev.To == "searching" {
		r.dropPending(ctx)
		return
	}

	id := eventMarketID(ev)
	if id == "" {
		return
	}
	r.pending[id] = append(r.pending[id], ev)

	if ev.Type == domain.EventMarketResolved && ev.Market != nil {
		r.audit(ctx, ev)
		r.archive(ctx, *ev.Market, r.pending[id])
		delete(r.pending, id)
	}
}

// Pending returns how many events are buffered for marketID.
func (r *Recorder) Pending(marketID string) int {
	return len(r.pending[marketID])
}

func (r *Recorder) dropPending(ctx context.Context) {
	for id, evs := range r.pending {
		r.logger.DebugContext(ctx, "dropping unresolved market buffer",
			slog.String("market_id", id),
			slog.Int("events", len(evs)),
		)
		delete(r.pending, id)
	}
}

func (r *Recorder) publish(ctx context.Context, ev domain.Event) {
	if r.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.WarnContext(ctx, "encode event failed", slog.String("error", err.Error()))
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	if err := r.deps.Bus.Publish(sctx, EventsChannel, payload); err != nil {
		r.logger.WarnContext(ctx, "publish event failed", slog.String("error", err.Error()))
	}
	if err := r.deps.Bus.StreamAppend(sctx, EventsChannel, payload); err != nil {
		r.logger.WarnContext(ctx, "stream event failed", slog.String("error", err.Error()))
	}
}

func (r *Recorder) journal(ctx context.Context, rec domain.BetRecord) {
	if r.deps.Journal == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	if err := r.deps.Journal.Record(sctx, rec); err != nil {
		r.logger.ErrorContext(ctx, "journal bet failed",
			slog.String("market_id", rec.MarketID),
			slog.String("idempotency_key", rec.IdempotencyKey),
			slog.String("error", err.Error()),
		)
	}
}

func (r *Recorder) audit(ctx context.Context, ev domain.Event) {
	if r.deps.Audit == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	if err := r.deps.Audit.Log(sctx, "lifecycle."+string(ev.Type), auditDetail(ev)); err != nil {
		r.logger.WarnContext(ctx, "audit log failed", slog.String("error", err.Error()))
	}
}

func (r *Recorder) archive(ctx context.Context, market domain.Market, events []domain.Event) {
	if r.deps.Archiver == nil {
		return
	}
	// Uploads can be large; allow longer than a single row write.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 6*sinkTimeout)
	defer cancel()
	key, err := r.deps.Archiver.ArchiveMarket(sctx, market, events)
	if err != nil {
		r.logger.ErrorContext(ctx, "archive market failed",
			slog.String("market_id", market.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.InfoContext(ctx, "market archived",
		slog.String("market_id", market.ID),
		slog.String("key", key),
		slog.Int("events", len(events)),
	)
}

func eventMarketID(ev domain.Event) string {
	switch {
	case ev.Market != nil:
		return ev.Market.ID
	case ev.Bet != nil:
		return ev.Bet.MarketID
	}
	return ""
}

func auditDetail(ev domain.Event) map[string]any {
	d := map[string]any{"at": ev.At.UTC().Format(time.RFC3339)}
	if ev.Market != nil {
		d["market_id"] = ev.Market.ID
		d["question"] = ev.Market.Question
		d["status"] = string(ev.Market.Status)
	}
	if ev.Bet != nil {
		d["market_id"] = ev.Bet.MarketID
		d["outcome_index"] = ev.Bet.OutcomeIndex
		d["amount"] = ev.Bet.Amount
		d["idempotency_key"] = ev.Bet.IdempotencyKey
		d["dry_run"] = ev.Bet.DryRun
		if ev.Bet.BetID != "" {
			d["bet_id"] = ev.Bet.BetID
		}
	}
	if ev.Error != "" {
		d["error"] = ev.Error
	}
	return d
}
