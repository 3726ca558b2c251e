package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/questbot/internal/domain"
)

type memJournal struct {
	recs []domain.BetRecord
	err  error
}

func (j *memJournal) Record(_ context.Context, rec domain.BetRecord) error {
	j.recs = append(j.recs, rec)
	return j.err
}

func (j *memJournal) ListByMarket(context.Context, string, domain.ListOpts) ([]domain.BetRecord, error) {
	return j.recs, nil
}

func (j *memJournal) CountSince(context.Context, time.Time) (int64, error) {
	return int64(len(j.recs)), nil
}

type memAudit struct{ events []string }

func (a *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.events = append(a.events, event)
	return nil
}

func (a *memAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type memBus struct {
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
}

func (b *memBus) Publish(_ context.Context, ch string, p []byte) error {
	b.published[ch] = append(b.published[ch], p)
	return nil
}

func (b *memBus) StreamAppend(_ context.Context, s string, p []byte) error {
	b.streamed[s] = append(b.streamed[s], p)
	return nil
}

type memArchiver struct {
	market domain.Market
	events []domain.Event
	calls  int
	err    error
}

func (a *memArchiver) ArchiveMarket(_ context.Context, m domain.Market, evs []domain.Event) (string, error) {
	a.calls++
	a.market = m
	a.events = append([]domain.Event(nil), evs...)
	return "archive/markets/" + m.ID + ".jsonl", a.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func marketSession() []domain.Event {
	m := &domain.Market{ID: "M1", Question: "Will BTC be above $100,000?", Status: domain.MarketStatusActive}
	resolved := *m
	resolved.Status = domain.MarketStatusResolved
	return []domain.Event{
		{Type: domain.EventStateChanged, From: "searching", To: "awaiting_window"},
		{Type: domain.EventMarketSelected, Market: m},
		{Type: domain.EventBetPlaced, Bet: &domain.BetRecord{MarketID: "M1", Amount: 0.1, IdempotencyKey: "k1", BetID: "b1"}},
		{Type: domain.EventBetFailed, Bet: &domain.BetRecord{MarketID: "M1", Amount: 0.1, IdempotencyKey: "k2"}, Error: "rejected"},
		{Type: domain.EventDecisionSkipped, Market: m, Decision: &domain.BetDecision{Stage: domain.StageCooldown}},
		{Type: domain.EventMarketResolved, Market: &resolved},
	}
}

func TestRecorderFansOutToEverySink(t *testing.T) {
	journal := &memJournal{}
	audit := &memAudit{}
	bus := newMemBus()
	arch := &memArchiver{}
	r := NewRecorder(RecorderDeps{Journal: journal, Audit: audit, Bus: bus, Archiver: arch}, quietLogger())

	for _, ev := range marketSession() {
		r.OnEvent(context.Background(), ev)
	}

	require.Len(t, journal.recs, 2)
	assert.Equal(t, "k1", journal.recs[0].IdempotencyKey)
	assert.Equal(t, "k2", journal.recs[1].IdempotencyKey)

	assert.Equal(t, []string{
		"lifecycle.market_selected",
		"lifecycle.bet_placed",
		"lifecycle.bet_failed",
		"lifecycle.market_resolved",
	}, audit.events)

	assert.Len(t, bus.published[EventsChannel], 6)
	assert.Len(t, bus.streamed[EventsChannel], 6)
	var first domain.Event
	require.NoError(t, json.Unmarshal(bus.published[EventsChannel][0], &first))
	assert.Equal(t, domain.EventStateChanged, first.Type)

	require.Equal(t, 1, arch.calls)
	assert.Equal(t, domain.MarketStatusResolved, arch.market.Status)
	// the state change carries no market and is not archived
	assert.Len(t, arch.events, 5)
	assert.Equal(t, 0, r.Pending("M1"))
}

func TestRecorderWithoutSinks(t *testing.T) {
	r := NewRecorder(RecorderDeps{}, quietLogger())
	for _, ev := range marketSession() {
		r.OnEvent(context.Background(), ev)
	}
	assert.Equal(t, 0, r.Pending("M1"))
}

func TestRecorderSurvivesSinkErrors(t *testing.T) {
	journal := &memJournal{err: errors.New("db down")}
	arch := &memArchiver{err: errors.New("s3 down")}
	r := NewRecorder(RecorderDeps{Journal: journal, Archiver: arch}, quietLogger())

	for _, ev := range marketSession() {
		r.OnEvent(context.Background(), ev)
	}
	assert.Len(t, journal.recs, 2)
	assert.Equal(t, 1, arch.calls)
	assert.Equal(t, 0, r.Pending("M1"))
}

func TestRecorderBuffersUntilResolved(t *testing.T) {
	r := NewRecorder(RecorderDeps{}, quietLogger())
	for _, ev := range marketSession()[:3] {
		r.OnEvent(context.Background(), ev)
	}
	assert.Equal(t, 2, r.Pending("M1"))
}

func TestRecorderDropsAbandonedMarket(t *testing.T) {
	arch := &memArchiver{}
	r := NewRecorder(RecorderDeps{Archiver: arch}, quietLogger())
	for _, ev := range marketSession()[:3] {
		r.OnEvent(context.Background(), ev)
	}
	require.Equal(t, 2, r.Pending("M1"))

	r.OnEvent(context.Background(), domain.Event{Type: domain.EventStateChanged, From: "awaiting_window", To: "searching"})

	assert.Equal(t, 0, r.Pending("M1"))
	assert.Zero(t, arch.calls)
}

func TestAuditDetail(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := auditDetail(domain.Event{
		Type:  domain.EventBetPlaced,
		At:    at,
		Bet:   &domain.BetRecord{MarketID: "M", Amount: 0.5, IdempotencyKey: "k", DryRun: true},
		Error: "",
	})
	assert.Equal(t, "2026-01-02T03:04:05Z", d["at"])
	assert.Equal(t, "M", d["market_id"])
	assert.Equal(t, true, d["dry_run"])
	assert.NotContains(t, d, "bet_id")
	assert.NotContains(t, d, "error")
}
