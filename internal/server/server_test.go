package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/questbot/internal/domain"
	"github.com/alanyoungcy/questbot/internal/lifecycle"
	"github.com/alanyoungcy/questbot/internal/server/handler"
	"github.com/alanyoungcy/questbot/internal/server/ws"
)

type fixedStatus struct{ rs lifecycle.RunState }

func (f fixedStatus) Snapshot() lifecycle.RunState { return f.rs }

type journal struct {
	byMarket map[string][]domain.BetRecord
	count    int64
	err      error
}

func (j *journal) Record(context.Context, domain.BetRecord) error { return nil }

func (j *journal) ListByMarket(_ context.Context, id string, opts domain.ListOpts) ([]domain.BetRecord, error) {
	recs := j.byMarket[id]
	if len(recs) > opts.Limit {
		recs = recs[:opts.Limit]
	}
	return recs, j.err
}

func (j *journal) CountSince(context.Context, time.Time) (int64, error) { return j.count, j.err }

type audit struct{ got domain.ListOpts }

func (a *audit) Log(context.Context, string, map[string]any) error { return nil }

func (a *audit) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	a.got = opts
	return nil, nil
}

type stream struct{ payloads [][]byte }

func (s stream) StreamRead(_ context.Context, _, lastID string, count int) ([][]byte, string, error) {
	if lastID != "0" {
		return nil, lastID, nil
	}
	return s.payloads[:min(count, len(s.payloads))], "2-0", nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestServer(cfg Config, checks map[string]handler.Check) (*Server, *journal, *audit) {
	log := quiet()
	j := &journal{byMarket: map[string][]domain.BetRecord{
		"M": {{MarketID: "M", IdempotencyKey: "a"}, {MarketID: "M", IdempotencyKey: "b"}},
	}, count: 7}
	a := &audit{}
	status := fixedStatus{rs: lifecycle.RunState{State: lifecycle.StateBettingWindow, TotalBets: 3}}
	s := New(cfg, Handlers{
		Health:  handler.NewHealthHandler(checks, log),
		Status:  handler.NewStatusHandler(status),
		Bets:    handler.NewBetHandler(j, log),
		Audit:   handler.NewAuditHandler(a, log),
		Events:  handler.NewEventHandler(stream{payloads: [][]byte{[]byte(`{"type":"stopped"}`), []byte(`not json`)}}, "events", log),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	}, nil, log)
	return s, j, a
}

func do(t *testing.T, h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatusRoute(t *testing.T) {
	s, _, _ := newTestServer(Config{}, nil)
	rec := do(t, s.Handler(), "GET", "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "betting_window", body["state"])
	assert.EqualValues(t, 3, body["total_bets"])
}

func TestHealthReportsFailingDependency(t *testing.T) {
	s, _, _ := newTestServer(Config{}, map[string]handler.Check{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})
	rec := do(t, s.Handler(), "GET", "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Dependencies["redis"])
	assert.Equal(t, "connection refused", body.Dependencies["postgres"])
}

func TestBetsRoutes(t *testing.T) {
	s, _, _ := newTestServer(Config{}, nil)

	rec := do(t, s.Handler(), "GET", "/api/markets/M/bets?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Bets []domain.BetRecord `json:"bets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Bets, 1)
	assert.Equal(t, "a", list.Bets[0].IdempotencyKey)

	rec = do(t, s.Handler(), "GET", "/api/markets/other/bets", nil)
	assert.JSONEq(t, `{"bets":[]}`, rec.Body.String())

	rec = do(t, s.Handler(), "GET", "/api/bets/count?since=2026-01-01T00:00:00Z", nil)
	assert.JSONEq(t, `{"since":"2026-01-01T00:00:00Z","count":7}`, rec.Body.String())

	rec = do(t, s.Handler(), "GET", "/api/bets/count?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditRouteParsesRange(t *testing.T) {
	s, _, a := newTestServer(Config{}, nil)
	rec := do(t, s.Handler(), "GET", "/api/audit?limit=900&since=2026-01-01T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries":[]}`, rec.Body.String())
	assert.Equal(t, 500, a.got.Limit)
	require.NotNil(t, a.got.Since)
	assert.Nil(t, a.got.Until)

	rec = do(t, s.Handler(), "GET", "/api/audit?until=bad", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsRouteSkipsInvalidPayloads(t *testing.T) {
	s, _, _ := newTestServer(Config{}, nil)
	rec := do(t, s.Handler(), "GET", "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"events":[{"type":"stopped"}],"next":"2-0"}`, rec.Body.String())
}

func TestAuthGuardsAPIButNotHealth(t *testing.T) {
	s, _, _ := newTestServer(Config{APIKey: "secret"}, nil)
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/api/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/metrics", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, "GET", "/api/status", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, "GET", "/api/status", map[string]string{"X-API-Key": "wrong"}).Code)
	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/api/status", map[string]string{"Authorization": "Bearer secret"}).Code)
	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/api/status", map[string]string{"X-API-Key": "secret"}).Code)
}

func TestRateLimitPerClient(t *testing.T) {
	s, _, _ := newTestServer(Config{RateLimit: 2, RateWindow: time.Minute}, nil)
	h := s.Handler()
	a := map[string]string{"X-Forwarded-For": "10.0.0.1, 172.16.0.1"}
	b := map[string]string{"X-Real-IP": "10.0.0.2"}

	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/api/status", a).Code)
	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/api/status", a).Code)
	rec := do(t, h, "GET", "/api/status", a)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/api/status", b).Code)
}

func TestCORSPreflight(t *testing.T) {
	s, _, _ := newTestServer(Config{CORSOrigins: []string{"https://dash.example"}}, nil)
	rec := do(t, s.Handler(), "OPTIONS", "/api/status", map[string]string{"Origin": "https://dash.example"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, s.Handler(), "GET", "/api/status", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocketStreamsEvents(t *testing.T) {
	log := quiet()
	status := fixedStatus{rs: lifecycle.RunState{State: lifecycle.StateSearching}}
	hub := ws.NewHub(status, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	s := New(Config{}, Handlers{}, hub, log)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var env struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "status", env.Type)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.OnEvent(ctx, domain.Event{Type: domain.EventStopped, Error: "bet cap reached"})

	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "stopped", env.Type)
	var ev domain.Event
	require.NoError(t, json.Unmarshal(env.Payload, &ev))
	assert.Equal(t, "bet cap reached", ev.Error)
}
