package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/questbot/internal/clock"
	"github.com/alanyoungcy/questbot/internal/domain"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, srv *httptest.Server, clk clock.Clock, mutate func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		Name:                 "test",
		BaseURL:              srv.URL,
		MaxRequestsPerMinute: 600,
		BufferRequests:       0,
		RetryAfter:           2 * time.Second,
		ServerErrorRetry:     RetryPolicy{Enabled: true, MaxRetries: 1, Wait: 5 * time.Second},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg, clk, quietLogger())
	require.NoError(t, err)
	return c
}

func TestNewRejectsEmptyBudget(t *testing.T) {
	_, err := New(Config{Name: "x", MaxRequestsPerMinute: 5, BufferRequests: 5}, nil, nil)
	require.Error(t, err)
}

func TestDoSpacesRequestsByMinInterval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	clk := clock.NewFake(epoch)
	c := newTestClient(t, srv, clk, func(cfg *Config) {
		cfg.MaxRequestsPerMinute = 30
		cfg.BufferRequests = 5
	})
	require.Equal(t, 2400*time.Millisecond, c.MinInterval())

	for i := 0; i < 3; i++ {
		_, err := c.Do(context.Background(), Request{Path: "/ping"})
		require.NoError(t, err)
	}
	assert.Equal(t, []time.Duration{2400 * time.Millisecond, 2400 * time.Millisecond}, clk.Sleeps())
}

func TestReserveDelayWaitsForOldestEntryToExpire(t *testing.T) {
	clk := clock.NewFake(epoch)
	c, err := New(Config{Name: "x", MaxRequestsPerMinute: 3}, clk, quietLogger())
	require.NoError(t, err)

	c.ledger.Record(epoch.Add(-50 * time.Second))
	c.ledger.Record(epoch.Add(-40 * time.Second))
	c.ledger.Record(epoch.Add(-30 * time.Second))

	// Oldest leaves the window 10s from now, plus the 100ms margin.
	assert.Equal(t, 10*time.Second+100*time.Millisecond, c.reserveDelay(epoch))
}

func TestDoNeverExceedsWindowCap(t *testing.T) {
	clk := clock.NewFake(epoch)
	var (
		mu    sync.Mutex
		sent  []time.Time
		calls atomic.Int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		sent = append(sent, clk.Now())
		mu.Unlock()
		// Every third call is throttled by the server to mix in retries.
		if calls.Add(1)%3 == 0 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, clk, func(cfg *Config) {
		cfg.MaxRequestsPerMinute = 8
		cfg.BufferRequests = 3
	})

	for i := 0; i < 20; i++ {
		_, err := c.Do(context.Background(), Request{Path: "/x"})
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := range sent {
		inWindow := 0
		for j := range sent {
			if !sent[j].Before(sent[i]) && sent[j].Sub(sent[i]) < time.Minute {
				inWindow++
			}
		}
		assert.LessOrEqual(t, inWindow, 5, "window starting at request %d", i)
	}
}

func TestDoRetries429UsingRetryAfterHeader(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	clk := clock.NewFake(epoch)
	c := newTestClient(t, srv, clk, nil)

	body, err := c.Do(context.Background(), Request{Path: "/markets"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{3 * time.Second}, clk.Sleeps())
}

func TestDoRetries429WithDefaultWait(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 4 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	clk := clock.NewFake(epoch)
	c := newTestClient(t, srv, clk, nil)

	_, err := c.Do(context.Background(), Request{Path: "/markets"})
	require.NoError(t, err)
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, 8*time.Second, clk.Slept())
}

func TestDoServerErrorRetriesOnceThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	clk := clock.NewFake(epoch)
	c := newTestClient(t, srv, clk, nil)

	_, err := c.Do(context.Background(), Request{Path: "/markets"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServerUnavailable)
	assert.Equal(t, int32(2), calls.Load(), "one attempt plus exactly one retry")
	assert.Equal(t, []time.Duration{5 * time.Second}, clk.Sleeps())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "upstream down", apiErr.Error())
}

func TestDoServerErrorCollapsesHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>Bad gateway</body></html>"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, clock.NewFake(epoch), func(cfg *Config) {
		cfg.ServerErrorRetry.Enabled = false
	})

	_, err := c.Do(context.Background(), Request{Path: "/markets"})
	require.Error(t, err)
	assert.Equal(t, "Server error 502", err.Error())
}

func TestDoClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	long := strings.Repeat("x", 900)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(long))
	}))
	defer srv.Close()

	clk := clock.NewFake(epoch)
	c := newTestClient(t, srv, clk, nil)

	_, err := c.Do(context.Background(), Request{Path: "/bets/", Method: http.MethodPost, Body: map[string]any{"a": 1}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrClientOrAuth)
	assert.NotErrorIs(t, err, domain.ErrServerUnavailable)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, clk.Sleeps())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Len(t, apiErr.Body, 500)
	assert.True(t, strings.HasPrefix(err.Error(), "API Error 400: "))
}

func TestDoUnauthorizedUnwrapsToBothSentinels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, clock.NewFake(epoch), nil)
	_, err := c.Do(context.Background(), Request{Path: "/balance/"})
	assert.ErrorIs(t, err, domain.ErrClientOrAuth)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestDoSendsHeadersQueryAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "ACTIVE", r.URL.Query().Get("status"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "m1", body["marketId"])
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, clock.NewFake(epoch), func(cfg *Config) {
		cfg.Headers = map[string]string{"Authorization": "Bearer k"}
	})
	_, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/api/v1/bets/",
		Query:  map[string][]string{"status": {"ACTIVE"}},
		Body:   map[string]any{"marketId": "m1"},
	})
	require.NoError(t, err)
}

func TestRemainingTracksWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	clk := clock.NewFake(epoch)
	c := newTestClient(t, srv, clk, func(cfg *Config) {
		cfg.MaxRequestsPerMinute = 30
		cfg.BufferRequests = 5
	})
	assert.Equal(t, 25, c.Remaining())

	for i := 0; i < 4; i++ {
		_, err := c.Do(context.Background(), Request{Path: "/x"})
		require.NoError(t, err)
	}
	assert.Equal(t, 21, c.Remaining())

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 25, c.Remaining())
}

func TestDoHonoursCancellationWhileThrottled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	clk := clock.NewFake(epoch)
	ctx, cancel := context.WithCancel(context.Background())
	clk.OnSleep(func(time.Duration) { cancel() })

	c := newTestClient(t, srv, clk, nil)
	_, err := c.Do(ctx, Request{Path: "/x"})
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingObserver struct {
	mu        sync.Mutex
	statuses  []int
	retries   []string
	throttles int
}

func (o *recordingObserver) ObserveRequest(_ string, status int, _ time.Duration) {
	o.mu.Lock()
	o.statuses = append(o.statuses, status)
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveThrottle(string, time.Duration) {
	o.mu.Lock()
	o.throttles++
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveRetry(_ string, reason string) {
	o.mu.Lock()
	o.retries = append(o.retries, reason)
	o.mu.Unlock()
}

func TestObserverSeesRequestsAndRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := newTestClient(t, srv, clock.NewFake(epoch), nil)
	c.SetObserver(obs)

	_, err := c.Do(context.Background(), Request{Path: "/x"})
	require.NoError(t, err)
	assert.Equal(t, []int{http.StatusGatewayTimeout, http.StatusOK}, obs.statuses)
	assert.Equal(t, []string{"server_error"}, obs.retries)
}

func TestParseRetryAfter(t *testing.T) {
	now := epoch
	assert.Equal(t, 2*time.Second, parseRetryAfter("", 2*time.Second, now))
	assert.Equal(t, 7*time.Second, parseRetryAfter("7", 2*time.Second, now))
	assert.Equal(t, 1500*time.Millisecond, parseRetryAfter("1.5", 2*time.Second, now))
	assert.Equal(t, 2*time.Second, parseRetryAfter("soon", 2*time.Second, now))
	date := now.Add(4 * time.Second).Format(http.TimeFormat)
	assert.Equal(t, 4*time.Second, parseRetryAfter(date, 2*time.Second, now))
}

func TestParseRetryAfterClampsHugeValues(t *testing.T) {
	now := epoch
	for _, v := range []string{"300", "1e12", "99999999999", "1e300", "+Inf"} {
		got := parseRetryAfter(v, 2*time.Second, now)
		assert.Equal(t, maxRetryAfter, got, v)
	}
	far := now.Add(48 * time.Hour).Format(http.TimeFormat)
	assert.Equal(t, maxRetryAfter, parseRetryAfter(far, 2*time.Second, now))
	assert.Equal(t, 299*time.Second, parseRetryAfter("299", 2*time.Second, now))
}
