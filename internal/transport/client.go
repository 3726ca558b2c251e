// Package transport implements the rate-governed, retrying HTTP client that
// every upstream call goes through. Each upstream gets its own Client and
// therefore its own request ledger.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/questbot/internal/clock"
)

const (
	defaultWindow       = time.Minute
	defaultRetryAfter   = 2 * time.Second
	defaultSafetyMargin = 100 * time.Millisecond
	defaultTimeout      = 30 * time.Second
)

// RetryPolicy controls retries of 502/503/504 responses.
type RetryPolicy struct {
	Enabled    bool
	MaxRetries int
	Wait       time.Duration
}

// Config holds the per-upstream client settings.
type Config struct {
	// Name identifies the upstream in logs and metrics, e.g. "unhedged".
	Name    string
	BaseURL string
	Headers map[string]string

	MaxRequestsPerMinute int
	// BufferRequests is held in reserve below MaxRequestsPerMinute.
	BufferRequests int
	// RetryAfter is used for 429 responses without a usable Retry-After header.
	RetryAfter time.Duration
	// SafetyMargin is added when waiting for the oldest request to leave the
	// window.
	SafetyMargin     time.Duration
	ServerErrorRetry RetryPolicy
	Timeout          time.Duration
	// Proxies are tried in order; the next one is selected after a transport
	// failure.
	Proxies []string
}

// Observer receives request telemetry. All methods must be cheap.
type Observer interface {
	ObserveRequest(upstream string, status int, elapsed time.Duration)
	ObserveThrottle(upstream string, wait time.Duration)
	ObserveRetry(upstream string, reason string)
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON encoded when non-nil.
	Body any
}

// Client is safe for concurrent use. The ledger reservation is atomic, so the
// per-window cap holds even with several callers.
type Client struct {
	cfg         Config
	http        *resty.Client
	clock       clock.Clock
	logger      *slog.Logger
	minInterval time.Duration

	mu       sync.Mutex
	ledger   *Ledger
	observer Observer
	proxyIdx int
}

// New builds a Client. It returns an error if the rate limit leaves no usable
// budget.
func New(cfg Config, clk clock.Clock, logger *slog.Logger) (*Client, error) {
	budget := cfg.MaxRequestsPerMinute - cfg.BufferRequests
	if budget <= 0 {
		return nil, fmt.Errorf("transport: %s: max_requests_per_minute (%d) must exceed buffer_requests (%d)",
			cfg.Name, cfg.MaxRequestsPerMinute, cfg.BufferRequests)
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = defaultRetryAfter
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = defaultSafetyMargin
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	for k, v := range cfg.Headers {
		rc.SetHeader(k, v)
	}
	if len(cfg.Proxies) > 0 {
		rc.SetProxy(cfg.Proxies[0])
	}

	return &Client{
		cfg:         cfg,
		http:        rc,
		clock:       clk,
		logger:      logger.With(slog.String("component", "transport"), slog.String("upstream", cfg.Name)),
		minInterval: defaultWindow / time.Duration(budget),
		ledger:      NewLedger(budget, defaultWindow),
	}, nil
}

// SetObserver installs a telemetry observer.
func (c *Client) SetObserver(o Observer) {
	c.mu.Lock()
	c.observer = o
	c.mu.Unlock()
}

// Remaining returns how many more requests fit in the current window.
func (c *Client) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledger.Prune(c.clock.Now())
	return c.ledger.Cap() - c.ledger.Len()
}

// MinInterval is the enforced spacing between consecutive requests.
func (c *Client) MinInterval() time.Duration { return c.minInterval }

// Do performs req and returns the raw response body of a 2xx response.
//
// 429 responses are retried for as long as ctx allows. 502/503/504 responses
// are retried according to the server-error policy. Any other non-2xx status
// fails immediately with *APIError.
func (c *Client) Do(ctx context.Context, req Request) ([]byte, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	serverRetries := 0

	for {
		if err := c.acquire(ctx); err != nil {
			return nil, fmt.Errorf("transport: %s %s: %w", method, req.Path, err)
		}

		start := c.clock.Now()
		resp, err := c.send(ctx, method, req)
		if err != nil {
			c.rotateProxy(err)
			return nil, fmt.Errorf("transport: %s %s: %w", method, req.Path, err)
		}
		status := resp.StatusCode()
		body := resp.Body()
		c.observeRequest(status, c.clock.Now().Sub(start))

		switch {
		case status == http.StatusTooManyRequests:
			wait := parseRetryAfter(resp.Header().Get("Retry-After"), c.cfg.RetryAfter, c.clock.Now())
			c.logger.WarnContext(ctx, "rate limited by upstream, backing off",
				slog.String("path", req.Path),
				slog.Duration("wait", wait),
			)
			c.observeRetry("rate_limited")
			if err := c.clock.Sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("transport: %s %s: %w", method, req.Path, err)
			}
			continue

		case isServerError(status):
			msg := serverErrorMessage(status, body)
			policy := c.cfg.ServerErrorRetry
			if policy.Enabled && serverRetries < policy.MaxRetries {
				serverRetries++
				c.logger.WarnContext(ctx, "server error, retrying",
					slog.String("path", req.Path),
					slog.String("error", msg),
					slog.Int("attempt", serverRetries),
					slog.Int("max_retries", policy.MaxRetries),
					slog.Duration("wait", policy.Wait),
				)
				c.observeRetry("server_error")
				if err := c.clock.Sleep(ctx, policy.Wait); err != nil {
					return nil, fmt.Errorf("transport: %s %s: %w", method, req.Path, err)
				}
				continue
			}
			return nil, &APIError{Status: status, Body: msg}

		case status < 200 || status >= 300:
			return nil, &APIError{Status: status, Body: truncate(string(body), clientErrorBodyLimit)}
		}

		return body, nil
	}
}

// acquire blocks until the ledger admits one more request, then records it.
// The send time is recorded before the request leaves so the accounting
// reflects actual network usage.
func (c *Client) acquire(ctx context.Context) error {
	for {
		c.mu.Lock()
		now := c.clock.Now()
		wait := c.reserveDelay(now)
		if wait <= 0 {
			c.ledger.Record(now)
			c.mu.Unlock()
			return nil
		}
		obs := c.observer
		c.mu.Unlock()

		if obs != nil {
			obs.ObserveThrottle(c.cfg.Name, wait)
		}
		c.logger.DebugContext(ctx, "rate limit buffer, waiting", slog.Duration("wait", wait))
		if err := c.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// reserveDelay returns how long to wait before the next request may start.
// Caller holds c.mu.
func (c *Client) reserveDelay(now time.Time) time.Duration {
	c.ledger.Prune(now)
	if c.ledger.Full() {
		oldest, _ := c.ledger.Oldest()
		return c.ledger.Window() - now.Sub(oldest) + c.cfg.SafetyMargin
	}
	if latest, ok := c.ledger.Latest(); ok {
		if elapsed := now.Sub(latest); elapsed < c.minInterval {
			return c.minInterval - elapsed
		}
	}
	return 0
}

func (c *Client) send(ctx context.Context, method string, req Request) (*resty.Response, error) {
	r := c.http.R().SetContext(ctx)
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json")
		r.SetBody(req.Body)
	}
	return r.Execute(method, req.Path)
}

// rotateProxy switches to the next configured proxy after a transport-level
// failure. Cancellation is not a proxy fault.
func (c *Client) rotateProxy(err error) {
	if len(c.cfg.Proxies) < 2 || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	c.mu.Lock()
	c.proxyIdx = (c.proxyIdx + 1) % len(c.cfg.Proxies)
	next := c.cfg.Proxies[c.proxyIdx]
	c.mu.Unlock()
	c.http.SetProxy(next)
	c.logger.Warn("switching proxy after transport error",
		slog.Int("proxy_index", c.proxyIdx),
		slog.String("error", err.Error()),
	)
}

func (c *Client) observeRequest(status int, elapsed time.Duration) {
	c.mu.Lock()
	obs := c.observer
	c.mu.Unlock()
	if obs != nil {
		obs.ObserveRequest(c.cfg.Name, status, elapsed)
	}
}

func (c *Client) observeRetry(reason string) {
	c.mu.Lock()
	obs := c.observer
	c.mu.Unlock()
	if obs != nil {
		obs.ObserveRetry(c.cfg.Name, reason)
	}
}

// maxRetryAfter bounds a server-supplied Retry-After.
const maxRetryAfter = 5 * time.Minute

// parseRetryAfter accepts delta-seconds or an HTTP date, falling back to def.
// The result never exceeds maxRetryAfter.
func parseRetryAfter(v string, def time.Duration, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
		if secs >= maxRetryAfter.Seconds() {
			return maxRetryAfter
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return min(d, maxRetryAfter)
		}
		return 0
	}
	return def
}
