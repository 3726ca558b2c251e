// Package metrics exposes Prometheus counters for the upstream clients and
// the market lifecycle.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/questbot/internal/domain"
)

// Recorder implements transport.Observer and lifecycle.Observer on a
// dedicated registry.
type Recorder struct {
	reg *prometheus.Registry

	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	throttleWait *prometheus.HistogramVec
	retries      *prometheus.CounterVec

	events      *prometheus.CounterVec
	bets        *prometheus.CounterVec
	stakeTotal  *prometheus.CounterVec
	skips       *prometheus.CounterVec
	confidence  prometheus.Histogram
	stateGauge  *prometheus.GaugeVec
	lastEventTS prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "questbot_upstream_requests_total",
			Help: "Upstream HTTP requests by final status code.",
		}, []string{"upstream", "status"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "questbot_upstream_request_duration_seconds",
			Help:    "Upstream request latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"upstream"}),
		throttleWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "questbot_throttle_wait_seconds",
			Help:    "Time spent waiting for a free slot in the rate window.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"upstream"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "questbot_upstream_retries_total",
			Help: "Retries by reason (rate_limited, server_error).",
		}, []string{"upstream", "reason"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "questbot_lifecycle_events_total",
			Help: "Lifecycle events by type.",
		}, []string{"type"}),
		bets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "questbot_bets_total",
			Help: "Bet attempts by result (placed, dry_run, failed).",
		}, []string{"result"}),
		stakeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "questbot_stake_total",
			Help: "Cumulative stake in CC.",
		}, []string{"mode"}),
		skips: f.NewCounterVec(prometheus.CounterOpts{
			Name: "questbot_decision_skips_total",
			Help: "Rejected decisions by funnel stage.",
		}, []string{"stage"}),
		confidence: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "questbot_bet_confidence",
			Help:    "Confidence of accepted decisions.",
			Buckets: prometheus.LinearBuckets(0.5, 0.05, 10),
		}),
		stateGauge: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "questbot_state",
			Help: "1 for the current lifecycle state, 0 otherwise.",
		}, []string{"state"}),
		lastEventTS: f.NewGauge(prometheus.GaugeOpts{
			Name: "questbot_last_event_timestamp_seconds",
			Help: "Unix time of the most recent lifecycle event.",
		}),
	}
}

// Registry returns the registry backing the recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveRequest records one completed upstream call. status 0 means a
// transport error.
func (r *Recorder) ObserveRequest(upstream string, status int, elapsed time.Duration) {
	r.requests.WithLabelValues(upstream, strconv.Itoa(status)).Inc()
	r.latency.WithLabelValues(upstream).Observe(elapsed.Seconds())
}

func (r *Recorder) ObserveThrottle(upstream string, wait time.Duration) {
	r.throttleWait.WithLabelValues(upstream).Observe(wait.Seconds())
}

func (r *Recorder) ObserveRetry(upstream string, reason string) {
	r.retries.WithLabelValues(upstream, reason).Inc()
}

// OnEvent updates the lifecycle collectors.
func (r *Recorder) OnEvent(_ context.Context, ev domain.Event) {
	r.events.WithLabelValues(string(ev.Type)).Inc()
	if !ev.At.IsZero() {
		r.lastEventTS.Set(float64(ev.At.Unix()))
	}

	switch ev.Type {
	case domain.EventStateChanged:
		if ev.From != "" {
			r.stateGauge.WithLabelValues(ev.From).Set(0)
		}
		r.stateGauge.WithLabelValues(ev.To).Set(1)
	case domain.EventBetPlaced:
		if ev.Bet == nil {
			return
		}
		result, mode := "placed", "live"
		if ev.Bet.DryRun {
			result, mode = "dry_run", "dry_run"
		}
		r.bets.WithLabelValues(result).Inc()
		r.stakeTotal.WithLabelValues(mode).Add(ev.Bet.Amount)
		r.confidence.Observe(ev.Bet.Confidence)
	case domain.EventBetFailed:
		r.bets.WithLabelValues("failed").Inc()
	case domain.EventDecisionSkipped:
		if ev.Decision != nil {
			r.skips.WithLabelValues(string(ev.Decision.Stage)).Inc()
		}
	}
}
