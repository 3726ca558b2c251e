package lifecycle

import (
	"time"

	"github.com/alanyoungcy/questbot/internal/domain"
)

// State is a lifecycle phase.
type State int

const (
	StateSearching State = iota
	StateAwaitingWindow
	StateBettingWindow
	StateAwaitingResolution
	StateAwaitingBalance
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateAwaitingWindow:
		return "awaiting_window"
	case StateBettingWindow:
		return "betting_window"
	case StateAwaitingResolution:
		return "awaiting_resolution"
	case StateAwaitingBalance:
		return "awaiting_balance"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RunState is a point-in-time copy of the lifecycle's mutable state. It is
// safe to hand to other goroutines.
type RunState struct {
	State        State               `json:"state"`
	Market       *domain.Market      `json:"market,omitempty"`
	TotalBets    int                 `json:"total_bets"`
	MaxTotalBets int                 `json:"max_total_bets,omitempty"`
	MarketBets   int                 `json:"market_bets"`
	DryRun       bool                `json:"dry_run"`
	Balance      float64             `json:"balance"`
	LastDecision *domain.BetDecision `json:"last_decision,omitempty"`
	Remaining    int                 `json:"requests_remaining"`
	StartedAt    time.Time           `json:"started_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}
