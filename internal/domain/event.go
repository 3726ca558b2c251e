package domain

import "time"

// EventType classifies a lifecycle event.
type EventType string

const (
	EventStateChanged    EventType = "state_changed"
	EventMarketSelected  EventType = "market_selected"
	EventBetPlaced       EventType = "bet_placed"
	EventBetFailed       EventType = "bet_failed"
	EventDecisionSkipped EventType = "decision_skipped"
	EventMarketResolved  EventType = "market_resolved"
	EventStopped         EventType = "stopped"
)

// Event is emitted by the market lifecycle on every observable transition.
// Only the fields relevant to Type are populated.
type Event struct {
	Type     EventType    `json:"type"`
	At       time.Time    `json:"at"`
	From     string       `json:"from,omitempty"`
	To       string       `json:"to,omitempty"`
	Market   *Market      `json:"market,omitempty"`
	Decision *BetDecision `json:"decision,omitempty"`
	Bet      *BetRecord   `json:"bet,omitempty"`
	Error    string       `json:"error,omitempty"`
}
