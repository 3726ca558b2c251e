package domain

import (
	"strconv"
	"time"
)

// MarketStatus represents the lifecycle state of a market as reported by the
// market API.
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "ACTIVE"
	MarketStatusResolved MarketStatus = "RESOLVED"
	MarketStatusVoided   MarketStatus = "VOIDED"
)

// Terminal reports whether no further status transitions are expected.
func (s MarketStatus) Terminal() bool {
	return s == MarketStatusResolved || s == MarketStatusVoided
}

// DefaultMinimumBet is used when a market omits its minimum stake.
const DefaultMinimumBet = 0.1

// Market is a single two-outcome, time-bounded prediction contract.
type Market struct {
	ID              string
	Question        string
	Outcomes        []string // outcome labels, e.g. ["YES","NO"]
	EndTime         time.Time
	Status          MarketStatus
	MinimumBet      float64
	PlatformFeeRate float64 // zero when the market does not report one
}

// OutcomeLabel returns the label for idx, or a generic placeholder when the
// market does not carry one.
func (m Market) OutcomeLabel(idx int) string {
	if idx >= 0 && idx < len(m.Outcomes) && m.Outcomes[idx] != "" {
		return m.Outcomes[idx]
	}
	return "outcome " + strconv.Itoa(idx)
}

// TimeToClose is the time remaining until EndTime, negative once closed.
func (m Market) TimeToClose(now time.Time) time.Duration {
	return m.EndTime.Sub(now)
}

// OutcomeStat is the pool snapshot for one side of a market.
type OutcomeStat struct {
	TotalAmount        float64
	ImpliedProbability float64
}

// MarketStats is the latest liquidity snapshot of a market. It is refetched on
// every decision tick and never cached.
type MarketStats struct {
	Outcomes  []OutcomeStat
	TotalPool float64
}

// Pool returns the stake on outcome idx, zero when absent.
func (s MarketStats) Pool(idx int) float64 {
	if idx < 0 || idx >= len(s.Outcomes) {
		return 0
	}
	return s.Outcomes[idx].TotalAmount
}

// MaxImpliedProbability returns the larger implied probability of the first
// two outcomes.
func (s MarketStats) MaxImpliedProbability() float64 {
	var p0, p1 float64
	if len(s.Outcomes) > 0 {
		p0 = s.Outcomes[0].ImpliedProbability
	}
	if len(s.Outcomes) > 1 {
		p1 = s.Outcomes[1].ImpliedProbability
	}
	if p0 > p1 {
		return p0
	}
	return p1
}
