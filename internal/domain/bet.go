package domain

import "time"

// BetStatus is the settlement state of a bet.
type BetStatus string

const (
	BetStatusPending   BetStatus = "PENDING"
	BetStatusConfirmed BetStatus = "CONFIRMED"
	BetStatusWon       BetStatus = "WON"
	BetStatusLost      BetStatus = "LOST"
	BetStatusRefunded  BetStatus = "REFUNDED"
)

// Outstanding reports whether the bet is still waiting on its market.
func (s BetStatus) Outstanding() bool {
	return s == BetStatusPending || s == BetStatusConfirmed
}

// Bet is a stake placed on one outcome of a market.
type Bet struct {
	ID             string
	MarketID       string
	OutcomeIndex   int
	Amount         float64
	Status         BetStatus
	IdempotencyKey string
	CreatedAt      time.Time
}

// BetRequest is the payload for placing a new bet.
type BetRequest struct {
	MarketID       string
	OutcomeIndex   int
	Amount         float64
	IdempotencyKey string
}

// BetFilter narrows a bet listing.
type BetFilter struct {
	Status   BetStatus
	MarketID string
	Limit    int
}

// DecisionStage names the funnel stage that produced a decision.
type DecisionStage string

const (
	StageCooldown    DecisionStage = "cooldown"
	StageBalance     DecisionStage = "balance"
	StageShape       DecisionStage = "shape"
	StageMajority    DecisionStage = "majority"
	StagePriceData   DecisionStage = "price_data"
	StageTarget      DecisionStage = "target"
	StageUncertainty DecisionStage = "uncertainty"
	StagePayout      DecisionStage = "payout"
	StageAccepted    DecisionStage = "accepted"
)

// Signals carries the intermediate values computed while scoring a market.
// Fields past the stage that stopped the funnel are left at zero.
type Signals struct {
	MajorityIndex   int
	MajorityShare   float64
	TargetPrice     float64
	CurrentPrice    float64
	PercentDelta    float64
	PriceScore      float64
	Combined        float64
	EstimatedPayout float64 // payout multiple after fees
	ExpectedReturn  float64 // stake * EstimatedPayout
}

// BetDecision is the outcome of one strategy evaluation. It is a value
// object; a new one is produced on every evaluation.
type BetDecision struct {
	ShouldBet    bool
	OutcomeIndex int
	Amount       float64
	Confidence   float64
	Reason       string
	Stage        DecisionStage
	Signals      Signals
}
