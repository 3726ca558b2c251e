package domain

import "time"

// Balance is the account's spendable funds.
type Balance struct {
	Available float64
}

// Equity is a point-in-time valuation of the account. The payload shape is
// not relied upon, so it is kept untyped for reporting.
type Equity map[string]any

// Portfolio is the account overview returned by the market API.
type Portfolio map[string]any

// AchievementStep is one tier of a quest achievement.
type AchievementStep struct {
	StepNumber     int
	RequiredBets   int
	RequiredVolume float64
	RewardAmount   float64
}

// AchievementProgress is the account's progress through one achievement.
type AchievementProgress struct {
	Name          string
	Steps         []AchievementStep
	CompletedStep int
	CurrentBets   int
	CurrentVolume float64
}

// NextStep returns the step following the last completed one.
func (p AchievementProgress) NextStep() (AchievementStep, bool) {
	for _, s := range p.Steps {
		if s.StepNumber == p.CompletedStep+1 {
			return s, true
		}
	}
	return AchievementStep{}, false
}

// PriceQuote is a spot USD price for an asset symbol.
type PriceQuote struct {
	Symbol string
	Price  float64
	At     time.Time
}
