package unhedged

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/questbot/internal/domain"
)

// flexString unmarshals from a JSON string or number so identifiers work
// whichever way the API encodes them.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexTime accepts RFC 3339 strings or Unix milliseconds.
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = flexTime(time.Time{})
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*f = flexTime(time.Time{})
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			*f = flexTime(time.UnixMilli(ms).UTC())
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return err
		}
		*f = flexTime(t)
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*f = flexTime(time.UnixMilli(ms).UTC())
	return nil
}

// --------------------------------------------------------------------------
// Market DTOs
// --------------------------------------------------------------------------

// APIOutcome is one side of a market.
type APIOutcome struct {
	Label string `json:"label"`
}

// APIMarket is a market as returned by the Unhedged API.
type APIMarket struct {
	ID              flexString          `json:"id"`
	Question        string              `json:"question"`
	Outcomes        []APIOutcome        `json:"outcomes"`
	EndTime         flexTime            `json:"endTime"`
	Status          string              `json:"status"`
	MinimumBet      decimal.NullDecimal `json:"minimumBet"`
	PlatformFeeRate decimal.NullDecimal `json:"platformFeeRate"`
}

// ToDomainMarket converts the wire representation. A missing minimum bet
// falls back to domain.DefaultMinimumBet.
func (m APIMarket) ToDomainMarket() domain.Market {
	out := domain.Market{
		ID:         string(m.ID),
		Question:   m.Question,
		EndTime:    time.Time(m.EndTime),
		Status:     domain.MarketStatus(strings.ToUpper(m.Status)),
		MinimumBet: domain.DefaultMinimumBet,
	}
	for _, o := range m.Outcomes {
		out.Outcomes = append(out.Outcomes, o.Label)
	}
	if m.MinimumBet.Valid && m.MinimumBet.Decimal.IsPositive() {
		out.MinimumBet = m.MinimumBet.Decimal.InexactFloat64()
	}
	if m.PlatformFeeRate.Valid {
		out.PlatformFeeRate = m.PlatformFeeRate.Decimal.InexactFloat64()
	}
	return out
}

type marketListResponse struct {
	Markets []APIMarket `json:"markets"`
}

// APIOutcomeStat is the pool snapshot for one outcome.
type APIOutcomeStat struct {
	TotalAmount        decimal.NullDecimal `json:"totalAmount"`
	ImpliedProbability decimal.NullDecimal `json:"impliedProbability"`
}

// APIMarketStats is the stats payload of a market.
type APIMarketStats struct {
	OutcomeStats []APIOutcomeStat   `json:"outcomeStats"`
	TotalPool    decimal.NullDecimal `json:"totalPool"`
}

// ToDomainStats converts the wire representation. Missing amounts are zero.
func (s APIMarketStats) ToDomainStats() domain.MarketStats {
	out := domain.MarketStats{
		Outcomes: make([]domain.OutcomeStat, 0, len(s.OutcomeStats)),
	}
	for _, o := range s.OutcomeStats {
		out.Outcomes = append(out.Outcomes, domain.OutcomeStat{
			TotalAmount:        nullFloat(o.TotalAmount),
			ImpliedProbability: nullFloat(o.ImpliedProbability),
		})
	}
	out.TotalPool = nullFloat(s.TotalPool)
	return out
}

type marketStatsResponse struct {
	Stats *APIMarketStats `json:"stats"`
}

// --------------------------------------------------------------------------
// Bet DTOs
// --------------------------------------------------------------------------

// APIBet is a bet as returned by the Unhedged API.
type APIBet struct {
	ID             flexString          `json:"id"`
	MarketID       flexString          `json:"marketId"`
	OutcomeIndex   int                 `json:"outcomeIndex"`
	Amount         decimal.NullDecimal `json:"amount"`
	Status         string              `json:"status"`
	IdempotencyKey string              `json:"idempotencyKey"`
	CreatedAt      flexTime            `json:"createdAt"`
}

// ToDomainBet converts the wire representation.
func (b APIBet) ToDomainBet() domain.Bet {
	return domain.Bet{
		ID:             string(b.ID),
		MarketID:       string(b.MarketID),
		OutcomeIndex:   b.OutcomeIndex,
		Amount:         nullFloat(b.Amount),
		Status:         domain.BetStatus(strings.ToUpper(b.Status)),
		IdempotencyKey: b.IdempotencyKey,
		CreatedAt:      time.Time(b.CreatedAt),
	}
}

type betListResponse struct {
	Bets []APIBet `json:"bets"`
}

// placeBetBody is the POST /bets/ payload. Amount is sent as a JSON number.
type placeBetBody struct {
	MarketID       string      `json:"marketId"`
	OutcomeIndex   int         `json:"outcomeIndex"`
	Amount         json.Number `json:"amount"`
	IdempotencyKey string      `json:"idempotencyKey"`
}

type placeBetResponse struct {
	Bet *APIBet `json:"bet"`
}

// --------------------------------------------------------------------------
// Account DTOs
// --------------------------------------------------------------------------

type balanceResponse struct {
	Balance *struct {
		Available decimal.NullDecimal `json:"available"`
	} `json:"balance"`
}

// APIAchievementStep is one tier of an achievement.
type APIAchievementStep struct {
	StepNumber     int                 `json:"stepNumber"`
	RequiredBets   int                 `json:"requiredBets"`
	RequiredVolume decimal.NullDecimal `json:"requiredVolume"`
	RewardAmount   decimal.NullDecimal `json:"rewardAmount"`
}

// APIAchievementProgress is the account's progress on one achievement.
type APIAchievementProgress struct {
	Achievement struct {
		Name  string               `json:"name"`
		Steps []APIAchievementStep `json:"steps"`
	} `json:"achievement"`
	CompletedStep int                 `json:"completedStep"`
	CurrentBets   int                 `json:"currentBets"`
	CurrentVolume decimal.NullDecimal `json:"currentVolume"`
}

// ToDomain converts the wire representation.
func (p APIAchievementProgress) ToDomain() domain.AchievementProgress {
	out := domain.AchievementProgress{
		Name:          p.Achievement.Name,
		CompletedStep: p.CompletedStep,
		CurrentBets:   p.CurrentBets,
		CurrentVolume: nullFloat(p.CurrentVolume),
	}
	for _, s := range p.Achievement.Steps {
		out.Steps = append(out.Steps, domain.AchievementStep{
			StepNumber:     s.StepNumber,
			RequiredBets:   s.RequiredBets,
			RequiredVolume: nullFloat(s.RequiredVolume),
			RewardAmount:   nullFloat(s.RewardAmount),
		})
	}
	return out
}

type achievementProgressResponse struct {
	Progress []APIAchievementProgress `json:"progress"`
}

func nullFloat(d decimal.NullDecimal) float64 {
	if !d.Valid {
		return 0
	}
	return d.Decimal.InexactFloat64()
}
