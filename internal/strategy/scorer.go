// Package strategy decides whether and how to bet on a market given its pool
// split and the live price of the underlying asset.
package strategy

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/questbot/internal/clock"
	"github.com/alanyoungcy/questbot/internal/domain"
)

const (
	bullishScore  = 0.8
	bearishScore  = 0.2
	majorityYes   = 0.9
	majorityNo    = 0.1
	neutralPivot  = 0.5
	binaryOutcome = 2
)

// priceKeywords mark a question as comparable against a spot price.
var priceKeywords = []string{"price", "above", "below", "btc", "eth", "bitcoin", "ethereum", "$"}

// Config holds the scoring thresholds and weights.
type Config struct {
	Cooldown                  time.Duration
	MajorityThreshold         float64
	MajorityWeight            float64
	PriceDeltaWeight          float64
	PriceUncertaintyThreshold float64
	// MinPayoutThreshold is the minimum expected return in currency units.
	// Zero disables the check.
	MinPayoutThreshold float64
	// UseAllBalance stakes the whole balance instead of the minimum bet.
	UseAllBalance bool
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		Cooldown:                  2500 * time.Millisecond,
		MajorityThreshold:         0.80,
		MajorityWeight:            0.6,
		PriceDeltaWeight:          0.4,
		PriceUncertaintyThreshold: 0.001,
	}
}

// Scorer runs the decision funnel. Its only state is the time of the last
// accepted decision, which drives the cooldown.
type Scorer struct {
	cfg       Config
	extractor TargetExtractor
	clock     clock.Clock

	mu           sync.Mutex
	lastAccepted time.Time
}

// NewScorer creates a Scorer. A nil extractor selects QuestionExtractor.
func NewScorer(cfg Config, extractor TargetExtractor, clk clock.Clock) *Scorer {
	if extractor == nil {
		extractor = QuestionExtractor{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Scorer{cfg: cfg, extractor: extractor, clock: clk}
}

// Config returns the scorer's thresholds.
func (s *Scorer) Config() Config { return s.cfg }

// Decide evaluates one market snapshot. quote may be nil when no price is
// available. Checks run cheapest first and stop at the first rejection.
func (s *Scorer) Decide(market domain.Market, stats domain.MarketStats, quote *domain.PriceQuote, balance, minBet float64) domain.BetDecision {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if !s.lastAccepted.IsZero() && now.Sub(s.lastAccepted) < s.cfg.Cooldown {
		return skip(domain.StageCooldown, "Cooldown active")
	}

	if balance < minBet {
		return skip(domain.StageBalance, fmt.Sprintf("Insufficient balance: %s CC < %s CC min bet", fmtAmount(balance), fmtAmount(minBet)))
	}

	stake := minBet
	if s.cfg.UseAllBalance {
		stake = balance
	}

	d := s.score(market, stats, quote, stake)
	if !d.ShouldBet {
		return d
	}

	s.lastAccepted = now
	d.Amount = stake
	return d
}

func (s *Scorer) score(market domain.Market, stats domain.MarketStats, quote *domain.PriceQuote, stake float64) domain.BetDecision {
	if len(market.Outcomes) != binaryOutcome {
		return skip(domain.StageShape, "Not a binary market")
	}

	var sig domain.Signals
	pool0, pool1 := stats.Pool(0), stats.Pool(1)
	total := pool0 + pool1
	if pool0 <= pool1 {
		sig.MajorityIndex = 1
	}
	if total > 0 {
		sig.MajorityShare = math.Max(pool0, pool1) / total
	}

	if sig.MajorityShare < s.cfg.MajorityThreshold {
		d := skip(domain.StageMajority, fmt.Sprintf("Majority too weak: %.0f%% pool / %.0f%% implied (need >=%.0f%%)",
			sig.MajorityShare*100, stats.MaxImpliedProbability()*100, s.cfg.MajorityThreshold*100))
		d.Signals = sig
		return d
	}

	if quote == nil || quote.Price <= 0 || !isPriceMarket(market.Question) {
		d := skip(domain.StagePriceData, "No price data available")
		d.Signals = sig
		return d
	}
	sig.CurrentPrice = quote.Price

	target, ok := s.extractor.Extract(market.Question)
	if !ok {
		d := skip(domain.StageTarget, "Could not parse target price")
		d.Signals = sig
		return d
	}
	sig.TargetPrice = target.Price

	delta := quote.Price - target.Price
	sig.PercentDelta = math.Abs(delta / target.Price)
	if sig.PercentDelta <= s.cfg.PriceUncertaintyThreshold {
		d := skip(domain.StageUncertainty, fmt.Sprintf("Price too tight: $%s vs $%s = %.2f%% (need >%.2f%%)",
			fmtAmount(quote.Price), fmtAmount(target.Price), sig.PercentDelta*100, s.cfg.PriceUncertaintyThreshold*100))
		d.Signals = sig
		return d
	}

	var priceSignal string
	bullish := (target.Above && delta > 0) || (!target.Above && delta < 0)
	if bullish {
		sig.PriceScore = bullishScore
		priceSignal = "Bullish"
	} else {
		sig.PriceScore = bearishScore
		priceSignal = "Bearish"
	}
	direction := "below"
	if target.Above {
		direction = "above"
	}
	priceSignal = fmt.Sprintf("%s for %s: %+.2f%% vs target", priceSignal, strings.ToUpper(direction), delta/target.Price*100)

	majorityScore := majorityNo
	if sig.MajorityIndex == 0 {
		majorityScore = majorityYes
	}
	sig.Combined = majorityScore*s.cfg.MajorityWeight + sig.PriceScore*s.cfg.PriceDeltaWeight

	finalIndex := 1
	if sig.Combined > neutralPivot {
		finalIndex = 0
	}
	confidence := math.Abs(sig.Combined-neutralPivot) * 2

	outcomePool := stats.Pool(finalIndex)
	if denom := outcomePool + stake; denom > 0 {
		sig.EstimatedPayout = (total + stake) / denom
	}
	if market.PlatformFeeRate > 0 {
		sig.EstimatedPayout *= 1 - market.PlatformFeeRate
	}
	sig.ExpectedReturn = stake * sig.EstimatedPayout

	if s.cfg.MinPayoutThreshold > 0 && sig.ExpectedReturn < s.cfg.MinPayoutThreshold {
		return domain.BetDecision{
			OutcomeIndex: finalIndex,
			Reason: fmt.Sprintf("Payout too low: %.2f CC (need >=%.2f CC)",
				sig.ExpectedReturn, s.cfg.MinPayoutThreshold),
			Stage:   domain.StagePayout,
			Signals: sig,
		}
	}

	return domain.BetDecision{
		ShouldBet:    true,
		OutcomeIndex: finalIndex,
		Confidence:   confidence,
		Stage:        domain.StageAccepted,
		Signals:      sig,
		Reason: fmt.Sprintf("Majority: %.0f%% on %s | %s | Payout: %.2f CC (%.2fx) | Combined: %.0f%%",
			sig.MajorityShare*100, market.OutcomeLabel(sig.MajorityIndex), priceSignal,
			sig.ExpectedReturn, sig.EstimatedPayout, sig.Combined*100),
	}
}

func skip(stage domain.DecisionStage, reason string) domain.BetDecision {
	return domain.BetDecision{Stage: stage, Reason: reason}
}

func isPriceMarket(question string) bool {
	lower := strings.ToLower(question)
	for _, kw := range priceKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// fmtAmount renders an amount with at most two decimals and no trailing
// zeros.
func fmtAmount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
