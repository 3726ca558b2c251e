// Package lifecycle drives the bot through one market at a time: find a
// market, wait for its pre-close window, bet inside the window, wait for the
// market to resolve, repeat.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/questbot/internal/clock"
	"github.com/alanyoungcy/questbot/internal/domain"
	"github.com/alanyoungcy/questbot/internal/platform/unhedged"
	"github.com/alanyoungcy/questbot/internal/strategy"
)

// MarketAPI is the subset of the market client the lifecycle uses.
type MarketAPI interface {
	ListMarkets(ctx context.Context, params unhedged.ListMarketsParams) ([]domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	GetMarketStats(ctx context.Context, id string) (domain.MarketStats, error)
	ListBets(ctx context.Context, filter domain.BetFilter) ([]domain.Bet, error)
	PlaceBet(ctx context.Context, req domain.BetRequest) (domain.Bet, error)
	GetBalance(ctx context.Context) (domain.Balance, error)
	GetEquity(ctx context.Context) (domain.Equity, error)
	GetAchievementProgress(ctx context.Context) ([]domain.AchievementProgress, error)
	Remaining() int
}

// PriceFeed returns the spot price of the asset a question refers to.
type PriceFeed interface {
	QuoteFor(ctx context.Context, question string) (domain.PriceQuote, error)
}

// Decider scores one market snapshot.
type Decider interface {
	Decide(market domain.Market, stats domain.MarketStats, quote *domain.PriceQuote, balance, minBet float64) domain.BetDecision
}

// Observer receives lifecycle events. OnEvent is called synchronously from
// the lifecycle goroutine and must not block for long.
type Observer interface {
	OnEvent(ctx context.Context, ev domain.Event)
}

// Config holds the lifecycle's timing and betting limits.
type Config struct {
	Window          time.Duration // betting window before close
	Horizon         time.Duration // only markets closing within this are considered
	MaxWindowSleep  time.Duration
	NoMarketWait    time.Duration
	ErrorBackoff    time.Duration
	ResolutionPoll  time.Duration
	IncompleteRetry time.Duration
	BalancePoll     time.Duration
	ThinBudgetWait  time.Duration
	StatsErrorWait  time.Duration
	Cooldown        time.Duration

	MinRemaining      int
	MarketListLimit   int
	MinPoolSize       float64
	MajorityThreshold float64
	MaxTotalBets      int // zero means unlimited
	DryRun            bool

	// Location is used when logging close times.
	Location *time.Location

	QuestBetTarget    int
	QuestVolumeTarget float64
}

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		Window:            10 * time.Minute,
		Horizon:           90 * time.Minute,
		MaxWindowSleep:    5 * time.Minute,
		NoMarketWait:      60 * time.Second,
		ErrorBackoff:      30 * time.Second,
		ResolutionPoll:    30 * time.Second,
		IncompleteRetry:   5 * time.Second,
		BalancePoll:       60 * time.Second,
		ThinBudgetWait:    2 * time.Second,
		StatsErrorWait:    time.Second,
		Cooldown:          2500 * time.Millisecond,
		MinRemaining:      2,
		MarketListLimit:   20,
		MinPoolSize:       3000,
		MajorityThreshold: 0.80,
		QuestBetTarget:    750,
		QuestVolumeTarget: 2000,
	}
}

// Bot is the market lifecycle state machine. Run owns all mutation; other
// goroutines read through Snapshot.
type Bot struct {
	cfg       Config
	api       MarketAPI
	feed      PriceFeed
	decider   Decider
	extractor strategy.TargetExtractor
	clock     clock.Clock
	logger    *slog.Logger
	observers []Observer

	mu           sync.Mutex
	state        State
	market       *domain.Market
	balance      float64
	totalBets    int
	marketBets   int // accepted bets in the tracked market, live or dry run
	liveBets     int // successfully placed live bets in the tracked market
	lastDecision *domain.BetDecision
	startedAt    time.Time
	updatedAt    time.Time
}

// New creates a Bot in the Searching state.
func New(cfg Config, api MarketAPI, feed PriceFeed, decider Decider, clk clock.Clock, logger *slog.Logger) *Bot {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	now := clk.Now()
	return &Bot{
		cfg:       cfg,
		api:       api,
		feed:      feed,
		decider:   decider,
		extractor: strategy.QuestionExtractor{},
		clock:     clk,
		logger:    logger.With(slog.String("component", "lifecycle")),
		state:     StateSearching,
		startedAt: now,
		updatedAt: now,
	}
}

// AddObserver registers o for lifecycle events.
func (b *Bot) AddObserver(o Observer) {
	b.observers = append(b.observers, o)
}

// SetTargetExtractor replaces the extractor used for the informational
// target-vs-price line.
func (b *Bot) SetTargetExtractor(e strategy.TargetExtractor) {
	b.extractor = e
}

// State returns the current state.
func (b *Bot) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns a copy of the run state.
func (b *Bot) Snapshot() RunState {
	b.mu.Lock()
	rs := RunState{
		State:        b.state,
		TotalBets:    b.totalBets,
		MaxTotalBets: b.cfg.MaxTotalBets,
		MarketBets:   b.marketBets,
		DryRun:       b.cfg.DryRun,
		Balance:      b.balance,
		StartedAt:    b.startedAt,
		UpdatedAt:    b.updatedAt,
	}
	if b.market != nil {
		m := *b.market
		rs.Market = &m
	}
	if b.lastDecision != nil {
		d := *b.lastDecision
		rs.LastDecision = &d
	}
	b.mu.Unlock()
	rs.Remaining = b.api.Remaining()
	return rs
}

// Run recovers outstanding work and then steps the state machine until ctx is
// cancelled or the bet cap stops the bot. A failed cycle is logged and backed
// off; it never ends the run. Both exits return nil.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.InfoContext(ctx, "lifecycle starting",
		slog.Bool("dry_run", b.cfg.DryRun),
		slog.Int("max_total_bets", b.cfg.MaxTotalBets),
	)
	b.Recover(ctx)
	b.ReportProgress(ctx)

	for {
		if ctx.Err() != nil {
			b.logger.InfoContext(ctx, "lifecycle stopped", slog.String("reason", "context done"))
			return nil
		}
		if b.State() == StateStopped {
			return nil
		}
		if err := b.Step(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			b.logger.ErrorContext(ctx, "cycle failed",
				slog.String("state", b.State().String()),
				slog.String("error", err.Error()),
			)
			_ = b.clock.Sleep(ctx, b.cfg.ErrorBackoff)
		}
	}
}

// Step runs a single pass of the current state's handler.
func (b *Bot) Step(ctx context.Context) error {
	switch b.State() {
	case StateSearching:
		return b.search(ctx)
	case StateAwaitingWindow:
		return b.awaitWindow(ctx)
	case StateBettingWindow:
		return b.bettingWindow(ctx)
	case StateAwaitingResolution:
		return b.awaitResolution(ctx)
	case StateAwaitingBalance:
		return b.awaitBalance(ctx)
	case StateStopped:
		return nil
	default:
		return fmt.Errorf("lifecycle: unknown state %d", b.State())
	}
}

// Recover adopts the market of an outstanding bet so a restart resumes where
// the previous process stopped instead of searching again. Failures leave the
// bot in Searching.
func (b *Bot) Recover(ctx context.Context) {
	b.logger.InfoContext(ctx, "checking for outstanding bets")

	var outstanding []domain.Bet
	for _, status := range []domain.BetStatus{domain.BetStatusPending, domain.BetStatusConfirmed} {
		bets, err := b.api.ListBets(ctx, domain.BetFilter{Status: status, Limit: 10})
		if err != nil {
			b.logger.ErrorContext(ctx, "outstanding bet check failed", slog.String("error", err.Error()))
			return
		}
		outstanding = append(outstanding, bets...)
	}
	b.logger.InfoContext(ctx, "outstanding bets found", slog.Int("count", len(outstanding)))
	if len(outstanding) == 0 {
		return
	}

	bet := outstanding[0]
	market, err := b.api.GetMarket(ctx, bet.MarketID)
	if err != nil {
		b.logger.ErrorContext(ctx, "recovery market fetch failed",
			slog.String("market_id", bet.MarketID),
			slog.String("error", err.Error()),
		)
		return
	}

	switch {
	case market.Status.Terminal():
		b.logger.InfoContext(ctx, "outstanding bet's market already settled",
			slog.String("market_id", market.ID),
			slog.String("status", string(market.Status)),
		)
	case market.TimeToClose(b.clock.Now()) <= 0:
		b.track(market)
		b.logger.InfoContext(ctx, "resuming tracking", slog.String("question", market.Question))
		b.transition(ctx, StateAwaitingResolution)
	default:
		b.track(market)
		b.logger.InfoContext(ctx, "resuming tracking", slog.String("question", market.Question))
		b.transition(ctx, StateAwaitingWindow)
	}
}

func (b *Bot) search(ctx context.Context) error {
	b.logger.InfoContext(ctx, "searching for a short-term binary market")

	market, ok := b.findBestMarket(ctx)
	if !ok {
		b.logger.InfoContext(ctx, "no market available, waiting", slog.Duration("wait", b.cfg.NoMarketWait))
		return b.clock.Sleep(ctx, b.cfg.NoMarketWait)
	}

	b.track(market)
	b.emit(ctx, domain.Event{Type: domain.EventMarketSelected, Market: &market})
	b.transition(ctx, StateAwaitingWindow)
	return nil
}

func (b *Bot) findBestMarket(ctx context.Context) (domain.Market, bool) {
	markets, err := b.api.ListMarkets(ctx, unhedged.ListMarketsParams{
		Status: domain.MarketStatusActive,
		Limit:  b.cfg.MarketListLimit,
	})
	if err != nil {
		b.logger.ErrorContext(ctx, "market listing failed", slog.String("error", err.Error()))
		return domain.Market{}, false
	}

	now := b.clock.Now()
	candidates := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		ttc := m.TimeToClose(now)
		if isBinaryQuestion(m.Question) && ttc > 0 && ttc <= b.cfg.Horizon {
			candidates = append(candidates, m)
		}
	}
	slices.SortStableFunc(candidates, func(a, c domain.Market) int {
		return a.EndTime.Compare(c.EndTime)
	})

	for _, m := range candidates {
		if m.Status != domain.MarketStatusActive {
			continue
		}
		stats, err := b.api.GetMarketStats(ctx, m.ID)
		if err != nil {
			b.logger.DebugContext(ctx, "stats fetch failed, skipping market",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		maxProb := stats.MaxImpliedProbability()
		if maxProb >= b.cfg.MajorityThreshold && stats.TotalPool >= b.cfg.MinPoolSize {
			b.logger.InfoContext(ctx, "found favorable market",
				slog.String("market_id", m.ID),
				slog.String("question", m.Question),
				slog.String("majority", fmt.Sprintf("%.0f%%", maxProb*100)),
				slog.Float64("pool", stats.TotalPool),
			)
			return m, true
		}
	}

	if len(candidates) > 0 {
		b.logger.InfoContext(ctx, "no favorable market, waiting for better conditions",
			slog.Int("candidates", len(candidates)))
	}
	return domain.Market{}, false
}

func (b *Bot) awaitWindow(ctx context.Context) error {
	market, ok := b.trackedMarket()
	if !ok {
		b.transition(ctx, StateSearching)
		return nil
	}

	ttc := market.TimeToClose(b.clock.Now())
	if ttc <= 0 {
		if b.hasOutstandingBets(ctx, market.ID) {
			b.logger.InfoContext(ctx, "market closed, waiting for resolution", slog.String("market_id", market.ID))
			b.transition(ctx, StateAwaitingResolution)
			return nil
		}
		b.logger.InfoContext(ctx, "market closed without bets, abandoning", slog.String("market_id", market.ID))
		b.untrack()
		b.transition(ctx, StateSearching)
		return nil
	}

	b.logger.InfoContext(ctx, "tracking market",
		slog.String("market_id", market.ID),
		slog.String("question", market.Question),
		slog.String("closes_at", market.EndTime.In(b.cfg.Location).Format("Jan 2, 2006 15:04 MST")),
		slog.Int("minutes_left", int(ttc/time.Minute)),
		slog.Float64("min_bet", minBet(market)),
	)
	b.logTargetPrice(ctx, market)

	bal, err := b.api.GetBalance(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle: balance: %w", err)
	}
	b.setBalance(bal.Available)
	b.logger.InfoContext(ctx, "balance", slog.Float64("available", bal.Available))

	if bal.Available < minBet(market) {
		b.logger.WarnContext(ctx, "low balance, waiting for bets to resolve",
			slog.Float64("available", bal.Available),
			slog.Float64("min_bet", minBet(market)),
		)
		b.transition(ctx, StateAwaitingBalance)
		return nil
	}

	if ttc > b.cfg.Window {
		wait := min(ttc-b.cfg.Window, b.cfg.MaxWindowSleep)
		b.logger.InfoContext(ctx, "sleeping until betting window",
			slog.Duration("until_window", ttc-b.cfg.Window),
			slog.Duration("wait", wait),
		)
		return b.clock.Sleep(ctx, wait)
	}

	b.transition(ctx, StateBettingWindow)
	return nil
}

func (b *Bot) bettingWindow(ctx context.Context) error {
	market, ok := b.trackedMarket()
	if !ok {
		b.transition(ctx, StateSearching)
		return nil
	}
	mb := minBet(market)

	b.logger.InfoContext(ctx, "entering betting window", slog.String("market_id", market.ID))
	b.logFavorability(ctx, market)

	if b.capReached() {
		b.stop(ctx)
		return nil
	}

	for {
		if !b.clock.Now().Before(market.EndTime) {
			b.logger.InfoContext(ctx, "market closed", slog.String("market_id", market.ID))
			break
		}
		if b.capReached() {
			b.stop(ctx)
			return nil
		}
		balance := b.currentBalance()
		if balance < mb {
			b.logger.WarnContext(ctx, "out of balance during betting window", slog.Float64("available", balance))
			break
		}

		if b.api.Remaining() < b.cfg.MinRemaining {
			b.logger.InfoContext(ctx, "request budget thin, waiting", slog.Duration("wait", b.cfg.ThinBudgetWait))
			if err := b.clock.Sleep(ctx, b.cfg.ThinBudgetWait); err != nil {
				return err
			}
			continue
		}

		stats, err := b.api.GetMarketStats(ctx, market.ID)
		if err != nil {
			b.logger.ErrorContext(ctx, "market data fetch failed", slog.String("error", err.Error()))
			if err := b.clock.Sleep(ctx, b.cfg.StatsErrorWait); err != nil {
				return err
			}
			continue
		}
		quote := b.quote(ctx, market)

		decision := b.decider.Decide(market, stats, quote, balance, mb)
		b.setDecision(decision)

		if decision.ShouldBet {
			if !b.clock.Now().Before(market.EndTime) {
				b.logger.InfoContext(ctx, "market closed while deciding, skipping bet")
				break
			}
			b.placeBet(ctx, market, decision)
		} else {
			b.logger.InfoContext(ctx, "skipped",
				slog.String("stage", string(decision.Stage)),
				slog.String("reason", decision.Reason),
			)
			b.emit(ctx, domain.Event{Type: domain.EventDecisionSkipped, Market: &market, Decision: &decision})
		}

		if err := b.clock.Sleep(ctx, b.cfg.Cooldown); err != nil {
			return err
		}
	}

	b.transition(ctx, StateAwaitingResolution)
	return nil
}

// quote returns nil when no price is available; the strategy treats that as
// a missing signal.
func (b *Bot) quote(ctx context.Context, market domain.Market) *domain.PriceQuote {
	if b.feed == nil {
		return nil
	}
	q, err := b.feed.QuoteFor(ctx, market.Question)
	if err != nil {
		if errors.Is(err, domain.ErrPriceUnavailable) {
			b.logger.InfoContext(ctx, "no price for this asset, using majority only", slog.String("error", err.Error()))
		} else {
			b.logger.ErrorContext(ctx, "price fetch failed", slog.String("error", err.Error()))
		}
		return nil
	}
	return &q
}

func (b *Bot) placeBet(ctx context.Context, market domain.Market, decision domain.BetDecision) {
	now := b.clock.Now()
	rec := domain.BetRecord{
		MarketID:       market.ID,
		Question:       market.Question,
		OutcomeIndex:   decision.OutcomeIndex,
		OutcomeLabel:   market.OutcomeLabel(decision.OutcomeIndex),
		Amount:         decision.Amount,
		Confidence:     decision.Confidence,
		Reason:         decision.Reason,
		IdempotencyKey: NewIdempotencyKey(now),
		DryRun:         b.cfg.DryRun,
		CreatedAt:      now,
	}

	if b.cfg.DryRun {
		b.logger.InfoContext(ctx, "[DRY RUN] would bet",
			slog.Float64("amount", rec.Amount),
			slog.String("outcome", rec.OutcomeLabel),
			slog.String("reason", decision.Reason),
		)
		b.recordBet(false, rec.Amount)
		b.logBetProgress(ctx)
		b.emit(ctx, domain.Event{Type: domain.EventBetPlaced, Market: &market, Decision: &decision, Bet: &rec})
		return
	}

	bet, err := b.api.PlaceBet(ctx, domain.BetRequest{
		MarketID:       market.ID,
		OutcomeIndex:   decision.OutcomeIndex,
		Amount:         decision.Amount,
		IdempotencyKey: rec.IdempotencyKey,
	})
	if err != nil {
		rec.Error = err.Error()
		b.logger.ErrorContext(ctx, "bet failed",
			slog.String("market_id", market.ID),
			slog.String("outcome", rec.OutcomeLabel),
			slog.String("error", err.Error()),
		)
		b.emit(ctx, domain.Event{Type: domain.EventBetFailed, Market: &market, Decision: &decision, Bet: &rec, Error: rec.Error})
		return
	}

	rec.BetID = bet.ID
	b.logger.InfoContext(ctx, "bet placed",
		slog.String("bet_id", bet.ID),
		slog.Float64("amount", rec.Amount),
		slog.String("outcome", rec.OutcomeLabel),
		slog.Float64("confidence", decision.Confidence),
	)
	b.recordBet(true, rec.Amount)
	b.logBetProgress(ctx)
	b.emit(ctx, domain.Event{Type: domain.EventBetPlaced, Market: &market, Decision: &decision, Bet: &rec})
}

func (b *Bot) awaitResolution(ctx context.Context) error {
	tracked, ok := b.trackedMarket()
	if !ok {
		b.transition(ctx, StateSearching)
		return nil
	}

	market, err := b.api.GetMarket(ctx, tracked.ID)
	switch {
	case errors.Is(err, domain.ErrDataIncomplete):
		b.logger.InfoContext(ctx, "market data incomplete, retrying", slog.String("market_id", tracked.ID))
		return b.clock.Sleep(ctx, b.cfg.IncompleteRetry)
	case err != nil:
		b.logger.ErrorContext(ctx, "market status check failed",
			slog.String("market_id", tracked.ID),
			slog.String("error", err.Error()),
		)
		return b.clock.Sleep(ctx, b.cfg.ResolutionPoll)
	}

	if market.Status.Terminal() {
		b.logger.InfoContext(ctx, "market settled",
			slog.String("market_id", market.ID),
			slog.String("status", strings.ToLower(string(market.Status))),
		)
		b.emit(ctx, domain.Event{Type: domain.EventMarketResolved, Market: &market})
		b.untrack()
		b.transition(ctx, StateSearching)
		return nil
	}

	b.logger.InfoContext(ctx, "waiting for resolution",
		slog.String("market_id", market.ID),
		slog.String("status", string(market.Status)),
		slog.Duration("next_check", b.cfg.ResolutionPoll),
	)
	return b.clock.Sleep(ctx, b.cfg.ResolutionPoll)
}

func (b *Bot) awaitBalance(ctx context.Context) error {
	bets, err := b.api.ListBets(ctx, domain.BetFilter{Status: domain.BetStatusPending, Limit: 1})
	if err != nil {
		b.logger.ErrorContext(ctx, "pending bet check failed", slog.String("error", err.Error()))
		return b.clock.Sleep(ctx, b.cfg.BalancePoll)
	}
	if len(bets) > 0 {
		b.logger.InfoContext(ctx, "bets still pending", slog.Duration("next_check", b.cfg.BalancePoll))
		return b.clock.Sleep(ctx, b.cfg.BalancePoll)
	}

	b.logger.InfoContext(ctx, "all bets resolved")
	if bal, err := b.api.GetBalance(ctx); err == nil {
		b.setBalance(bal.Available)
		b.logger.InfoContext(ctx, "new balance", slog.Float64("available", bal.Available))
	}
	b.untrack()
	b.transition(ctx, StateSearching)
	return nil
}

// hasOutstandingBets reports whether this process or the API knows of a bet
// in marketID that is still waiting on the market.
func (b *Bot) hasOutstandingBets(ctx context.Context, marketID string) bool {
	b.mu.Lock()
	live := b.liveBets
	b.mu.Unlock()
	if live > 0 {
		return true
	}
	for _, status := range []domain.BetStatus{domain.BetStatusPending, domain.BetStatusConfirmed} {
		bets, err := b.api.ListBets(ctx, domain.BetFilter{Status: status, MarketID: marketID, Limit: 1})
		if err != nil {
			b.logger.DebugContext(ctx, "bet listing failed", slog.String("error", err.Error()))
			continue
		}
		if len(bets) > 0 {
			return true
		}
	}
	return false
}

func (b *Bot) capReached() bool {
	if b.cfg.MaxTotalBets <= 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalBets >= b.cfg.MaxTotalBets
}

func (b *Bot) stop(ctx context.Context) {
	b.logger.InfoContext(ctx, "reached max bets limit, stopping", slog.Int("max_total_bets", b.cfg.MaxTotalBets))
	b.transition(ctx, StateStopped)
	b.emit(ctx, domain.Event{Type: domain.EventStopped, Error: domain.ErrBetCapReached.Error()})
}

func (b *Bot) transition(ctx context.Context, to State) {
	b.mu.Lock()
	from := b.state
	b.state = to
	b.updatedAt = b.clock.Now()
	b.mu.Unlock()
	if from == to {
		return
	}
	b.logger.DebugContext(ctx, "state changed", slog.String("from", from.String()), slog.String("to", to.String()))
	b.emit(ctx, domain.Event{Type: domain.EventStateChanged, From: from.String(), To: to.String()})
}

func (b *Bot) emit(ctx context.Context, ev domain.Event) {
	if ev.At.IsZero() {
		ev.At = b.clock.Now()
	}
	for _, o := range b.observers {
		o.OnEvent(ctx, ev)
	}
}

func (b *Bot) track(m domain.Market) {
	b.mu.Lock()
	b.market = &m
	b.marketBets = 0
	b.liveBets = 0
	b.mu.Unlock()
}

func (b *Bot) untrack() {
	b.mu.Lock()
	b.market = nil
	b.marketBets = 0
	b.liveBets = 0
	b.mu.Unlock()
}

func (b *Bot) trackedMarket() (domain.Market, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.market == nil {
		return domain.Market{}, false
	}
	return *b.market, true
}

func (b *Bot) setBalance(v float64) {
	b.mu.Lock()
	b.balance = v
	b.mu.Unlock()
}

func (b *Bot) currentBalance() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance
}

func (b *Bot) setDecision(d domain.BetDecision) {
	b.mu.Lock()
	b.lastDecision = &d
	b.mu.Unlock()
}

// recordBet updates the counters after an accepted bet. Dry runs count toward
// the cap and deduct the stake locally so the loop behaves as in live mode.
func (b *Bot) recordBet(live bool, amount float64) {
	b.mu.Lock()
	b.totalBets++
	b.marketBets++
	if live {
		b.liveBets++
	}
	b.balance -= amount
	b.updatedAt = b.clock.Now()
	b.mu.Unlock()
}

func minBet(m domain.Market) float64 {
	if m.MinimumBet > 0 {
		return m.MinimumBet
	}
	return domain.DefaultMinimumBet
}

func isBinaryQuestion(q string) bool {
	lower := strings.ToLower(q)
	return strings.Contains(lower, "above") || strings.Contains(lower, "below")
}
