package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/questbot/internal/clock"
	"github.com/alanyoungcy/questbot/internal/domain"
	"github.com/alanyoungcy/questbot/internal/platform/unhedged"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu sync.Mutex

	markets   []domain.Market
	listErr   error
	byID      map[string]domain.Market
	getQueue  []func() (domain.Market, error)
	stats     map[string]domain.MarketStats
	statsErr  error
	bets      map[domain.BetStatus][]domain.Bet
	betsErr   error
	placeErr  error
	balance   float64
	balErr    error
	remaining int

	placed     []domain.BetRequest
	statsCalls int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		byID:      map[string]domain.Market{},
		stats:     map[string]domain.MarketStats{},
		bets:      map[domain.BetStatus][]domain.Bet{},
		balance:   10,
		remaining: 30,
	}
}

func (f *fakeAPI) ListMarkets(_ context.Context, params unhedged.ListMarketsParams) ([]domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Market(nil), f.markets...), nil
}

func (f *fakeAPI) GetMarket(_ context.Context, id string) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.getQueue) > 0 {
		next := f.getQueue[0]
		f.getQueue = f.getQueue[1:]
		return next()
	}
	m, ok := f.byID[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeAPI) GetMarketStats(_ context.Context, id string) (domain.MarketStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	if f.statsErr != nil {
		return domain.MarketStats{}, f.statsErr
	}
	s, ok := f.stats[id]
	if !ok {
		return domain.MarketStats{}, domain.ErrDataIncomplete
	}
	return s, nil
}

func (f *fakeAPI) ListBets(_ context.Context, filter domain.BetFilter) ([]domain.Bet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.betsErr != nil {
		return nil, f.betsErr
	}
	var out []domain.Bet
	for _, b := range f.bets[filter.Status] {
		if filter.MarketID != "" && b.MarketID != filter.MarketID {
			continue
		}
		out = append(out, b)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeAPI) PlaceBet(_ context.Context, req domain.BetRequest) (domain.Bet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return domain.Bet{}, f.placeErr
	}
	f.placed = append(f.placed, req)
	return domain.Bet{ID: "bet-" + strconv.Itoa(len(f.placed)), MarketID: req.MarketID, Status: domain.BetStatusPending}, nil
}

func (f *fakeAPI) GetBalance(context.Context) (domain.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.Balance{Available: f.balance}, f.balErr
}

func (f *fakeAPI) GetEquity(context.Context) (domain.Equity, error) {
	return domain.Equity{"equity": "1"}, nil
}

func (f *fakeAPI) GetAchievementProgress(context.Context) ([]domain.AchievementProgress, error) {
	return nil, errors.New("not available")
}

func (f *fakeAPI) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remaining
}

type deciderFunc func(domain.Market, domain.MarketStats, *domain.PriceQuote, float64, float64) domain.BetDecision

func (f deciderFunc) Decide(m domain.Market, s domain.MarketStats, q *domain.PriceQuote, bal, minBet float64) domain.BetDecision {
	return f(m, s, q, bal, minBet)
}

func alwaysBet(_ domain.Market, _ domain.MarketStats, _ *domain.PriceQuote, _, minBet float64) domain.BetDecision {
	return domain.BetDecision{ShouldBet: true, OutcomeIndex: 0, Amount: minBet, Confidence: 0.72, Stage: domain.StageAccepted, Reason: "ok"}
}

func neverBet(domain.Market, domain.MarketStats, *domain.PriceQuote, float64, float64) domain.BetDecision {
	return domain.BetDecision{Stage: domain.StageMajority, Reason: "Majority too weak"}
}

type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) OnEvent(_ context.Context, ev domain.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) ofType(t domain.EventType) []domain.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type stubFeed struct {
	price float64
	err   error
}

func (s stubFeed) QuoteFor(context.Context, string) (domain.PriceQuote, error) {
	if s.err != nil {
		return domain.PriceQuote{}, s.err
	}
	return domain.PriceQuote{Symbol: "BTC", Price: s.price, At: start}, nil
}

func testMarket(id string, closesIn time.Duration) domain.Market {
	return domain.Market{
		ID:         id,
		Question:   "Will BTC be above $100,000?",
		Outcomes:   []string{"YES", "NO"},
		EndTime:    start.Add(closesIn),
		Status:     domain.MarketStatusActive,
		MinimumBet: 0.1,
	}
}

func favorable(pool float64) domain.MarketStats {
	return domain.MarketStats{
		Outcomes: []domain.OutcomeStat{
			{TotalAmount: pool * 0.85, ImpliedProbability: 0.85},
			{TotalAmount: pool * 0.15, ImpliedProbability: 0.15},
		},
		TotalPool: pool,
	}
}

type fixture struct {
	api    *fakeAPI
	clk    *clock.Fake
	events *eventLog
	bot    *Bot
}

func newFixture(t *testing.T, cfg Config, decide deciderFunc) *fixture {
	t.Helper()
	f := &fixture{
		api:    newFakeAPI(),
		clk:    clock.NewFake(start),
		events: &eventLog{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.bot = New(cfg, f.api, stubFeed{price: 105000}, decide, f.clk, logger)
	f.bot.AddObserver(f.events)
	return f
}

func TestRecoverResumesIntoAwaitingWindow(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	m := testMarket("M", 45*time.Minute)
	f.api.byID["M"] = m
	f.api.bets[domain.BetStatusPending] = []domain.Bet{{ID: "b1", MarketID: "M", Status: domain.BetStatusPending}}

	f.bot.Recover(context.Background())

	snap := f.bot.Snapshot()
	assert.Equal(t, StateAwaitingWindow, snap.State)
	require.NotNil(t, snap.Market)
	assert.Equal(t, "M", snap.Market.ID)

	changes := f.events.ofType(domain.EventStateChanged)
	require.Len(t, changes, 1)
	assert.Equal(t, "searching", changes[0].From)
	assert.Equal(t, "awaiting_window", changes[0].To)
}

func TestRecoverUsesConfirmedBets(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	f.api.byID["M"] = testMarket("M", -time.Minute)
	f.api.bets[domain.BetStatusConfirmed] = []domain.Bet{{ID: "b1", MarketID: "M", Status: domain.BetStatusConfirmed}}

	f.bot.Recover(context.Background())

	assert.Equal(t, StateAwaitingResolution, f.bot.State())
}

func TestRecoverIgnoresSettledMarket(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	m := testMarket("M", -time.Hour)
	m.Status = domain.MarketStatusResolved
	f.api.byID["M"] = m
	f.api.bets[domain.BetStatusPending] = []domain.Bet{{ID: "b1", MarketID: "M"}}

	f.bot.Recover(context.Background())

	assert.Equal(t, StateSearching, f.bot.State())
	assert.Nil(t, f.bot.Snapshot().Market)
}

func TestRecoverWithoutBetsOrOnErrorStaysSearching(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	f.bot.Recover(context.Background())
	assert.Equal(t, StateSearching, f.bot.State())

	f.api.betsErr = errors.New("boom")
	f.bot.Recover(context.Background())
	assert.Equal(t, StateSearching, f.bot.State())
}

func TestSearchSelectsSoonestFavorableMarket(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)

	inactive := testMarket("inactive", 10*time.Minute)
	inactive.Status = "CLOSED"
	notBinary := testMarket("rain", 12*time.Minute)
	notBinary.Question = "Will it rain?"

	f.api.markets = []domain.Market{
		testMarket("late", 60*time.Minute),
		testMarket("far", 120*time.Minute),
		testMarket("thin", 15*time.Minute),
		inactive,
		notBinary,
		testMarket("soon", 30*time.Minute),
		testMarket("closed", -time.Minute),
	}
	for _, id := range []string{"late", "far", "inactive", "rain", "soon", "closed"} {
		f.api.stats[id] = favorable(5000)
	}
	f.api.stats["thin"] = favorable(1000)

	require.NoError(t, f.bot.Step(context.Background()))

	snap := f.bot.Snapshot()
	assert.Equal(t, StateAwaitingWindow, snap.State)
	require.NotNil(t, snap.Market)
	assert.Equal(t, "soon", snap.Market.ID)

	selected := f.events.ofType(domain.EventMarketSelected)
	require.Len(t, selected, 1)
	assert.Equal(t, "soon", selected[0].Market.ID)
	assert.Empty(t, f.clk.Sleeps())
}

func TestSearchWithoutCandidateWaits(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	f.api.markets = []domain.Market{testMarket("weak", 30*time.Minute)}
	f.api.stats["weak"] = domain.MarketStats{
		Outcomes:  []domain.OutcomeStat{{ImpliedProbability: 0.6}, {ImpliedProbability: 0.4}},
		TotalPool: 9000,
	}

	require.NoError(t, f.bot.Step(context.Background()))

	assert.Equal(t, StateSearching, f.bot.State())
	assert.Equal(t, []time.Duration{60 * time.Second}, f.clk.Sleeps())

	f.api.listErr = errors.New("down")
	require.NoError(t, f.bot.Step(context.Background()))
	assert.Equal(t, StateSearching, f.bot.State())
}

func TestAwaitWindowSleepsInBoundedSteps(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	f.bot.track(testMarket("M", 17*time.Minute))
	f.bot.transition(context.Background(), StateAwaitingWindow)

	// 7m until the window: 5m cap, then the 2m remainder, then enter.
	require.NoError(t, f.bot.Step(context.Background()))
	require.NoError(t, f.bot.Step(context.Background()))
	assert.Equal(t, StateAwaitingWindow, f.bot.State())
	require.NoError(t, f.bot.Step(context.Background()))

	assert.Equal(t, []time.Duration{5 * time.Minute, 2 * time.Minute}, f.clk.Sleeps())
	assert.Equal(t, StateBettingWindow, f.bot.State())
	assert.InDelta(t, 10, f.bot.Snapshot().Balance, 1e-9)
}

func TestAwaitWindowLowBalance(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	f.api.balance = 0.05
	f.bot.track(testMarket("M", 30*time.Minute))
	f.bot.transition(context.Background(), StateAwaitingWindow)

	require.NoError(t, f.bot.Step(context.Background()))

	assert.Equal(t, StateAwaitingBalance, f.bot.State())
}

func TestAwaitWindowBalanceErrorIsCycleError(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	f.api.balErr = domain.ErrServerUnavailable
	f.bot.track(testMarket("M", 30*time.Minute))
	f.bot.transition(context.Background(), StateAwaitingWindow)

	err := f.bot.Step(context.Background())
	assert.ErrorIs(t, err, domain.ErrServerUnavailable)
	assert.Equal(t, StateAwaitingWindow, f.bot.State())
}

func TestAwaitWindowClosedMarket(t *testing.T) {
	t.Run("no bets abandons", func(t *testing.T) {
		f := newFixture(t, DefaultConfig(), alwaysBet)
		f.bot.track(testMarket("M", -time.Second))
		f.bot.transition(context.Background(), StateAwaitingWindow)

		require.NoError(t, f.bot.Step(context.Background()))

		assert.Equal(t, StateSearching, f.bot.State())
		assert.Nil(t, f.bot.Snapshot().Market)
	})

	t.Run("outstanding bet waits for resolution", func(t *testing.T) {
		f := newFixture(t, DefaultConfig(), alwaysBet)
		f.api.bets[domain.BetStatusConfirmed] = []domain.Bet{{ID: "b", MarketID: "M"}}
		f.bot.track(testMarket("M", -time.Second))
		f.bot.transition(context.Background(), StateAwaitingWindow)

		require.NoError(t, f.bot.Step(context.Background()))

		assert.Equal(t, StateAwaitingResolution, f.bot.State())
	})
}

func enterWindow(t *testing.T, f *fixture, closesIn time.Duration) {
	t.Helper()
	m := testMarket("M", 0)
	m.EndTime = f.clk.Now().Add(closesIn)
	if _, ok := f.api.stats["M"]; !ok {
		f.api.stats["M"] = favorable(5000)
	}
	f.bot.track(m)
	f.bot.setBalance(f.api.balance)
	f.bot.transition(context.Background(), StateBettingWindow)
}

func TestBettingWindowBetsUntilClose(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	enterWindow(t, f, 10*time.Second)

	require.NoError(t, f.bot.Step(context.Background()))

	// Bets at t=0, 2.5s, 5s, 7.5s; the loop exits at t=10s.
	require.Len(t, f.api.placed, 4)
	keys := map[string]bool{}
	for _, p := range f.api.placed {
		assert.Equal(t, "M", p.MarketID)
		assert.InDelta(t, 0.1, p.Amount, 1e-9)
		assert.False(t, keys[p.IdempotencyKey], "duplicate idempotency key")
		keys[p.IdempotencyKey] = true
	}

	snap := f.bot.Snapshot()
	assert.Equal(t, StateAwaitingResolution, snap.State)
	assert.Equal(t, 4, snap.TotalBets)
	assert.InDelta(t, 9.6, snap.Balance, 1e-9)
	assert.Len(t, f.events.ofType(domain.EventBetPlaced), 4)
	for _, d := range f.clk.Sleeps() {
		assert.Equal(t, 2500*time.Millisecond, d)
	}
}

func TestBettingWindowStopsWhenBalanceRunsOut(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	f.api.balance = 0.25
	enterWindow(t, f, 5*time.Minute)

	require.NoError(t, f.bot.Step(context.Background()))

	assert.Len(t, f.api.placed, 2)
	assert.Equal(t, StateAwaitingResolution, f.bot.State())
}

func TestBettingWindowDryRunCountsTowardCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DryRun = true
	cfg.MaxTotalBets = 3
	f := newFixture(t, cfg, alwaysBet)
	enterWindow(t, f, 5*time.Minute)

	require.NoError(t, f.bot.Step(context.Background()))

	assert.Empty(t, f.api.placed)
	snap := f.bot.Snapshot()
	assert.Equal(t, StateStopped, snap.State)
	assert.Equal(t, 3, snap.TotalBets)

	placed := f.events.ofType(domain.EventBetPlaced)
	require.Len(t, placed, 3)
	assert.True(t, placed[0].Bet.DryRun)
	assert.Empty(t, placed[0].Bet.BetID)
	assert.Len(t, f.events.ofType(domain.EventStopped), 1)
}

func TestBettingWindowRechecksCloseAfterDecision(t *testing.T) {
	var f *fixture
	slowDecider := func(m domain.Market, s domain.MarketStats, q *domain.PriceQuote, bal, minBet float64) domain.BetDecision {
		// Scoring outlives the market.
		f.clk.Advance(20 * time.Second)
		return alwaysBet(m, s, q, bal, minBet)
	}
	f = newFixture(t, DefaultConfig(), slowDecider)
	enterWindow(t, f, 10*time.Second)

	require.NoError(t, f.bot.Step(context.Background()))

	assert.Empty(t, f.api.placed)
	assert.Empty(t, f.events.ofType(domain.EventBetPlaced))
	assert.Equal(t, StateAwaitingResolution, f.bot.State())
	assert.Zero(t, f.bot.Snapshot().TotalBets)
}

func TestBettingWindowCapCheckedOnEntry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTotalBets = 1
	f := newFixture(t, cfg, alwaysBet)
	f.bot.totalBets = 1
	enterWindow(t, f, 5*time.Minute)

	require.NoError(t, f.bot.Step(context.Background()))

	assert.Equal(t, StateStopped, f.bot.State())
	assert.Empty(t, f.api.placed)
}

func TestBettingWindowThinBudgetIdles(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	f.api.remaining = 1
	enterWindow(t, f, 5*time.Second)
	statsBefore := f.api.statsCalls

	require.NoError(t, f.bot.Step(context.Background()))

	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, f.clk.Sleeps())
	// Only the one-time favorability check touched stats.
	assert.Equal(t, statsBefore+1, f.api.statsCalls)
	assert.Empty(t, f.api.placed)
}

func TestBettingWindowStatsErrorRetriesQuickly(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	f.api.statsErr = domain.ErrServerUnavailable
	enterWindow(t, f, 3*time.Second)

	require.NoError(t, f.bot.Step(context.Background()))

	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, f.clk.Sleeps())
	assert.Equal(t, StateAwaitingResolution, f.bot.State())
}

func TestBettingWindowSkipsAreReported(t *testing.T) {
	f := newFixture(t, DefaultConfig(), neverBet)
	enterWindow(t, f, 5*time.Second)
	f.api.stats["M"] = favorable(5000)

	require.NoError(t, f.bot.Step(context.Background()))

	assert.Empty(t, f.api.placed)
	skipped := f.events.ofType(domain.EventDecisionSkipped)
	require.Len(t, skipped, 2)
	assert.Equal(t, "Majority too weak", skipped[0].Decision.Reason)
	assert.Equal(t, []time.Duration{2500 * time.Millisecond, 2500 * time.Millisecond}, f.clk.Sleeps())
	require.NotNil(t, f.bot.Snapshot().LastDecision)
}

func TestBettingWindowBetFailureDoesNotCount(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	f.api.placeErr = fmt.Errorf("unhedged: place bet: %w", domain.ErrClientOrAuth)
	enterWindow(t, f, 2*time.Second)

	require.NoError(t, f.bot.Step(context.Background()))

	failed := f.events.ofType(domain.EventBetFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].Error, "client or auth error")
	assert.Equal(t, 0, f.bot.Snapshot().TotalBets)
}

func TestBettingWindowPassesQuoteToDecider(t *testing.T) {
	var got []*domain.PriceQuote
	decide := func(m domain.Market, s domain.MarketStats, q *domain.PriceQuote, bal, minBet float64) domain.BetDecision {
		got = append(got, q)
		return neverBet(m, s, q, bal, minBet)
	}
	f := newFixture(t, DefaultConfig(), decide)
	enterWindow(t, f, time.Second)

	require.NoError(t, f.bot.Step(context.Background()))
	require.Len(t, got, 1)
	require.NotNil(t, got[0])
	assert.InDelta(t, 105000, got[0].Price, 1e-9)

	got = nil
	f.bot.feed = stubFeed{err: domain.ErrPriceUnavailable}
	enterWindow(t, f, time.Second)
	require.NoError(t, f.bot.Step(context.Background()))
	require.Len(t, got, 1)
	assert.Nil(t, got[0])
}

func TestAwaitResolutionToleratesIncompletePayloads(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	m := testMarket("M", -time.Minute)
	f.bot.track(m)
	f.bot.transition(context.Background(), StateAwaitingResolution)

	active := m
	resolved := m
	resolved.Status = domain.MarketStatusResolved
	f.api.getQueue = []func() (domain.Market, error){
		func() (domain.Market, error) { return domain.Market{}, fmt.Errorf("x: %w", domain.ErrDataIncomplete) },
		func() (domain.Market, error) { return active, nil },
		func() (domain.Market, error) { return domain.Market{}, domain.ErrServerUnavailable },
		func() (domain.Market, error) { return resolved, nil },
	}

	for range 4 {
		require.NoError(t, f.bot.Step(context.Background()))
	}

	assert.Equal(t, []time.Duration{5 * time.Second, 30 * time.Second, 30 * time.Second}, f.clk.Sleeps())
	assert.Equal(t, StateSearching, f.bot.State())
	assert.Nil(t, f.bot.Snapshot().Market)
	assert.Len(t, f.events.ofType(domain.EventMarketResolved), 1)
}

func TestAwaitBalancePollsUntilPendingClears(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	f.api.bets[domain.BetStatusPending] = []domain.Bet{{ID: "b", MarketID: "X"}}
	f.bot.track(testMarket("M", time.Hour))
	f.bot.transition(context.Background(), StateAwaitingBalance)

	require.NoError(t, f.bot.Step(context.Background()))
	assert.Equal(t, StateAwaitingBalance, f.bot.State())
	assert.Equal(t, []time.Duration{60 * time.Second}, f.clk.Sleeps())

	f.api.bets[domain.BetStatusPending] = nil
	f.api.balance = 3
	require.NoError(t, f.bot.Step(context.Background()))

	snap := f.bot.Snapshot()
	assert.Equal(t, StateSearching, snap.State)
	assert.Nil(t, snap.Market)
	assert.InDelta(t, 3, snap.Balance, 1e-9)
}

func TestRunStopsCleanlyAtBetCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DryRun = true
	cfg.MaxTotalBets = 1
	f := newFixture(t, cfg, alwaysBet)
	f.api.markets = []domain.Market{testMarket("M", 5*time.Minute)}
	f.api.stats["M"] = favorable(5000)

	err := f.bot.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StateStopped, f.bot.State())
	assert.Equal(t, 1, f.bot.Snapshot().TotalBets)
}

func TestRunBacksOffWithoutLeavingState(t *testing.T) {
	f := newFixture(t, DefaultConfig(), alwaysBet)
	f.api.byID["M"] = testMarket("M", 45*time.Minute)
	f.api.bets[domain.BetStatusPending] = []domain.Bet{{ID: "b1", MarketID: "M"}}
	f.api.balErr = domain.ErrServerUnavailable

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.clk.OnSleep(func(time.Duration) { cancel() })

	require.NoError(t, f.bot.Run(ctx))

	assert.Equal(t, []time.Duration{30 * time.Second}, f.clk.Sleeps())
	assert.Equal(t, StateAwaitingWindow, f.bot.State())
}

func TestIdempotencyKeysUniqueWithinMillisecond(t *testing.T) {
	now := time.UnixMilli(1767225600123)
	seen := make(map[string]struct{}, 1000)
	for range 1000 {
		k := NewIdempotencyKey(now)
		require.True(t, strings.HasPrefix(k, "1767225600123-"), k)
		_, dup := seen[k]
		require.False(t, dup)
		seen[k] = struct{}{}
	}
}

func TestIdempotencySuffixSkipsFixedUUIDBits(t *testing.T) {
	u := uuid.MustParse("00112233-4455-4677-8899-aabbccddeeff")
	assert.Equal(t, "0011223344557799", randomSuffix(u))

	k := NewIdempotencyKey(time.UnixMilli(1))
	_, suffix, ok := strings.Cut(k, "-")
	require.True(t, ok)
	assert.Len(t, suffix, 16)
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "betting_window", StateBettingWindow.String())
	b, err := StateStopped.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "stopped", string(b))
}
