// Package unhedged is the REST client for the Unhedged prediction-market API.
// Every call goes through a transport.Client so the request budget is shared
// by all endpoints.
package unhedged

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/questbot/internal/domain"
	"github.com/alanyoungcy/questbot/internal/transport"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.unhedged.gg"

const (
	pathMarkets             = "/api/v1/markets/"
	pathBets                = "/api/v1/bets/"
	pathBalance             = "/api/v1/balance/"
	pathPortfolio           = "/api/v1/portfolio/me"
	pathEquity              = "/api/v1/portfolio/me/equity"
	pathAchievements        = "/api/v1/achievements"
	pathAchievementProgress = "/api/v1/achievements/progress"
)

// Requester is the subset of transport.Client used here.
type Requester interface {
	Do(ctx context.Context, req transport.Request) ([]byte, error)
	Remaining() int
}

// Client wraps the market API endpoints.
type Client struct {
	rq Requester
}

// New creates a Client on top of rq.
func New(rq Requester) *Client {
	return &Client{rq: rq}
}

// AuthHeaders returns the headers the transport must send on every request.
func AuthHeaders(apiKey string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + apiKey}
}

// ListMarketsParams filters a market listing. Zero values are omitted.
type ListMarketsParams struct {
	Status domain.MarketStatus
	Limit  int
	Page   int
}

// ListMarkets returns markets matching params.
func (c *Client) ListMarkets(ctx context.Context, params ListMarketsParams) ([]domain.Market, error) {
	q := url.Values{}
	if params.Status != "" {
		q.Set("status", string(params.Status))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}

	body, err := c.rq.Do(ctx, transport.Request{Path: pathMarkets, Query: q})
	if err != nil {
		return nil, fmt.Errorf("unhedged: list markets: %w", err)
	}

	var resp marketListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unhedged: decode markets: %w: %v", domain.ErrDataIncomplete, err)
	}

	markets := make([]domain.Market, 0, len(resp.Markets))
	for i := range resp.Markets {
		markets = append(markets, resp.Markets[i].ToDomainMarket())
	}
	return markets, nil
}

// GetMarket returns one market. The API may wrap the payload in a "market"
// object or return it bare; both are accepted. A payload without a status is
// reported as domain.ErrDataIncomplete.
func (c *Client) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	body, err := c.rq.Do(ctx, transport.Request{Path: pathMarkets + url.PathEscape(id)})
	if err != nil {
		return domain.Market{}, fmt.Errorf("unhedged: get market %s: %w", id, err)
	}

	raw := body
	var wrapped struct {
		Market json.RawMessage `json:"market"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Market) > 0 && !bytes.Equal(wrapped.Market, []byte("null")) {
		raw = wrapped.Market
	}

	var m APIMarket
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.Market{}, fmt.Errorf("unhedged: decode market %s: %w: %v", id, domain.ErrDataIncomplete, err)
	}
	if m.Status == "" {
		return domain.Market{}, fmt.Errorf("unhedged: market %s has no status: %w", id, domain.ErrDataIncomplete)
	}

	market := m.ToDomainMarket()
	if market.ID == "" {
		market.ID = id
	}
	return market, nil
}

// GetMarketStats returns the current pool snapshot of a market.
func (c *Client) GetMarketStats(ctx context.Context, id string) (domain.MarketStats, error) {
	body, err := c.rq.Do(ctx, transport.Request{Path: pathMarkets + url.PathEscape(id) + "/stats"})
	if err != nil {
		return domain.MarketStats{}, fmt.Errorf("unhedged: get stats %s: %w", id, err)
	}

	var resp marketStatsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.MarketStats{}, fmt.Errorf("unhedged: decode stats %s: %w: %v", id, domain.ErrDataIncomplete, err)
	}
	if resp.Stats == nil {
		return domain.MarketStats{}, fmt.Errorf("unhedged: stats %s missing: %w", id, domain.ErrDataIncomplete)
	}
	return resp.Stats.ToDomainStats(), nil
}

// ListBets returns bets matching filter.
func (c *Client) ListBets(ctx context.Context, filter domain.BetFilter) ([]domain.Bet, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.MarketID != "" {
		q.Set("marketId", filter.MarketID)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	body, err := c.rq.Do(ctx, transport.Request{Path: pathBets, Query: q})
	if err != nil {
		return nil, fmt.Errorf("unhedged: list bets: %w", err)
	}

	var resp betListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unhedged: decode bets: %w: %v", domain.ErrDataIncomplete, err)
	}

	bets := make([]domain.Bet, 0, len(resp.Bets))
	for i := range resp.Bets {
		bets = append(bets, resp.Bets[i].ToDomainBet())
	}
	return bets, nil
}

// PlaceBet submits a bet. The idempotency key makes a retried submission safe.
func (c *Client) PlaceBet(ctx context.Context, req domain.BetRequest) (domain.Bet, error) {
	if req.IdempotencyKey == "" {
		return domain.Bet{}, errors.New("unhedged: place bet: idempotency key is required")
	}

	payload := placeBetBody{
		MarketID:       req.MarketID,
		OutcomeIndex:   req.OutcomeIndex,
		Amount:         json.Number(decimal.NewFromFloat(req.Amount).String()),
		IdempotencyKey: req.IdempotencyKey,
	}

	body, err := c.rq.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   pathBets,
		Body:   payload,
	})
	if err != nil {
		return domain.Bet{}, fmt.Errorf("unhedged: place bet on %s: %w", req.MarketID, err)
	}

	bet := domain.Bet{
		MarketID:       req.MarketID,
		OutcomeIndex:   req.OutcomeIndex,
		Amount:         req.Amount,
		Status:         domain.BetStatusPending,
		IdempotencyKey: req.IdempotencyKey,
	}

	// The created bet may come wrapped or bare; an unparseable body still
	// means the 2xx was accepted.
	var wrapped placeBetResponse
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Bet != nil {
		return mergeBet(bet, wrapped.Bet.ToDomainBet()), nil
	}
	var bare APIBet
	if err := json.Unmarshal(body, &bare); err == nil && bare.ID != "" {
		return mergeBet(bet, bare.ToDomainBet()), nil
	}
	return bet, nil
}

func mergeBet(base, got domain.Bet) domain.Bet {
	base.ID = got.ID
	if got.Status != "" {
		base.Status = got.Status
	}
	if !got.CreatedAt.IsZero() {
		base.CreatedAt = got.CreatedAt
	}
	return base
}

// GetBalance returns the account's available balance.
func (c *Client) GetBalance(ctx context.Context) (domain.Balance, error) {
	body, err := c.rq.Do(ctx, transport.Request{Path: pathBalance})
	if err != nil {
		return domain.Balance{}, fmt.Errorf("unhedged: get balance: %w", err)
	}

	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Balance{}, fmt.Errorf("unhedged: decode balance: %w: %v", domain.ErrDataIncomplete, err)
	}
	if resp.Balance == nil {
		return domain.Balance{}, nil
	}
	return domain.Balance{Available: nullFloat(resp.Balance.Available)}, nil
}

// GetPortfolio returns the account overview.
func (c *Client) GetPortfolio(ctx context.Context) (domain.Portfolio, error) {
	var out domain.Portfolio
	if err := c.getJSON(ctx, pathPortfolio, &out); err != nil {
		return nil, fmt.Errorf("unhedged: get portfolio: %w", err)
	}
	return out, nil
}

// GetEquity returns the account equity snapshot.
func (c *Client) GetEquity(ctx context.Context) (domain.Equity, error) {
	var out domain.Equity
	if err := c.getJSON(ctx, pathEquity, &out); err != nil {
		return nil, fmt.Errorf("unhedged: get equity: %w", err)
	}
	return out, nil
}

// GetAchievements returns the achievement catalogue as sent by the API.
func (c *Client) GetAchievements(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, pathAchievements, &out); err != nil {
		return nil, fmt.Errorf("unhedged: get achievements: %w", err)
	}
	return out, nil
}

// GetAchievementProgress returns the account's quest progress.
func (c *Client) GetAchievementProgress(ctx context.Context) ([]domain.AchievementProgress, error) {
	var resp achievementProgressResponse
	if err := c.getJSON(ctx, pathAchievementProgress, &resp); err != nil {
		return nil, fmt.Errorf("unhedged: get achievement progress: %w", err)
	}
	out := make([]domain.AchievementProgress, 0, len(resp.Progress))
	for _, p := range resp.Progress {
		out = append(out, p.ToDomain())
	}
	return out, nil
}

// Remaining reports the request budget left in the current window.
func (c *Client) Remaining() int {
	return c.rq.Remaining()
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.rq.Do(ctx, transport.Request{Path: path})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w: %v", path, domain.ErrDataIncomplete, err)
	}
	return nil
}
