// Package cmc fetches spot quotes from the CoinMarketCap Pro API.
package cmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/questbot/internal/clock"
	"github.com/alanyoungcy/questbot/internal/domain"
	"github.com/alanyoungcy/questbot/internal/transport"
)

// DefaultBaseURL is the CoinMarketCap Pro API root.
const DefaultBaseURL = "https://pro-api.coinmarketcap.com"

const pathQuotesLatest = "/v1/cryptocurrency/quotes/latest"

// APIKeyHeader carries the CoinMarketCap credential.
const APIKeyHeader = "X-CMC_PRO_API_KEY"

// Requester is the subset of transport.Client used here.
type Requester interface {
	Do(ctx context.Context, req transport.Request) ([]byte, error)
}

// Client returns USD quotes. A Client without a key never touches the
// network and reports every quote as unavailable.
type Client struct {
	rq    Requester
	clock clock.Clock
}

// New creates a Client. rq may be nil when no API key is configured.
func New(rq Requester, clk clock.Clock) *Client {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Client{rq: rq, clock: clk}
}

// Headers returns the headers the transport must send on every request.
func Headers(apiKey string) map[string]string {
	return map[string]string{APIKeyHeader: apiKey}
}

type quoteResponse struct {
	Data map[string]struct {
		Quote map[string]struct {
			Price decimal.NullDecimal `json:"price"`
		} `json:"quote"`
	} `json:"data"`
}

// Quote returns the latest USD price of symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if c.rq == nil {
		return domain.PriceQuote{}, fmt.Errorf("cmc: quote %s: no api key configured: %w", symbol, domain.ErrPriceUnavailable)
	}
	if symbol == "" {
		return domain.PriceQuote{}, fmt.Errorf("cmc: quote: empty symbol: %w", domain.ErrPriceUnavailable)
	}

	body, err := c.rq.Do(ctx, transport.Request{
		Path:  pathQuotesLatest,
		Query: url.Values{"symbol": {symbol}},
	})
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("cmc: quote %s: %w: %w", symbol, domain.ErrPriceUnavailable, err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("cmc: decode quote %s: %w: %v", symbol, domain.ErrPriceUnavailable, err)
	}
	price := resp.Data[symbol].Quote["USD"].Price
	if !price.Valid || !price.Decimal.IsPositive() {
		return domain.PriceQuote{}, fmt.Errorf("cmc: invalid price for %s: %w", symbol, domain.ErrPriceUnavailable)
	}

	return domain.PriceQuote{
		Symbol: symbol,
		Price:  price.Decimal.InexactFloat64(),
		At:     c.clock.Now(),
	}, nil
}
