package pricefeed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/questbot/internal/clock"
	"github.com/alanyoungcy/questbot/internal/domain"
)

// Cached serves quotes from a PriceCache while they are younger than ttl and
// refreshes them from the wrapped Quoter otherwise. Cache failures degrade to
// a direct fetch.
type Cached struct {
	next   Quoter
	cache  domain.PriceCache
	ttl    time.Duration
	clock  clock.Clock
	logger *slog.Logger
}

// NewCached wraps next with cache.
func NewCached(next Quoter, cache domain.PriceCache, ttl time.Duration, clk clock.Clock, logger *slog.Logger) *Cached {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		clock:  clk,
		logger: logger.With(slog.String("component", "price_cache")),
	}
}

// Quote implements Quoter.
func (c *Cached) Quote(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	now := c.clock.Now()
	price, ts, err := c.cache.GetPrice(ctx, symbol)
	switch {
	case err == nil && now.Sub(ts) < c.ttl:
		return domain.PriceQuote{Symbol: symbol, Price: price, At: ts}, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		c.logger.WarnContext(ctx, "price cache read failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
	}

	q, err := c.next.Quote(ctx, symbol)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	if err := c.cache.SetPrice(ctx, q.Symbol, q.Price, q.At); err != nil {
		c.logger.WarnContext(ctx, "price cache write failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
	}
	return q, nil
}
