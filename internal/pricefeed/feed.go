// Package pricefeed resolves the asset a market question refers to and
// fetches its spot price.
package pricefeed

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/questbot/internal/domain"
)

// Quoter returns the latest USD quote for a symbol.
type Quoter interface {
	Quote(ctx context.Context, symbol string) (domain.PriceQuote, error)
}

// Feed answers "what is the current price of the asset in this question".
type Feed struct {
	quoter     Quoter
	classifier *Classifier
}

// New creates a Feed.
func New(q Quoter, c *Classifier) *Feed {
	return &Feed{quoter: q, classifier: c}
}

// QuoteFor returns the quote for the asset referenced by question. It fails
// with domain.ErrPriceUnavailable when the asset has no price source.
func (f *Feed) QuoteFor(ctx context.Context, question string) (domain.PriceQuote, error) {
	symbol, ok := f.classifier.Asset(question)
	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("pricefeed: no price source for %q: %w", question, domain.ErrPriceUnavailable)
	}
	q, err := f.quoter.Quote(ctx, symbol)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("pricefeed: %w", err)
	}
	return q, nil
}
