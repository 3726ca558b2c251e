package pricefeed

import (
	"regexp"
	"strings"
)

// rule maps question keywords to a quote symbol. An empty symbol marks an
// asset that has no price source.
type rule struct {
	symbol  string
	pattern *regexp.Regexp
}

func wordRule(symbol string, words ...string) rule {
	return rule{
		symbol:  symbol,
		pattern: regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`),
	}
}

var defaultRules = []rule{
	wordRule("BTC", "bitcoin", "btc"),
	wordRule("ETH", "ethereum", "eth"),
	wordRule("SOL", "solana", "sol"),
	wordRule("", "canton coin", "cc"),
}

// Classifier extracts the referenced asset from a market question.
type Classifier struct {
	rules    []rule
	fallback string
}

// NewClassifier returns a Classifier that answers fallback when no rule
// matches. An empty fallback makes unmatched questions unknown.
func NewClassifier(fallback string) *Classifier {
	return &Classifier{rules: defaultRules, fallback: strings.ToUpper(strings.TrimSpace(fallback))}
}

// Asset returns the quote symbol for question. ok is false when the question
// names an asset without a price source, or names none and there is no
// fallback.
func (c *Classifier) Asset(question string) (symbol string, ok bool) {
	for _, r := range c.rules {
		if r.pattern.MatchString(question) {
			return r.symbol, r.symbol != ""
		}
	}
	return c.fallback, c.fallback != ""
}
