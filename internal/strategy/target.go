package strategy

import (
	"regexp"
	"strconv"
	"strings"
)

// Target is a price threshold parsed from a market question.
type Target struct {
	Price float64
	// Above is true for "above" markets; anything else is read as "below".
	Above bool
}

// TargetExtractor pulls the price threshold out of a market. ok is false when
// no usable number is present.
type TargetExtractor interface {
	Extract(question string) (t Target, ok bool)
}

var (
	dollarAmount = regexp.MustCompile(`\$\s?(\d[\d,]*(?:\.\d+)?)`)
	bareAmount   = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// QuestionExtractor reads the target from free text. A dollar-prefixed amount
// wins over any bare number earlier in the question, so "Will BTC be above
// $98,000 at 8 PM on Jan 5?" yields 98000.
type QuestionExtractor struct{}

// Extract implements TargetExtractor.
func (QuestionExtractor) Extract(question string) (Target, bool) {
	var raw string
	if m := dollarAmount.FindStringSubmatch(question); m != nil {
		raw = m[1]
	} else {
		raw = bareAmount.FindString(question)
	}
	if raw == "" {
		return Target{}, false
	}

	price, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || price <= 0 {
		return Target{}, false
	}
	return Target{
		Price: price,
		Above: strings.Contains(strings.ToLower(question), "above"),
	}, true
}
