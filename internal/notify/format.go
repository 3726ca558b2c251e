package notify

import (
	"fmt"

	"github.com/alanyoungcy/questbot/internal/domain"
)

// Format renders ev as a chat message. ok is false for events that have no
// human-readable form (state changes, skips).
func Format(ev domain.Event) (title, body string, ok bool) {
	switch ev.Type {
	case domain.EventMarketSelected:
		if ev.Market == nil {
			return "", "", false
		}
		return "Market selected", fmt.Sprintf("%s\ncloses %s", ev.Market.Question, ev.Market.EndTime.UTC().Format("Jan 2 15:04 MST")), true

	case domain.EventBetPlaced:
		if ev.Bet == nil {
			return "", "", false
		}
		title = "Bet placed"
		if ev.Bet.DryRun {
			title = "Bet placed (dry run)"
		}
		return title, fmt.Sprintf("%s CC on %s\n%s\nconfidence %.0f%%",
			trimAmount(ev.Bet.Amount), ev.Bet.OutcomeLabel, ev.Bet.Question, ev.Bet.Confidence*100), true

	case domain.EventBetFailed:
		msg := ev.Error
		if ev.Bet != nil {
			msg = fmt.Sprintf("%s CC on %s: %s", trimAmount(ev.Bet.Amount), ev.Bet.OutcomeLabel, ev.Error)
		}
		return "Bet failed", msg, true

	case domain.EventMarketResolved:
		if ev.Market == nil {
			return "", "", false
		}
		return "Market " + string(ev.Market.Status), ev.Market.Question, true

	case domain.EventStopped:
		return "Bot stopped", ev.Error, true
	}
	return "", "", false
}

func trimAmount(v float64) string {
	return fmt.Sprintf("%g", v)
}
