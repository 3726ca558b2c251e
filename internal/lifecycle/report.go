package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/questbot/internal/domain"
)

const progressEvery = 10

// ReportProgress logs quest progress and account equity. Both are
// informational; failures are logged at debug level only.
func (b *Bot) ReportProgress(ctx context.Context) {
	progress, err := b.api.GetAchievementProgress(ctx)
	if err != nil {
		b.logger.DebugContext(ctx, "could not fetch achievement progress", slog.String("error", err.Error()))
	} else if len(progress) > 0 {
		b.logAchievement(ctx, progress[0])
	}

	equity, err := b.api.GetEquity(ctx)
	if err != nil {
		b.logger.DebugContext(ctx, "could not fetch equity", slog.String("error", err.Error()))
		return
	}
	b.logger.InfoContext(ctx, "account equity", slog.Any("equity", map[string]any(equity)))
}

func (b *Bot) logAchievement(ctx context.Context, p domain.AchievementProgress) {
	attrs := []any{
		slog.String("achievement", p.Name),
		slog.String("step", fmt.Sprintf("%d/%d", p.CompletedStep, len(p.Steps))),
		slog.Int("bets", p.CurrentBets),
		slog.Float64("volume", p.CurrentVolume),
	}
	if b.cfg.QuestBetTarget > 0 {
		attrs = append(attrs, slog.String("bets_pct", fmt.Sprintf("%.0f%%", float64(p.CurrentBets)/float64(b.cfg.QuestBetTarget)*100)))
	}
	if b.cfg.QuestVolumeTarget > 0 {
		attrs = append(attrs, slog.String("volume_pct", fmt.Sprintf("%.0f%%", p.CurrentVolume/b.cfg.QuestVolumeTarget*100)))
	}
	b.logger.InfoContext(ctx, "achievement progress", attrs...)

	next, ok := p.NextStep()
	if !ok {
		var total float64
		for _, s := range p.Steps {
			total += s.RewardAmount
		}
		b.logger.InfoContext(ctx, "quest complete", slog.Float64("total_reward", total))
		return
	}
	b.logger.InfoContext(ctx, "next achievement step",
		slog.Int("step", next.StepNumber),
		slog.Int("bets_needed", max(0, next.RequiredBets-p.CurrentBets)),
		slog.Float64("volume_needed", max(0, next.RequiredVolume-p.CurrentVolume)),
		slog.Float64("reward", next.RewardAmount),
	)
}

// logTargetPrice prints where the spot price sits relative to the market's
// target. Missing data just skips the line.
func (b *Bot) logTargetPrice(ctx context.Context, market domain.Market) {
	if b.feed == nil || b.extractor == nil {
		return
	}
	target, ok := b.extractor.Extract(market.Question)
	if !ok {
		return
	}
	q, err := b.feed.QuoteFor(ctx, market.Question)
	if err != nil {
		b.logger.DebugContext(ctx, "no current price for target comparison", slog.String("error", err.Error()))
		return
	}
	delta := (q.Price - target.Price) / target.Price * 100
	b.logger.InfoContext(ctx, "target vs current",
		slog.String("symbol", q.Symbol),
		slog.String("target", fmt.Sprintf("$%.2f", target.Price)),
		slog.String("current", fmt.Sprintf("$%.2f", q.Price)),
		slog.String("delta", fmt.Sprintf("%+.2f%%", delta)),
	)
}

// logFavorability reports, once per window, whether the market still meets
// the selection thresholds. It does not gate betting.
func (b *Bot) logFavorability(ctx context.Context, market domain.Market) {
	stats, err := b.api.GetMarketStats(ctx, market.ID)
	if err != nil {
		return
	}
	maxProb := stats.MaxImpliedProbability()
	var reasons []string
	if maxProb < b.cfg.MajorityThreshold {
		reasons = append(reasons, fmt.Sprintf("%.0f%% majority (need %.0f%%)", maxProb*100, b.cfg.MajorityThreshold*100))
	}
	if stats.TotalPool < b.cfg.MinPoolSize {
		reasons = append(reasons, fmt.Sprintf("%.0f CC pool (need %.0f)", stats.TotalPool, b.cfg.MinPoolSize))
	}
	if len(reasons) > 0 {
		b.logger.InfoContext(ctx, "market unfavorable", slog.String("reasons", strings.Join(reasons, ", ")))
	}
}

func (b *Bot) logBetProgress(ctx context.Context) {
	b.mu.Lock()
	total, inMarket := b.totalBets, b.marketBets
	b.mu.Unlock()

	if b.cfg.MaxTotalBets > 0 {
		b.logger.InfoContext(ctx, "bet cap progress",
			slog.String("progress", fmt.Sprintf("%d/%d", total, b.cfg.MaxTotalBets)),
			slog.Bool("dry_run", b.cfg.DryRun),
		)
	}
	if inMarket%progressEvery == 0 {
		b.logger.InfoContext(ctx, "window progress", slog.Int("bets_in_market", inMarket))
	}
}
