// Package app wires the bot's dependencies and runs its long-lived goroutines:
// the market lifecycle, notifications, and the optional status server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/questbot/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run wires all dependencies and blocks until ctx is cancelled or the
// lifecycle stops on its own (bet cap reached). Either way every other
// goroutine is cancelled and Run returns the first real error, if any.
func (a *App) Run(ctx context.Context) error {
	log := a.logger.With(slog.String("component", "app"))
	a.banner(ctx, log)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The lifecycle returning means the run is over; take the rest down.
		defer cancel()
		return deps.Bot.Run(gctx)
	})
	if deps.Notifier != nil {
		g.Go(func() error { return deps.Notifier.Run(gctx) })
	}
	if deps.Hub != nil {
		g.Go(func() error { return deps.Hub.Run(gctx) })
	}
	if deps.Server != nil {
		g.Go(func() error { return deps.Server.Run(gctx) })
	}

	err = g.Wait()
	rs := deps.Bot.Snapshot()
	log.Info("bot exited",
		slog.String("final_state", rs.State.String()),
		slog.Int("total_bets", rs.TotalBets),
	)
	return err
}

func (a *App) banner(ctx context.Context, log *slog.Logger) {
	mode := "LIVE"
	if a.cfg.Betting.DryRun {
		mode = "DRY RUN"
	}
	log.InfoContext(ctx, "starting questbot",
		slog.String("mode", mode),
		slog.Int("max_total_bets", a.cfg.Betting.MaxTotalBets),
		slog.Float64("majority_threshold", a.cfg.Betting.MajorityThreshold),
		slog.Float64("min_payout", a.cfg.Betting.MinPayout),
		slog.Duration("window", a.cfg.Betting.Window.Duration),
		slog.Bool("price_feed", a.cfg.PriceFeed.APIKey != ""),
		slog.Int("proxies", len(a.cfg.Unhedged.Proxies)),
	)
	log.DebugContext(ctx, "effective config", slog.Any("config", config.RedactedConfig(a.cfg)))
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
