// Command questbot is the entry point for the Unhedged quest bot. It loads
// configuration, validates it, sets up logging and signal handling, and runs
// the market lifecycle until interrupted or the bet cap is reached.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/questbot/internal/app"
	"github.com/alanyoungcy/questbot/internal/config"
	"github.com/alanyoungcy/questbot/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		unhedged   string
		cmc        string
		proxy      string
		dryRun     = flag.Bool("dry-run", false, "log decisions without placing bets")
	)
	flag.StringVar(&configPath, "config", "", "path to TOML configuration file (defaults only when empty)")
	flag.StringVar(&configPath, "f", "", "shorthand for -config")
	flag.StringVar(&unhedged, "unhedged", config.DefaultUnhedgedKeyEnv, "environment variable holding the Unhedged API key")
	flag.StringVar(&unhedged, "u", config.DefaultUnhedgedKeyEnv, "shorthand for -unhedged")
	flag.StringVar(&cmc, "cmc", config.DefaultCMCKeyEnv, "environment variable holding the CoinMarketCap API key")
	flag.StringVar(&cmc, "c", config.DefaultCMCKeyEnv, "shorthand for -cmc")
	flag.StringVar(&proxy, "proxy", "", "environment variable holding a comma-separated proxy list")
	flag.StringVar(&proxy, "p", "", "shorthand for -proxy")
	flag.Parse()

	cfg, err := config.Load(configPath, config.KeyEnv{Unhedged: unhedged, CMC: cmc, Proxy: proxy})
	if err != nil {
		fmt.Fprintf(os.Stderr, "questbot: %v\n", err)
		return 1
	}
	if *dryRun {
		cfg.Betting.DryRun = true
	}

	logger, closeLog, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "questbot: %v\n", err)
		return 1
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application exited with error", slog.String("error", err.Error()))
		return 1
	}
	logger.Info("questbot stopped")
	return 0
}
