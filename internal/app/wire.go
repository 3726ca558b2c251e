package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/questbot/internal/blob/s3"
	"github.com/alanyoungcy/questbot/internal/cache/redis"
	"github.com/alanyoungcy/questbot/internal/clock"
	"github.com/alanyoungcy/questbot/internal/config"
	"github.com/alanyoungcy/questbot/internal/crypto"
	"github.com/alanyoungcy/questbot/internal/domain"
	"github.com/alanyoungcy/questbot/internal/lifecycle"
	"github.com/alanyoungcy/questbot/internal/metrics"
	"github.com/alanyoungcy/questbot/internal/notify"
	"github.com/alanyoungcy/questbot/internal/platform/cmc"
	"github.com/alanyoungcy/questbot/internal/platform/unhedged"
	"github.com/alanyoungcy/questbot/internal/pricefeed"
	"github.com/alanyoungcy/questbot/internal/server"
	"github.com/alanyoungcy/questbot/internal/server/handler"
	"github.com/alanyoungcy/questbot/internal/server/ws"
	"github.com/alanyoungcy/questbot/internal/service"
	"github.com/alanyoungcy/questbot/internal/store/postgres"
	"github.com/alanyoungcy/questbot/internal/strategy"
	"github.com/alanyoungcy/questbot/internal/transport"
)

// Dependencies bundles everything Run starts. Optional parts are nil when
// disabled in config.
type Dependencies struct {
	Bot      *lifecycle.Bot
	Metrics  *metrics.Recorder
	Notifier *notify.Notifier
	Hub      *ws.Hub
	Server   *server.Server
}

// Wire builds every component from cfg. The returned cleanup releases
// connections in reverse order and must be called even when Run fails.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	clk := clock.Real{}
	deps := &Dependencies{Metrics: metrics.New()}

	apiKey, err := crypto.Resolve(crypto.SecretSource{
		Raw:        cfg.Unhedged.APIKey,
		SealedPath: cfg.Unhedged.APIKeyFile,
		Password:   cfg.Unhedged.APIKeyPassword,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: unhedged api key: %w", err))
	}

	// --- Market API ---
	marketTransport, err := transport.New(transport.Config{
		Name:                 "unhedged",
		BaseURL:              cfg.Unhedged.BaseURL,
		Headers:              unhedged.AuthHeaders(apiKey),
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		BufferRequests:       cfg.RateLimit.BufferRequests,
		RetryAfter:           cfg.RateLimit.RetryAfter.Duration,
		SafetyMargin:         cfg.RateLimit.SafetyMargin.Duration,
		ServerErrorRetry: transport.RetryPolicy{
			Enabled:    cfg.ServerErrorRetry.Enabled,
			MaxRetries: cfg.ServerErrorRetry.MaxRetries,
			Wait:       cfg.ServerErrorRetry.Wait.Duration,
		},
		Timeout: cfg.RateLimit.Timeout.Duration,
		Proxies: cfg.Unhedged.Proxies,
	}, clk, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: market transport: %w", err))
	}
	marketTransport.SetObserver(deps.Metrics)
	api := unhedged.New(marketTransport)

	// --- Redis (optional) ---
	var (
		redisClient *redis.Client
		bus         *redis.EventBus
	)
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		locks := redis.NewLockManager(redisClient, logger)
		unlock, err := locks.Acquire(ctx, instanceLockKey(apiKey), cfg.Redis.LockTTL.Duration)
		if err != nil {
			return fail(fmt.Errorf("wire: another instance is running with this api key: %w", err))
		}
		closers = append(closers, unlock)
		bus = redis.NewEventBus(redisClient)
	}

	// --- Price feed ---
	var quoter pricefeed.Quoter = cmc.New(nil, clk)
	if cfg.PriceFeed.APIKey != "" {
		priceTransport, err := transport.New(transport.Config{
			Name:                 "cmc",
			BaseURL:              cfg.PriceFeed.BaseURL,
			Headers:              cmc.Headers(cfg.PriceFeed.APIKey),
			MaxRequestsPerMinute: cfg.PriceFeed.MaxRequestsPerMinute,
			ServerErrorRetry: transport.RetryPolicy{
				Enabled:    cfg.ServerErrorRetry.Enabled,
				MaxRetries: cfg.ServerErrorRetry.MaxRetries,
				Wait:       cfg.ServerErrorRetry.Wait.Duration,
			},
			Timeout: cfg.RateLimit.Timeout.Duration,
		}, clk, logger)
		if err != nil {
			return fail(fmt.Errorf("wire: price transport: %w", err))
		}
		priceTransport.SetObserver(deps.Metrics)
		quoter = cmc.New(priceTransport, clk)
		if redisClient != nil && cfg.PriceFeed.CacheTTL.Duration > 0 {
			ttl := cfg.PriceFeed.CacheTTL.Duration
			quoter = pricefeed.NewCached(quoter, redis.NewPriceCache(redisClient, ttl), ttl, clk, logger)
		}
	} else {
		logger.WarnContext(ctx, "no price feed key configured; price signal unavailable")
	}
	feed := pricefeed.New(quoter, pricefeed.NewClassifier(cfg.PriceFeed.FallbackAsset))

	// --- Strategy and lifecycle ---
	scorer := strategy.NewScorer(strategy.Config{
		Cooldown:                  cfg.Betting.Cooldown.Duration,
		MajorityThreshold:         cfg.Betting.MajorityThreshold,
		MajorityWeight:            cfg.Betting.MajorityWeight,
		PriceDeltaWeight:          cfg.Betting.PriceDeltaWeight,
		PriceUncertaintyThreshold: cfg.Betting.PriceUncertaintyThreshold,
		MinPayoutThreshold:        cfg.Betting.MinPayout,
		UseAllBalance:             cfg.Betting.UseAllBalance,
	}, nil, clk)

	deps.Bot = lifecycle.New(lifecycleConfig(cfg), api, feed, scorer, clk, logger)
	deps.Bot.AddObserver(deps.Metrics)

	// --- Postgres (optional) ---
	var (
		journal domain.BetJournal
		audit   domain.AuditStore
		checks  = map[string]handler.Check{}
	)
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		journal = postgres.NewBetStore(pg.Pool())
		audit = postgres.NewAuditStore(pg.Pool())
		checks["postgres"] = func(ctx context.Context) error { return pg.Pool().Ping(ctx) }
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Ping
	}

	// --- S3 (optional) ---
	var archiver service.Archiver
	if cfg.S3.Enabled {
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		archiver = s3blob.NewMarketArchiver(s3blob.NewWriter(s3c), journal, audit)
		checks["s3"] = s3c.Health
	}

	// Assign interfaces only when set so a nil store never becomes a non-nil
	// interface value.
	recDeps := service.RecorderDeps{Archiver: archiver}
	if journal != nil {
		recDeps.Journal = journal
	}
	if audit != nil {
		recDeps.Audit = audit
	}
	if bus != nil {
		recDeps.Bus = bus
	}
	deps.Bot.AddObserver(service.NewRecorder(recDeps, logger))

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, ""))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
		deps.Bot.AddObserver(deps.Notifier)
	}

	// --- Status server ---
	if cfg.Server.Enabled {
		deps.Hub = ws.NewHub(deps.Bot, logger)
		deps.Bot.AddObserver(deps.Hub)

		h := server.Handlers{
			Health:  handler.NewHealthHandler(checks, logger),
			Status:  handler.NewStatusHandler(deps.Bot),
			Metrics: deps.Metrics.Handler(),
		}
		if journal != nil {
			h.Bets = handler.NewBetHandler(journal, logger)
		}
		if audit != nil {
			h.Audit = handler.NewAuditHandler(audit, logger)
		}
		if bus != nil {
			h.Events = handler.NewEventHandler(bus, service.EventsChannel, logger)
		}
		deps.Server = server.New(server.Config{
			Addr:        cfg.Server.Addr,
			CORSOrigins: cfg.Server.CORSOrigins,
			APIKey:      cfg.Server.APIKey,
			RateLimit:   cfg.Server.RateLimit,
			RateWindow:  cfg.Server.RateWindow.Duration,
		}, h, deps.Hub, logger)
	}

	return deps, cleanup, nil
}

func lifecycleConfig(cfg *config.Config) lifecycle.Config {
	lc := lifecycle.DefaultConfig()
	lc.Window = cfg.Betting.Window.Duration
	lc.Horizon = cfg.Betting.Horizon.Duration
	lc.Cooldown = cfg.Betting.Cooldown.Duration
	lc.MinPoolSize = cfg.Betting.MinPoolSize
	lc.MajorityThreshold = cfg.Betting.MajorityThreshold
	lc.MaxTotalBets = cfg.Betting.MaxTotalBets
	lc.DryRun = cfg.Betting.DryRun
	lc.MarketListLimit = cfg.Betting.MarketListLimit
	lc.QuestBetTarget = cfg.Betting.TargetBetCount
	lc.QuestVolumeTarget = cfg.Betting.TargetVolume

	lc.MaxWindowSleep = cfg.Polling.MaxWindowSleep.Duration
	lc.NoMarketWait = cfg.Polling.NoMarketWait.Duration
	lc.ErrorBackoff = cfg.Polling.ErrorBackoff.Duration
	lc.ResolutionPoll = cfg.Polling.ResolutionPoll.Duration
	lc.IncompleteRetry = cfg.Polling.IncompleteRetry.Duration
	lc.BalancePoll = cfg.Polling.BalancePoll.Duration
	lc.ThinBudgetWait = cfg.Polling.ThinBudgetWait.Duration
	lc.StatsErrorWait = cfg.Polling.StatsErrorWait.Duration
	lc.MinRemaining = cfg.Polling.MinRemaining

	lc.Location = cfg.Location()
	return lc
}

// instanceLockKey derives the lock name from the API key without storing the
// key itself in Redis.
func instanceLockKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return "instance:" + hex.EncodeToString(sum[:8])
}

var (
	_ lifecycle.MarketAPI = (*unhedged.Client)(nil)
	_ lifecycle.PriceFeed = (*pricefeed.Feed)(nil)
	_ lifecycle.Decider   = (*strategy.Scorer)(nil)
	_ lifecycle.Observer  = (*service.Recorder)(nil)
	_ lifecycle.Observer  = (*notify.Notifier)(nil)
	_ lifecycle.Observer  = (*ws.Hub)(nil)
	_ lifecycle.Observer  = (*metrics.Recorder)(nil)
	_ transport.Observer  = (*metrics.Recorder)(nil)
	_ pricefeed.Quoter    = (*cmc.Client)(nil)
	_ cmc.Requester       = (*transport.Client)(nil)
	_ unhedged.Requester  = (*transport.Client)(nil)
)
