// Package config defines the bot's configuration, its defaults and
// validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields come from a TOML file, then
// QUESTBOT_* environment variables, then command-line flags.
type Config struct {
	Unhedged         UnhedgedConfig  `toml:"unhedged"`
	PriceFeed        PriceFeedConfig `toml:"price_feed"`
	RateLimit        RateLimitConfig `toml:"rate_limit"`
	ServerErrorRetry RetryConfig     `toml:"server_error_retry"`
	Betting          BettingConfig   `toml:"betting"`
	Polling          PollingConfig   `toml:"polling"`
	Redis            RedisConfig     `toml:"redis"`
	Postgres         PostgresConfig  `toml:"postgres"`
	S3               S3Config        `toml:"s3"`
	Server           ServerConfig    `toml:"server"`
	Notify           NotifyConfig    `toml:"notify"`
	Log              LogConfig       `toml:"log"`
	// Timezone is used only to display market close times.
	Timezone string `toml:"timezone"`
}

// UnhedgedConfig holds the market API endpoint and credential. The key may
// come in clear or as a sealed file produced by questbot-keyenc.
type UnhedgedConfig struct {
	BaseURL        string   `toml:"base_url"`
	APIKey         string   `toml:"api_key"`
	APIKeyFile     string   `toml:"api_key_file"`
	APIKeyPassword string   `toml:"api_key_password"`
	Proxies        []string `toml:"proxies"`
}

// PriceFeedConfig holds the CoinMarketCap settings. Without an API key the
// price signal is reported unavailable and the strategy skips price markets.
type PriceFeedConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	// FallbackAsset is quoted when a question names no known asset. Empty
	// treats such questions as unknown.
	FallbackAsset        string   `toml:"fallback_asset"`
	MaxRequestsPerMinute int      `toml:"max_requests_per_minute"`
	CacheTTL             duration `toml:"cache_ttl"`
}

// RateLimitConfig bounds requests to the market API.
type RateLimitConfig struct {
	MaxRequestsPerMinute int      `toml:"max_requests_per_minute"`
	BufferRequests       int      `toml:"buffer_requests"`
	RetryAfter           duration `toml:"retry_after"`
	SafetyMargin         duration `toml:"safety_margin"`
	Timeout              duration `toml:"timeout"`
}

// RetryConfig controls retries of 502/503/504 responses.
type RetryConfig struct {
	Enabled    bool     `toml:"enabled"`
	MaxRetries int      `toml:"max_retries"`
	Wait       duration `toml:"wait"`
}

// BettingConfig holds the strategy thresholds and the session limits.
type BettingConfig struct {
	Window                    duration `toml:"window"`
	Horizon                   duration `toml:"horizon"`
	Cooldown                  duration `toml:"cooldown"`
	MajorityThreshold         float64  `toml:"majority_threshold"`
	MajorityWeight            float64  `toml:"majority_weight"`
	PriceDeltaWeight          float64  `toml:"price_delta_weight"`
	PriceUncertaintyThreshold float64  `toml:"price_uncertainty_threshold"`
	MinPoolSize               float64  `toml:"min_pool_size"`
	MinPayout                 float64  `toml:"min_payout"`
	UseAllBalance             bool     `toml:"use_all_balance"`
	// MaxTotalBets stops the bot after this many bets; 0 is unlimited.
	MaxTotalBets    int     `toml:"max_total_bets"`
	DryRun          bool    `toml:"dry_run"`
	MarketListLimit int     `toml:"market_list_limit"`
	TargetBetCount  int     `toml:"target_bet_count"`
	TargetVolume    float64 `toml:"target_volume"`
}

// PollingConfig holds the lifecycle wait intervals.
type PollingConfig struct {
	NoMarketWait    duration `toml:"no_market_wait"`
	ErrorBackoff    duration `toml:"error_backoff"`
	ResolutionPoll  duration `toml:"resolution_poll"`
	IncompleteRetry duration `toml:"incomplete_retry"`
	BalancePoll     duration `toml:"balance_poll"`
	MaxWindowSleep  duration `toml:"max_window_sleep"`
	ThinBudgetWait  duration `toml:"thin_budget_wait"`
	StatsErrorWait  duration `toml:"stats_error_wait"`
	MinRemaining    int      `toml:"min_remaining"`
}

// RedisConfig enables the shared price cache, the event bus and the
// single-instance lock.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	KeyPrefix  string   `toml:"key_prefix"`
	LockTTL    duration `toml:"lock_ttl"`
}

// PostgresConfig enables the bet journal and audit log.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config enables market archives in S3-compatible storage.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// ServerConfig configures the status API.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig configures chat notifications. Empty credentials disable a
// channel; empty Events forwards every supported event.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// duration lets TOML carry durations as strings such as "2500ms" or "5m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Defaults returns a Config with every field at its stock value.
func Defaults() Config {
	return Config{
		Unhedged: UnhedgedConfig{BaseURL: "https://api.unhedged.gg"},
		PriceFeed: PriceFeedConfig{
			BaseURL:              "https://pro-api.coinmarketcap.com",
			FallbackAsset:        "BTC",
			MaxRequestsPerMinute: 30,
			CacheTTL:             duration{10 * time.Second},
		},
		RateLimit: RateLimitConfig{
			MaxRequestsPerMinute: 30,
			BufferRequests:       5,
			RetryAfter:           duration{2 * time.Second},
			SafetyMargin:         duration{100 * time.Millisecond},
			Timeout:              duration{30 * time.Second},
		},
		ServerErrorRetry: RetryConfig{
			Enabled:    true,
			MaxRetries: 3,
			Wait:       duration{5 * time.Second},
		},
		Betting: BettingConfig{
			Window:                    duration{10 * time.Minute},
			Horizon:                   duration{90 * time.Minute},
			Cooldown:                  duration{2500 * time.Millisecond},
			MajorityThreshold:         0.80,
			MajorityWeight:            0.6,
			PriceDeltaWeight:          0.4,
			PriceUncertaintyThreshold: 0.001,
			MinPoolSize:               3000,
			MarketListLimit:           20,
			TargetBetCount:            750,
			TargetVolume:              2000,
		},
		Polling: PollingConfig{
			NoMarketWait:    duration{60 * time.Second},
			ErrorBackoff:    duration{30 * time.Second},
			ResolutionPoll:  duration{30 * time.Second},
			IncompleteRetry: duration{5 * time.Second},
			BalancePoll:     duration{60 * time.Second},
			MaxWindowSleep:  duration{5 * time.Minute},
			ThinBudgetWait:  duration{2 * time.Second},
			StatsErrorWait:  duration{1 * time.Second},
			MinRemaining:    2,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "questbot:",
			LockTTL:   duration{30 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "questbot",
			User:          "questbot",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			RunMigrations: true,
		},
		S3: S3Config{
			Region:         "us-east-1",
			UseSSL:         true,
			ForcePathStyle: true,
			Prefix:         "questbot",
		},
		Server: ServerConfig{
			Addr:       ":8080",
			RateLimit:  120,
			RateWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"market_selected", "bet_failed", "market_resolved", "stopped"},
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
		Timezone: "UTC",
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }

	if strings.TrimSpace(c.Unhedged.APIKey) == "" && c.Unhedged.APIKeyFile == "" {
		add("unhedged: api key is required (set the key's environment variable or unhedged.api_key_file)")
	}
	if c.Unhedged.APIKeyFile != "" && c.Unhedged.APIKeyPassword == "" {
		add("unhedged: api_key_password is required when api_key_file is set")
	}
	if c.Unhedged.BaseURL == "" {
		add("unhedged: base_url must not be empty")
	}

	if c.RateLimit.MaxRequestsPerMinute <= c.RateLimit.BufferRequests {
		add("rate_limit: max_requests_per_minute (%d) must exceed buffer_requests (%d)",
			c.RateLimit.MaxRequestsPerMinute, c.RateLimit.BufferRequests)
	}
	if c.RateLimit.BufferRequests < 0 {
		add("rate_limit: buffer_requests must be >= 0")
	}
	if c.ServerErrorRetry.Enabled && c.ServerErrorRetry.MaxRetries < 0 {
		add("server_error_retry: max_retries must be >= 0")
	}
	if c.PriceFeed.APIKey != "" && c.PriceFeed.MaxRequestsPerMinute <= 0 {
		add("price_feed: max_requests_per_minute must be > 0")
	}

	b := c.Betting
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"majority_threshold", b.MajorityThreshold},
		{"majority_weight", b.MajorityWeight},
		{"price_delta_weight", b.PriceDeltaWeight},
		{"price_uncertainty_threshold", b.PriceUncertaintyThreshold},
	} {
		if f.v < 0 || f.v > 1 {
			add("betting: %s must be within [0, 1], got %g", f.name, f.v)
		}
	}
	if b.Window.Duration <= 0 {
		add("betting: window must be > 0")
	}
	if b.Horizon.Duration < b.Window.Duration {
		add("betting: horizon (%s) must not be shorter than window (%s)", b.Horizon.Duration, b.Window.Duration)
	}
	if b.Cooldown.Duration < 0 {
		add("betting: cooldown must be >= 0")
	}
	if b.MaxTotalBets < 0 {
		add("betting: max_total_bets must be >= 0")
	}
	if b.MarketListLimit < 1 {
		add("betting: market_list_limit must be >= 1")
	}

	for _, w := range []struct {
		name string
		d    time.Duration
	}{
		{"no_market_wait", c.Polling.NoMarketWait.Duration},
		{"error_backoff", c.Polling.ErrorBackoff.Duration},
		{"resolution_poll", c.Polling.ResolutionPoll.Duration},
		{"incomplete_retry", c.Polling.IncompleteRetry.Duration},
		{"balance_poll", c.Polling.BalancePoll.Duration},
		{"max_window_sleep", c.Polling.MaxWindowSleep.Duration},
		{"thin_budget_wait", c.Polling.ThinBudgetWait.Duration},
		{"stats_error_wait", c.Polling.StatsErrorWait.Duration},
	} {
		if w.d <= 0 {
			add("polling: %s must be > 0", w.name)
		}
	}
	if c.Polling.MinRemaining < 0 {
		add("polling: min_remaining must be >= 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration < time.Second {
			add("redis: lock_ttl must be at least 1s")
		}
	}
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" && c.Postgres.Host == "" {
			add("postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.PoolMaxConns < 1 {
			add("postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			add("postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			add("s3: region must not be empty")
		}
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		add("server: addr must not be empty")
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		add("log: unknown level %q (valid: debug, info, warn, error)", c.Log.Level)
	}
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "text" {
		add("log: unknown format %q (valid: json, text)", c.Log.Format)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		add("timezone: %v", err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %d validation error(s):\n  - %s", len(errs), strings.Join(errs, "\n  - "))
	}
	return nil
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
