package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Default names of the environment variables holding credentials. The CLI
// can point at different variables so several accounts can share one .env.
const (
	DefaultUnhedgedKeyEnv = "UNHEDGED_API_KEY"
	DefaultCMCKeyEnv      = "CMC_API_KEY"
)

// KeyEnv names the environment variables credentials are read from. Empty
// names are skipped.
type KeyEnv struct {
	Unhedged string
	CMC      string
	Proxy    string
}

// Load merges the TOML file at path (skipped when path is empty) onto
// Defaults, loads .env if present, applies QUESTBOT_* overrides and reads
// credentials from the variables named in keys. The result is not
// validated.
func Load(path string, keys KeyEnv) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			names := make([]string, len(undecoded))
			for i, k := range undecoded {
				names[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(names, ", "))
		}
	}

	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	applyKeyEnv(&cfg, keys)
	return &cfg, nil
}

func applyKeyEnv(cfg *Config, keys KeyEnv) {
	if keys.Unhedged != "" {
		setStr(&cfg.Unhedged.APIKey, keys.Unhedged)
	}
	if keys.CMC != "" {
		setStr(&cfg.PriceFeed.APIKey, keys.CMC)
	}
	if keys.Proxy != "" {
		setStringSlice(&cfg.Unhedged.Proxies, keys.Proxy)
	}
}

// applyEnvOverrides overwrites fields whose QUESTBOT_* variable is set and
// non-empty.
func applyEnvOverrides(cfg *Config) {
	// unhedged
	setStr(&cfg.Unhedged.BaseURL, "QUESTBOT_UNHEDGED_BASE_URL")
	setStr(&cfg.Unhedged.APIKey, "QUESTBOT_UNHEDGED_API_KEY")
	setStr(&cfg.Unhedged.APIKeyFile, "QUESTBOT_UNHEDGED_API_KEY_FILE")
	setStr(&cfg.Unhedged.APIKeyPassword, "QUESTBOT_UNHEDGED_API_KEY_PASSWORD")
	setStringSlice(&cfg.Unhedged.Proxies, "QUESTBOT_UNHEDGED_PROXIES")

	// price feed
	setStr(&cfg.PriceFeed.BaseURL, "QUESTBOT_PRICE_FEED_BASE_URL")
	setStr(&cfg.PriceFeed.APIKey, "QUESTBOT_PRICE_FEED_API_KEY")
	setStr(&cfg.PriceFeed.FallbackAsset, "QUESTBOT_PRICE_FEED_FALLBACK_ASSET")
	setDuration(&cfg.PriceFeed.CacheTTL, "QUESTBOT_PRICE_FEED_CACHE_TTL")

	// rate limit and retry
	setInt(&cfg.RateLimit.MaxRequestsPerMinute, "QUESTBOT_RATE_LIMIT_MAX_REQUESTS_PER_MINUTE")
	setInt(&cfg.RateLimit.BufferRequests, "QUESTBOT_RATE_LIMIT_BUFFER_REQUESTS")
	setDuration(&cfg.RateLimit.RetryAfter, "QUESTBOT_RATE_LIMIT_RETRY_AFTER")
	setBool(&cfg.ServerErrorRetry.Enabled, "QUESTBOT_SERVER_ERROR_RETRY_ENABLED")
	setInt(&cfg.ServerErrorRetry.MaxRetries, "QUESTBOT_SERVER_ERROR_RETRY_MAX_RETRIES")
	setDuration(&cfg.ServerErrorRetry.Wait, "QUESTBOT_SERVER_ERROR_RETRY_WAIT")

	// betting
	setDuration(&cfg.Betting.Window, "QUESTBOT_BETTING_WINDOW")
	setDuration(&cfg.Betting.Cooldown, "QUESTBOT_BETTING_COOLDOWN")
	setFloat64(&cfg.Betting.MajorityThreshold, "QUESTBOT_BETTING_MAJORITY_THRESHOLD")
	setFloat64(&cfg.Betting.MinPoolSize, "QUESTBOT_BETTING_MIN_POOL_SIZE")
	setFloat64(&cfg.Betting.MinPayout, "QUESTBOT_BETTING_MIN_PAYOUT")
	setBool(&cfg.Betting.UseAllBalance, "QUESTBOT_BETTING_USE_ALL_BALANCE")
	setInt(&cfg.Betting.MaxTotalBets, "QUESTBOT_BETTING_MAX_TOTAL_BETS")
	setBool(&cfg.Betting.DryRun, "QUESTBOT_BETTING_DRY_RUN")

	// redis
	setBool(&cfg.Redis.Enabled, "QUESTBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "QUESTBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "QUESTBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "QUESTBOT_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "QUESTBOT_REDIS_TLS_ENABLED")

	// postgres
	setBool(&cfg.Postgres.Enabled, "QUESTBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "QUESTBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "QUESTBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "QUESTBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "QUESTBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "QUESTBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "QUESTBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "QUESTBOT_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "QUESTBOT_POSTGRES_RUN_MIGRATIONS")

	// s3
	setBool(&cfg.S3.Enabled, "QUESTBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "QUESTBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "QUESTBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "QUESTBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "QUESTBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "QUESTBOT_S3_SECRET_KEY")

	// server
	setBool(&cfg.Server.Enabled, "QUESTBOT_SERVER_ENABLED")
	setStr(&cfg.Server.Addr, "QUESTBOT_SERVER_ADDR")
	setStr(&cfg.Server.APIKey, "QUESTBOT_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "QUESTBOT_SERVER_CORS_ORIGINS")

	// notify
	setStr(&cfg.Notify.TelegramToken, "QUESTBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "QUESTBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "QUESTBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "QUESTBOT_NOTIFY_EVENTS")

	// log
	setStr(&cfg.Log.Level, "QUESTBOT_LOG_LEVEL")
	setStr(&cfg.Log.Format, "QUESTBOT_LOG_FORMAT")
	setStr(&cfg.Log.File, "QUESTBOT_LOG_FILE")

	setStr(&cfg.Timezone, "QUESTBOT_TIMEZONE")
}

// Typed helpers. Each mutates dst only when the variable is set, non-empty
// and parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = n
	}
}

func setFloat64(dst *float64, key string) {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		*dst = f
	}
}

func setBool(dst *bool, key string) {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = b
	}
}

func setDuration(dst *duration, key string) {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		dst.Duration = d
	}
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
