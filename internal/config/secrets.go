package config

import "slices"

const redacted = "***"

// RedactedConfig returns a copy of cfg safe to log: credentials are replaced
// by "***" and slices are cloned so the copy cannot alias the original.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Unhedged.APIKey)
	redact(&out.Unhedged.APIKeyPassword)
	redact(&out.PriceFeed.APIKey)
	redact(&out.Redis.Password)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Proxy URLs may embed credentials.
	out.Unhedged.Proxies = make([]string, len(cfg.Unhedged.Proxies))
	for i := range out.Unhedged.Proxies {
		out.Unhedged.Proxies[i] = redacted
	}
	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
