package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Enclave
	out.Enclave = cfg.Enclave
	redact(&out.Enclave.PrivateKey)
	redact(&out.Enclave.KeyPassword)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Server
	out.Server = cfg.Server
	redact(&out.Server.APIKey)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	if cfg.Game.Pairs != nil {
		out.Game.Pairs = make([]string, len(cfg.Game.Pairs))
		copy(out.Game.Pairs, cfg.Game.Pairs)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}
	if cfg.Pyth.Feeds != nil {
		out.Pyth.Feeds = make(map[string]string, len(cfg.Pyth.Feeds))
		for k, v := range cfg.Pyth.Feeds {
			out.Pyth.Feeds[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
