package cmd

import (
	"os"
	"time"

	"github.com/habedi/tokenflow/auth"
	"github.com/habedi/tokenflow/db"
	"github.com/habedi/tokenflow/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// settings holds the configuration shared by every command. Flags default to the
// TOKENFLOW_* environment variables, which may come from a .env file.
type settings struct {
	dbPath    string
	issuerURL string
	clientID  string
	redisAddr string

	accessTTL  time.Duration
	refreshTTL time.Duration
	threshold  time.Duration
	cooldown   time.Duration
}

func defaultSettings() settings {
	d := auth.DefaultConfig()
	return settings{
		dbPath:     envOr("TOKENFLOW_DB", db.Path),
		issuerURL:  envOr("TOKENFLOW_ISSUER_URL", ""),
		clientID:   envOr("TOKENFLOW_CLIENT_ID", ""),
		redisAddr:  envOr("TOKENFLOW_REDIS_ADDR", ""),
		accessTTL:  envDuration("TOKENFLOW_ACCESS_TTL", d.AccessTTL),
		refreshTTL: envDuration("TOKENFLOW_REFRESH_TTL", d.RefreshTTL),
		threshold:  envDuration("TOKENFLOW_REFRESH_THRESHOLD", d.RefreshThreshold),
		cooldown:   envDuration("TOKENFLOW_COOLDOWN", d.Cooldown),
	}
}

func (s *settings) bindFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&s.dbPath, "db", s.dbPath, "Path to the token database [TOKENFLOW_DB]")
	flags.StringVar(&s.issuerURL, "issuer", s.issuerURL, "Token endpoint used to refresh tokens [TOKENFLOW_ISSUER_URL]")
	flags.StringVar(&s.clientID, "client-id", s.clientID, "OAuth client ID sent with refresh requests [TOKENFLOW_CLIENT_ID]")
	flags.StringVar(&s.redisAddr, "redis", s.redisAddr, "Redis address used to share token changes between processes [TOKENFLOW_REDIS_ADDR]")
	flags.DurationVar(&s.accessTTL, "access-ttl", s.accessTTL, "Lifetime assumed for a new access token [TOKENFLOW_ACCESS_TTL]")
	flags.DurationVar(&s.refreshTTL, "refresh-ttl", s.refreshTTL, "Lifetime assumed for a new refresh token [TOKENFLOW_REFRESH_TTL]")
	flags.DurationVar(&s.threshold, "threshold", s.threshold, "Refresh access tokens this long before they expire [TOKENFLOW_REFRESH_THRESHOLD]")
	flags.DurationVar(&s.cooldown, "cooldown", s.cooldown, "Wait this long after a failed refresh before trying again [TOKENFLOW_COOLDOWN]")
}

func (s settings) validate() error {
	if err := validation.ValidateNonEmptyString("database path", s.dbPath); err != nil {
		return err
	}
	if s.issuerURL != "" {
		if err := validation.ValidateHTTPURL("issuer URL", s.issuerURL); err != nil {
			return err
		}
	}
	if err := validation.ValidatePositiveDuration("access token lifetime", s.accessTTL); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDuration("refresh token lifetime", s.refreshTTL); err != nil {
		return err
	}
	if err := validation.ValidateThreshold(s.threshold, s.accessTTL); err != nil {
		return err
	}
	return validation.ValidateNonNegativeDuration("cooldown", s.cooldown)
}

func (s settings) authConfig() auth.Config {
	cfg := auth.DefaultConfig()
	cfg.AccessTTL = s.accessTTL
	cfg.RefreshTTL = s.refreshTTL
	cfg.RefreshThreshold = s.threshold
	cfg.Cooldown = s.cooldown
	return cfg
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Err(err).Str("variable", key).Msg("Ignoring invalid duration")
		return fallback
	}
	return d
}
