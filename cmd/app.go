package cmd

import (
	"context"
	"errors"

	"github.com/habedi/tokenflow/auth"
	"github.com/habedi/tokenflow/client"
	"github.com/habedi/tokenflow/db"
	"github.com/habedi/tokenflow/feed"
	"github.com/habedi/tokenflow/pkg/clierr"
	"github.com/rs/zerolog/log"
)

// app owns the resources opened by a command: the database, the optional Redis feed and the
// token manager built on top of them.
type app struct {
	settings settings
	manager  *auth.Manager
	redis    *feed.Redis
}

// open validates the settings and builds the token manager. It is safe to call more than once.
func (a *app) open(ctx context.Context) (*auth.Manager, error) {
	if a.manager != nil {
		return a.manager, nil
	}
	if err := a.settings.validate(); err != nil {
		return nil, clierr.New(clierr.Validation, err.Error(), err)
	}

	db.Path = a.settings.dbPath
	if err := db.InitDB(); err != nil {
		return nil, clierr.New(clierr.Internal, "failed to open the token database", err)
	}

	opts := auth.Options{
		Cookies:  db.NewCookieJar(db.GetDB()),
		Metadata: db.NewKeyValueStore(db.GetDB()),
		Config:   a.settings.authConfig(),
	}

	if a.settings.issuerURL != "" {
		refresher := client.NewHTTPRefresher(a.settings.issuerURL)
		refresher.ClientID = a.settings.clientID
		opts.Transport = refresher
	}

	if a.settings.redisAddr != "" {
		cfg := feed.DefaultRedisConfig()
		cfg.Addr = a.settings.redisAddr
		r, err := feed.NewRedis(ctx, cfg)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Addr).Msg("Redis is unavailable, token changes will not be shared")
		} else {
			a.redis = r
			opts.Feed = r
		}
	}

	a.manager = auth.NewManager(opts)
	return a.manager, nil
}

func (a *app) close() {
	if a.manager != nil {
		a.manager.Close()
		a.manager = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis feed")
		}
		a.redis = nil
	}
	if err := db.CloseDB(); err != nil {
		log.Error().Err(err).Msg("Failed to close the database")
	}
}

// tokenError turns a token manager error into a CLI error with an exit code.
func tokenError(err error) error {
	var cliErr *clierr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &cliErr):
		return err
	case auth.RequiresLogin(err):
		return clierr.New(clierr.Auth, "not logged in or session expired, run 'tokenflow login'", err)
	case auth.IsRetryable(err):
		return clierr.New(clierr.Retry, "token refresh failed, try again later: "+err.Error(), err)
	default:
		return clierr.New(clierr.Internal, err.Error(), err)
	}
}

func validationError(msg string) error {
	return clierr.New(clierr.Validation, msg, nil)
}
