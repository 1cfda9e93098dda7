package auth

import "time"

// Storage keys shared by every execution context that uses the same storage.
const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	AccessMetadataKey  = "tokenflow.access_token.meta"
	RefreshMetadataKey = "tokenflow.refresh_token.meta"
)

// Config holds the token lifecycle policy.
type Config struct {
	AccessTTL        time.Duration // lifetime assumed for a freshly issued access token
	RefreshTTL       time.Duration // lifetime assumed for a freshly issued refresh token
	RefreshThreshold time.Duration // how close to expiry a token counts as "near expiry"
	Cooldown         time.Duration // minimum wait after a failed refresh

	CookiePath     string
	SecureCookies  bool
	SameSite       string
	HTTPOnlyCookie bool
}

// DefaultConfig returns the default token policy.
func DefaultConfig() Config {
	return Config{
		AccessTTL:        time.Hour,
		RefreshTTL:       7 * 24 * time.Hour,
		RefreshThreshold: 5 * time.Minute,
		Cooldown:         5 * time.Second,
		CookiePath:       "/",
		SecureCookies:    true,
		SameSite:         "Strict",
		HTTPOnlyCookie:   false,
	}
}

// withDefaults returns DefaultConfig for a zero Config and otherwise fills in missing values.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c == (Config{}) {
		return d
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = d.AccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = d.RefreshTTL
	}
	if c.RefreshThreshold < 0 {
		c.RefreshThreshold = d.RefreshThreshold
	}
	if c.Cooldown < 0 {
		c.Cooldown = d.Cooldown
	}
	if c.CookiePath == "" {
		c.CookiePath = d.CookiePath
	}
	if c.SameSite == "" {
		c.SameSite = d.SameSite
	}
	return c
}
