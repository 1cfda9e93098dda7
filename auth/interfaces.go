package auth

import (
	"context"
	"time"
)

// SecureStorage defines the contract for the cookie-like store that holds token values.
type SecureStorage interface {
	Get(ctx context.Context, name string) (string, error)
	Set(ctx context.Context, name, value string, opts CookieOptions) error
	Remove(ctx context.Context, name string) error
}

// MetadataStorage defines the contract for the key/value store that holds expiry bookkeeping.
// A missing key is reported as ("", nil).
type MetadataStorage interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// RefreshTransport defines the contract for any component that can exchange a refresh token
// for a new token pair. It must return an error wrapping ErrInvalidRefreshToken when the
// issuer rejected the credential itself.
type RefreshTransport interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// ChangeFeed carries storage mutations between execution contexts that share the same storage.
// A feed never delivers a change back to the endpoint that published it.
type ChangeFeed interface {
	Subscribe(key string, fn func(Change)) (unsubscribe func())
	Publish(ctx context.Context, change Change) error
}

// Clock is the time source used for all expiry and cooldown arithmetic.
type Clock interface {
	Now() time.Time
}

// TokenPair is the result of a successful refresh. RefreshToken is empty when the issuer did
// not rotate the refresh credential.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Change describes a mutation of one storage key.
type Change struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Removed bool   `json:"removed,omitempty"`
	Origin  string `json:"origin,omitempty"`
}

// CookieOptions mirrors the attributes of a browser cookie.
type CookieOptions struct {
	Path     string
	Expires  time.Time
	Secure   bool
	SameSite string
	HTTPOnly bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
