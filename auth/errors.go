package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoRefreshToken means there is no refresh credential to exchange. Not retryable.
	ErrNoRefreshToken = errors.New("no refresh token available")
	// ErrRefreshCooldown means a refresh failed recently and no new attempt is made yet.
	ErrRefreshCooldown = errors.New("token refresh is cooling down")
	// ErrInvalidRefreshToken means the issuer rejected the refresh credential. Not retryable.
	ErrInvalidRefreshToken = errors.New("refresh token rejected by issuer")
	// ErrTransientRefresh means the refresh failed for reasons unrelated to the credential.
	ErrTransientRefresh = errors.New("token refresh failed")
	// ErrAuthenticationCleared is returned to requests queued while the tokens were cleared.
	ErrAuthenticationCleared = errors.New("authentication cleared")
	// ErrAuthentication wraps every rejection produced by the request gate.
	ErrAuthentication = errors.New("authentication failed")
)

// CooldownError is returned while the post-failure cooldown window is active.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrRefreshCooldown, e.Remaining.Round(time.Millisecond))
}

func (e *CooldownError) Unwrap() error { return ErrRefreshCooldown }

// IsRetryable reports whether the failure may succeed if the caller tries again later.
func IsRetryable(err error) bool {
	if err == nil || RequiresLogin(err) {
		return false
	}
	return errors.Is(err, ErrRefreshCooldown) || errors.Is(err, ErrTransientRefresh)
}

// RequiresLogin reports whether the caller has to authenticate again.
func RequiresLogin(err error) bool {
	return errors.Is(err, ErrInvalidRefreshToken) ||
		errors.Is(err, ErrNoRefreshToken) ||
		errors.Is(err, ErrAuthenticationCleared)
}
