package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

var errEmptyAccessToken = errors.New("issuer returned an empty access token")

// refreshCall is the shared outcome of one in-flight refresh.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

func (c *refreshCall) wait(ctx context.Context) (string, error) {
	select {
	case <-c.done:
		return c.token, c.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RefreshState is a snapshot of the refresh coordinator.
type RefreshState struct {
	Refreshing        bool
	LastFailure       time.Time
	CooldownRemaining time.Duration
}

// RefreshState returns the coordinator's current state.
func (m *Manager) RefreshState() RefreshState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := RefreshState{Refreshing: m.call != nil, LastFailure: m.lastFailure}
	if !m.lastFailure.IsZero() {
		if remaining := m.cfg.Cooldown - m.clock.Now().Sub(m.lastFailure); remaining > 0 {
			state.CooldownRemaining = remaining
		}
	}
	return state
}

// StartTokenRefresh exchanges the refresh token for a new token pair and returns the new
// access token. Concurrent callers share a single exchange. Within the cooldown window after a
// failed exchange it fails with a *CooldownError without contacting the issuer.
//
// Cancelling ctx stops the wait, not the exchange itself.
func (m *Manager) StartTokenRefresh(ctx context.Context) (string, error) {
	call, err := m.beginRefresh(ctx)
	if err != nil {
		return "", err
	}
	return call.wait(ctx)
}

// beginRefresh joins the in-flight refresh or starts a new one. When it returns a call, the
// gate is already closed.
func (m *Manager) beginRefresh(ctx context.Context) (*refreshCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beginRefreshLocked(ctx)
}

// beginRefreshLocked must be called with m.mu held.
func (m *Manager) beginRefreshLocked(ctx context.Context) (*refreshCall, error) {
	if m.call != nil {
		return m.call, nil
	}

	if !m.lastFailure.IsZero() {
		if elapsed := m.clock.Now().Sub(m.lastFailure); elapsed < m.cfg.Cooldown {
			remaining := m.cfg.Cooldown - elapsed
			log.Debug().Dur("remaining", remaining).Msg("Token refresh is cooling down")
			return nil, &CooldownError{Remaining: remaining}
		}
	}

	refreshToken := StripBearer(m.store.GetRefreshToken())
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	if m.transport == nil {
		return nil, fmt.Errorf("%w: no refresh transport configured", ErrTransientRefresh)
	}

	call := &refreshCall{done: make(chan struct{})}
	m.call = call
	m.gate.Begin()
	go m.runRefresh(context.WithoutCancel(ctx), call, refreshToken, m.epoch)
	return call, nil
}

func (m *Manager) runRefresh(ctx context.Context, call *refreshCall, refreshToken string, epoch uint64) {
	log.Info().Msg("Refreshing access token")

	pair, err := m.transport.Refresh(ctx, refreshToken)
	if err == nil && StripBearer(pair.AccessToken) == "" {
		err = errEmptyAccessToken
	}
	if err != nil && !errors.Is(err, ErrInvalidRefreshToken) && !errors.Is(err, ErrTransientRefresh) {
		err = fmt.Errorf("%w: %w", ErrTransientRefresh, err)
	}

	var (
		token      string
		changes    []Change
		superseded bool
		invalid    bool
	)

	m.mu.Lock()
	m.call = nil
	switch {
	case m.epoch != epoch:
		// SetTokens or ClearTokens ran during the exchange and already settled the gate. The
		// newer state wins whatever the issuer answered.
		superseded = true
		if token = m.store.GetToken(); token == "" {
			err = ErrAuthenticationCleared
		} else {
			err = nil
			m.lastFailure = time.Time{}
		}
	case err != nil:
		m.gate.Reject(err)
		if invalid = errors.Is(err, ErrInvalidRefreshToken); invalid {
			changes = m.clearLocked()
		}
		m.lastFailure = m.clock.Now()
	default:
		token, changes = m.applyTokens(pair.AccessToken, pair.RefreshToken)
		m.lastFailure = time.Time{}
	}
	m.mu.Unlock()

	switch {
	case superseded:
		log.Info().Bool("cleared", token == "").Msg("Tokens changed during refresh, discarding the new pair")
	case invalid:
		log.Warn().Err(err).Msg("Refresh token rejected, tokens cleared")
		m.announce("", changes)
	case err != nil:
		log.Warn().Err(err).Msg("Token refresh failed")
	default:
		log.Info().Str("token", preview(token)).Msg("Access token refreshed")
		m.announce(token, changes)
	}

	call.token, call.err = token, err
	close(call.done)
}

// GetValidAccessToken returns the stored access token when it is not near expiry and refreshes
// it otherwise. When the session cannot be recovered the tokens are cleared before the error
// is returned.
func (m *Manager) GetValidAccessToken(ctx context.Context) (string, error) {
	if token := m.store.GetToken(); token != "" && !m.store.ShouldRefreshToken() {
		return token, nil
	}

	token, err := m.StartTokenRefresh(ctx)
	if err != nil {
		if errors.Is(err, ErrNoRefreshToken) {
			m.ClearTokens()
		}
		return "", err
	}
	return token, nil
}

// RetryUnauthorized handles a request that came back 401 after being sent with usedToken. If
// the stored token has changed since, the request is replayed straight away. Otherwise a
// refresh is started (or joined) and the request is replayed once it succeeds.
func (m *Manager) RetryUnauthorized(ctx context.Context, usedToken string, replay Replay) (*http.Response, error) {
	if current := m.store.GetToken(); current != "" && current != NormalizeBearer(usedToken) {
		log.Debug().Msg("Token changed since the request was sent, replaying")
		return m.QueueRequest(ctx, replay)
	}

	// Enqueue under m.mu so the request belongs to this refresh, which cannot settle before
	// the lock is released.
	m.mu.Lock()
	call, err := m.beginRefreshLocked(ctx)
	var entry *queueEntry
	if err == nil {
		entry = m.gate.enqueue(ctx, replay)
	}
	m.mu.Unlock()

	if err != nil {
		if errors.Is(err, ErrNoRefreshToken) {
			m.ClearTokens()
		}
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if entry != nil {
		return entry.wait(ctx)
	}

	// The gate was opened by ClearTokens while the refresh is still running.
	if _, err := call.wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return m.QueueRequest(ctx, replay)
}
