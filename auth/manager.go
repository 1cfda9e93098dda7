// Package auth manages the lifecycle of a bearer access/refresh token pair on the client side.
//
// A Manager owns four cooperating parts:
//   - Store keeps the tokens in a cookie-like SecureStorage and their expiry metadata in a
//     key/value MetadataStorage.
//   - Notifier tells subscribers about new or cleared tokens, including changes made by other
//     processes that share the same storage (through a ChangeFeed).
//   - the refresh coordinator (StartTokenRefresh) keeps at most one refresh in flight and backs
//     off for a cooldown window after a failure.
//   - Gate queues authenticated requests while a refresh is running and replays or rejects them
//     once it settles.
//
// Construct one Manager per process and pass it to whatever needs a token.
package auth

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Options wires a Manager to its collaborators. Feed and Clock are optional.
type Options struct {
	Cookies   SecureStorage
	Metadata  MetadataStorage
	Transport RefreshTransport
	Feed      ChangeFeed
	Clock     Clock
	Config    Config
}

// Manager is the authoritative view of the token state for one process.
type Manager struct {
	store     *Store
	notifier  *Notifier
	gate      *Gate
	transport RefreshTransport
	clock     Clock
	cfg       Config

	mu          sync.Mutex
	call        *refreshCall // non-nil while a refresh is in flight
	lastFailure time.Time
	epoch       uint64 // incremented by SetTokens and ClearTokens

	stopWatch func()
}

// NewManager builds a Manager and starts listening to opts.Feed, if any.
func NewManager(opts Options) *Manager {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	cfg := opts.Config.withDefaults()

	m := &Manager{
		store:     NewStore(opts.Cookies, opts.Metadata, opts.Feed, clock, cfg),
		notifier:  NewNotifier(),
		gate:      NewGate(),
		transport: opts.Transport,
		clock:     clock,
		cfg:       cfg,
	}
	m.stopWatch = m.notifier.Watch(opts.Feed, m.store.GetToken)
	return m
}

// Close stops listening to the change feed.
func (m *Manager) Close() {
	m.stopWatch()
}

// Config returns the effective token policy.
func (m *Manager) Config() Config {
	return m.cfg
}

// SetTokens stores a new token pair, replays requests waiting for a token and notifies
// subscribers. It returns the normalized access token.
//
// A refresh still in flight does not overwrite this pair: its callers get the token stored here.
func (m *Manager) SetTokens(accessToken, refreshToken string) string {
	m.mu.Lock()
	token, changes := m.applyTokens(accessToken, refreshToken)
	m.epoch++
	m.mu.Unlock()

	m.announce(token, changes)
	return token
}

// applyTokens must be called with m.mu held.
func (m *Manager) applyTokens(accessToken, refreshToken string) (string, []Change) {
	token, changes := m.store.setTokens(accessToken, refreshToken)
	if token == "" {
		m.gate.Reject(ErrAuthenticationCleared)
	} else {
		m.gate.Resolve(token)
	}
	return token, changes
}

// announce publishes storage changes to other contexts and notifies local subscribers. It must
// be called without m.mu held.
func (m *Manager) announce(token string, changes []Change) {
	m.store.publish(context.Background(), changes)
	m.notifier.Notify(token)
}

// ClearTokens logs out: it removes all tokens and metadata, rejects queued requests with
// ErrAuthenticationCleared, resets the refresh state and notifies subscribers with "".
func (m *Manager) ClearTokens() {
	m.mu.Lock()
	changes := m.clearLocked()
	m.lastFailure = time.Time{}
	m.mu.Unlock()

	m.announce("", changes)
}

// clearLocked must be called with m.mu held.
func (m *Manager) clearLocked() []Change {
	changes := m.store.clear()
	m.gate.Reject(ErrAuthenticationCleared)
	m.epoch++
	return changes
}

// GetToken returns the stored access token, or "" when logged out.
func (m *Manager) GetToken() string { return m.store.GetToken() }

// GetRefreshToken returns the stored refresh token, or "".
func (m *Manager) GetRefreshToken() string { return m.store.GetRefreshToken() }

// IsTokenExpired reports whether the access token expires within threshold.
func (m *Manager) IsTokenExpired(threshold time.Duration) bool {
	return m.store.IsTokenExpired(threshold)
}

// ShouldRefreshToken reports whether the access token is near expiry.
func (m *Manager) ShouldRefreshToken() bool { return m.store.ShouldRefreshToken() }

// Metadata returns the stored expiry bookkeeping for kind.
func (m *Manager) Metadata(kind TokenKind) (TokenMetadata, bool) { return m.store.Metadata(kind) }

// OnTokenChange subscribes fn to token changes.
func (m *Manager) OnTokenChange(fn ChangeFunc) (unsubscribe func()) {
	return m.notifier.OnTokenChange(fn)
}

// QueueRequest runs replay now, or after the in-flight refresh succeeds.
func (m *Manager) QueueRequest(ctx context.Context, replay Replay) (*http.Response, error) {
	return m.gate.Do(ctx, m.store.GetToken, replay)
}

// PendingRequests returns the number of requests waiting for a refresh.
func (m *Manager) PendingRequests() int { return m.gate.Pending() }
