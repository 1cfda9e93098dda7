package auth

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TokenKind distinguishes the two credentials held by the store.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

const bearerPrefix = "Bearer "

// TokenMetadata is the expiry bookkeeping persisted next to each token.
type TokenMetadata struct {
	ExpiresAt   time.Time
	Type        TokenKind
	LastRefresh time.Time
}

// metadataRecord is the JSON layout of TokenMetadata in the key/value store.
type metadataRecord struct {
	ExpiresAt   int64     `json:"expiresAt"`
	Type        TokenKind `json:"type"`
	LastRefresh *int64    `json:"lastRefresh,omitempty"`
}

// NormalizeBearer returns the token with exactly one "Bearer " prefix.
func NormalizeBearer(token string) string {
	raw := StripBearer(token)
	if raw == "" {
		return ""
	}
	return bearerPrefix + raw
}

// StripBearer removes a leading "Bearer " prefix (case-insensitive) and surrounding space.
func StripBearer(token string) string {
	token = strings.TrimSpace(token)
	if len(token) >= len(bearerPrefix) && strings.EqualFold(token[:len(bearerPrefix)], bearerPrefix) {
		token = strings.TrimSpace(token[len(bearerPrefix):])
	}
	return token
}

// Store is the durable holder of the token pair and its expiry metadata. It is the only writer
// of the two storage capabilities; storage failures are logged and read as "absent".
type Store struct {
	mu       sync.RWMutex
	cookies  SecureStorage
	metadata MetadataStorage
	feed     ChangeFeed
	clock    Clock
	cfg      Config
}

// NewStore creates a Store. The feed may be nil.
func NewStore(cookies SecureStorage, metadata MetadataStorage, feed ChangeFeed, clock Clock, cfg Config) *Store {
	if clock == nil {
		clock = SystemClock()
	}
	return &Store{
		cookies:  cookies,
		metadata: metadata,
		feed:     feed,
		clock:    clock,
		cfg:      cfg.withDefaults(),
	}
}

// SetTokens writes the access token (and the refresh token when given) together with freshly
// computed metadata. It returns the normalized access token.
func (s *Store) SetTokens(accessToken, refreshToken string) string {
	token, changes := s.setTokens(accessToken, refreshToken)
	s.publish(context.Background(), changes)
	return token
}

// setTokens writes the tokens and returns the changes still to be published.
func (s *Store) setTokens(accessToken, refreshToken string) (string, []Change) {
	ctx := context.Background()

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	var changes []Change

	access := NormalizeBearer(accessToken)
	if access == "" {
		// No token means no metadata vouching for one.
		changes = s.remove(ctx, changes, AccessTokenCookie, AccessMetadataKey)
	} else {
		changes = s.write(ctx, changes, AccessTokenCookie, AccessMetadataKey, access, metadataRecord{
			ExpiresAt: now.Add(s.cfg.AccessTTL).UnixMilli(),
			Type:      AccessToken,
		})
	}

	if refresh := NormalizeBearer(refreshToken); refresh != "" {
		lastRefresh := now.UnixMilli()
		changes = s.write(ctx, changes, RefreshTokenCookie, RefreshMetadataKey, refresh, metadataRecord{
			ExpiresAt:   now.Add(s.cfg.RefreshTTL).UnixMilli(),
			Type:        RefreshToken,
			LastRefresh: &lastRefresh,
		})
	}

	log.Debug().Str("token", preview(access)).Msg("Tokens stored")
	return access, changes
}

func (s *Store) write(ctx context.Context, changes []Change, cookie, key, value string, meta metadataRecord) []Change {
	opts := CookieOptions{
		Path:     s.cfg.CookiePath,
		Expires:  time.UnixMilli(meta.ExpiresAt),
		Secure:   s.cfg.SecureCookies,
		SameSite: s.cfg.SameSite,
		HTTPOnly: s.cfg.HTTPOnlyCookie,
	}
	if err := s.cookies.Set(ctx, cookie, value, opts); err != nil {
		log.Warn().Err(err).Str("cookie", cookie).Msg("Failed to store token")
		return changes
	}

	data, err := json.Marshal(meta)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to encode token metadata")
		return changes
	}
	if err := s.metadata.SetItem(ctx, key, string(data)); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to store token metadata")
		return changes
	}
	return append(changes, Change{Key: key, Value: string(data)})
}

// GetToken returns the stored access token or "" when there is none.
func (s *Store) GetToken() string {
	return s.read(AccessTokenCookie)
}

// GetRefreshToken returns the stored refresh token or "" when there is none.
func (s *Store) GetRefreshToken() string {
	return s.read(RefreshTokenCookie)
}

func (s *Store) read(cookie string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, err := s.cookies.Get(context.Background(), cookie)
	if err != nil {
		log.Warn().Err(err).Str("cookie", cookie).Msg("Failed to read token, treating it as absent")
		return ""
	}
	return value
}

// Metadata returns the expiry bookkeeping of the given token kind.
func (s *Store) Metadata(kind TokenKind) (TokenMetadata, bool) {
	key := AccessMetadataKey
	if kind == RefreshToken {
		key = RefreshMetadataKey
	}

	s.mu.RLock()
	raw, err := s.metadata.GetItem(context.Background(), key)
	s.mu.RUnlock()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to read token metadata, treating it as absent")
		return TokenMetadata{}, false
	}
	if raw == "" {
		return TokenMetadata{}, false
	}

	var rec metadataRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.ExpiresAt == 0 {
		log.Warn().Err(err).Str("key", key).Msg("Corrupted token metadata, treating it as absent")
		return TokenMetadata{}, false
	}

	meta := TokenMetadata{ExpiresAt: time.UnixMilli(rec.ExpiresAt), Type: rec.Type}
	if rec.LastRefresh != nil {
		meta.LastRefresh = time.UnixMilli(*rec.LastRefresh)
	}
	return meta, true
}

// IsTokenExpired reports whether the access token is expired or will be within threshold.
// Missing metadata counts as expired.
func (s *Store) IsTokenExpired(threshold time.Duration) bool {
	meta, ok := s.Metadata(AccessToken)
	if !ok {
		return true
	}
	return !s.clock.Now().Add(threshold).Before(meta.ExpiresAt)
}

// ShouldRefreshToken reports whether the access token is near expiry.
func (s *Store) ShouldRefreshToken() bool {
	return s.IsTokenExpired(s.cfg.RefreshThreshold)
}

// Clear removes both credentials and both metadata records.
func (s *Store) Clear() {
	s.publish(context.Background(), s.clear())
}

// clear removes everything and returns the changes still to be published.
func (s *Store) clear() []Change {
	ctx := context.Background()
	var changes []Change

	s.mu.Lock()
	defer s.mu.Unlock()
	changes = s.remove(ctx, changes, AccessTokenCookie, AccessMetadataKey)
	changes = s.remove(ctx, changes, RefreshTokenCookie, RefreshMetadataKey)

	log.Debug().Msg("Tokens cleared")
	return changes
}

func (s *Store) remove(ctx context.Context, changes []Change, cookie, key string) []Change {
	if err := s.cookies.Remove(ctx, cookie); err != nil {
		log.Warn().Err(err).Str("cookie", cookie).Msg("Failed to remove token")
	}
	if err := s.metadata.RemoveItem(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to remove token metadata")
		return changes
	}
	return append(changes, Change{Key: key, Removed: true})
}

// publish runs outside every lock: feed subscribers read their own stores synchronously.
func (s *Store) publish(ctx context.Context, changes []Change) {
	if s.feed == nil {
		return
	}
	for _, change := range changes {
		if err := s.feed.Publish(ctx, change); err != nil {
			log.Warn().Err(err).Str("key", change.Key).Msg("Failed to publish storage change")
		}
	}
}

// preview returns a short, log-safe prefix of a token.
func preview(token string) string {
	raw := StripBearer(token)
	if len(raw) > 6 {
		return raw[:6] + "..."
	}
	return raw
}
