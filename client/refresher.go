package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/habedi/tokenflow/auth"
	"github.com/rs/zerolog/log"
)

// HTTPRefresher exchanges refresh tokens at an OAuth2-style token endpoint.
// It implements auth.RefreshTransport.
type HTTPRefresher struct {
	TokenURL   string
	ClientID   string // sent as client_id when set
	HTTPClient *http.Client
}

// NewHTTPRefresher creates an HTTPRefresher with a 30 second request timeout.
func NewHTTPRefresher(tokenURL string) *HTTPRefresher {
	return &HTTPRefresher{
		TokenURL:   tokenURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// tokenResponse accepts both the OAuth2 field names and their camelCase variants.
type tokenResponse struct {
	AccessToken       string `json:"access_token"`
	RefreshToken      string `json:"refresh_token"`
	AccessTokenCamel  string `json:"accessToken"`
	RefreshTokenCamel string `json:"refreshToken"`
	Error             string `json:"error"`
	ErrorDescription  string `json:"error_description"`
}

func (t tokenResponse) pair() auth.TokenPair {
	pair := auth.TokenPair{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
	if pair.AccessToken == "" {
		pair.AccessToken = t.AccessTokenCamel
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = t.RefreshTokenCamel
	}
	return pair
}

// Refresh posts the refresh token to the token endpoint. A 401/403 response or an
// invalid_grant error is reported as auth.ErrInvalidRefreshToken; everything else is a
// plain error the caller may retry.
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	if r.ClientID != "" {
		form.Set("client_id", r.ClientID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("failed to create token refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	httpClient := r.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	log.Debug().Str("url", r.TokenURL).Msg("Sending token refresh request")
	resp, err := httpClient.Do(req)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("failed to post form for token refresh: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("failed to read token refresh response: %w", err)
	}

	var result tokenResponse
	parseErr := json.Unmarshal(body, &result)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
		result.Error == "invalid_grant" {
		return auth.TokenPair{}, fmt.Errorf("%w: status %d %s", auth.ErrInvalidRefreshToken, resp.StatusCode,
			describe(result, body))
	}
	if resp.StatusCode >= 400 {
		return auth.TokenPair{}, fmt.Errorf("token refresh failed with status %d: %s", resp.StatusCode, describe(result, body))
	}
	if parseErr != nil {
		return auth.TokenPair{}, fmt.Errorf("failed to parse token refresh response: %w", parseErr)
	}
	if result.Error != "" {
		return auth.TokenPair{}, fmt.Errorf("token refresh API error: %s", describe(result, body))
	}
	return result.pair(), nil
}

func describe(result tokenResponse, body []byte) string {
	switch {
	case result.ErrorDescription != "":
		return result.ErrorDescription
	case result.Error != "":
		return result.Error
	default:
		return strings.TrimSpace(string(body))
	}
}
