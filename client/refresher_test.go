package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/habedi/tokenflow/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRefresher_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "def", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "cli", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new","refresh_token":"newref","expires_in":3600}`))
	}))
	defer server.Close()

	r := NewHTTPRefresher(server.URL)
	r.ClientID = "cli"
	pair, err := r.Refresh(context.Background(), "def")

	require.NoError(t, err)
	assert.Equal(t, auth.TokenPair{AccessToken: "new", RefreshToken: "newref"}, pair)
}

func TestHTTPRefresher_CamelCaseBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"accessToken":"new"}`))
	}))
	defer server.Close()

	pair, err := NewHTTPRefresher(server.URL).Refresh(context.Background(), "def")
	require.NoError(t, err)
	assert.Equal(t, "new", pair.AccessToken)
	assert.Empty(t, pair.RefreshToken)
}

func TestHTTPRefresher_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		invalid bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, true},
		{"forbidden", http.StatusForbidden, ``, true},
		{"invalid grant", http.StatusBadRequest, `{"error":"invalid_grant","error_description":"expired"}`, true},
		{"server error", http.StatusInternalServerError, `boom`, false},
		{"bad request", http.StatusBadRequest, `{"error":"invalid_request"}`, false},
		{"malformed body", http.StatusOK, `not json`, false},
		{"error in ok body", http.StatusOK, `{"error":"temporarily_unavailable"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewHTTPRefresher(server.URL).Refresh(context.Background(), "def")
			require.Error(t, err)
			assert.Equal(t, tt.invalid, errors.Is(err, auth.ErrInvalidRefreshToken))
		})
	}
}

func TestHTTPRefresher_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPRefresher(url).Refresh(context.Background(), "def")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrInvalidRefreshToken)
}
