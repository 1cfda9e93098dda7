package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/habedi/tokenflow/auth"
	"github.com/habedi/tokenflow/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ auth.SecureStorage = (*db.CookieJar)(nil)

func TestCookieJarSetGetRemove(t *testing.T) {
	setupTestDB(t)
	jar := db.NewCookieJar(db.GetDB())
	ctx := context.Background()

	value, err := jar.Get(ctx, "access_token")
	require.NoError(t, err)
	assert.Empty(t, value, "missing cookie reads as empty")

	opts := auth.CookieOptions{Path: "/", Expires: time.Now().Add(time.Hour), Secure: true, SameSite: "Strict"}
	require.NoError(t, jar.Set(ctx, "access_token", "Bearer abc", opts))

	value, err = jar.Get(ctx, "access_token")
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", value)

	require.NoError(t, jar.Set(ctx, "access_token", "Bearer xyz", opts))
	value, err = jar.Get(ctx, "access_token")
	require.NoError(t, err)
	assert.Equal(t, "Bearer xyz", value, "Set overwrites an existing cookie")

	cookies, err := jar.List(ctx)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "/", cookies[0].Path)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, "Strict", cookies[0].SameSite)

	require.NoError(t, jar.Remove(ctx, "access_token"))
	value, err = jar.Get(ctx, "access_token")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestCookieJarExpiredCookieReadsAsAbsent(t *testing.T) {
	setupTestDB(t)
	jar := db.NewCookieJar(db.GetDB())
	ctx := context.Background()

	opts := auth.CookieOptions{Path: "/", Expires: time.Now().Add(-time.Minute)}
	require.NoError(t, jar.Set(ctx, "refresh_token", "Bearer old", opts))

	value, err := jar.Get(ctx, "refresh_token")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestCookieJarSessionCookieNeverExpires(t *testing.T) {
	setupTestDB(t)
	jar := db.NewCookieJar(db.GetDB())
	ctx := context.Background()

	require.NoError(t, jar.Set(ctx, "session", "s1", auth.CookieOptions{}))
	value, err := jar.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, "s1", value)
}

func TestCookieJarNotInitialized(t *testing.T) {
	jar := db.NewCookieJar(nil)
	_, err := jar.Get(context.Background(), "x")
	assert.Error(t, err)
	assert.Error(t, jar.Set(context.Background(), "x", "y", auth.CookieOptions{}))
	assert.Error(t, jar.Remove(context.Background(), "x"))
}
