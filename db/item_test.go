package db_test

import (
	"context"
	"testing"

	"github.com/habedi/tokenflow/auth"
	"github.com/habedi/tokenflow/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ auth.MetadataStorage = (*db.KeyValueStore)(nil)

func TestKeyValueStoreRoundTrip(t *testing.T) {
	setupTestDB(t)
	store := db.NewKeyValueStore(db.GetDB())
	ctx := context.Background()

	value, err := store.GetItem(ctx, auth.AccessMetadataKey)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, store.SetItem(ctx, auth.AccessMetadataKey, `{"expiresAt":1}`))
	require.NoError(t, store.SetItem(ctx, auth.AccessMetadataKey, `{"expiresAt":2}`))

	value, err = store.GetItem(ctx, auth.AccessMetadataKey)
	require.NoError(t, err)
	assert.Equal(t, `{"expiresAt":2}`, value)

	require.NoError(t, store.RemoveItem(ctx, auth.AccessMetadataKey))
	require.NoError(t, store.RemoveItem(ctx, auth.AccessMetadataKey), "removing a missing key is not an error")

	value, err = store.GetItem(ctx, auth.AccessMetadataKey)
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestSharedDatabaseBacksTwoManagers(t *testing.T) {
	setupTestDB(t)

	newManager := func() *auth.Manager {
		return auth.NewManager(auth.Options{
			Cookies:  db.NewCookieJar(db.GetDB()),
			Metadata: db.NewKeyValueStore(db.GetDB()),
		})
	}
	first, second := newManager(), newManager()
	defer first.Close()
	defer second.Close()

	first.SetTokens("abc", "def")
	assert.Equal(t, "Bearer abc", second.GetToken())
	assert.Equal(t, "Bearer def", second.GetRefreshToken())
	assert.False(t, second.ShouldRefreshToken())

	second.ClearTokens()
	assert.Empty(t, first.GetToken())
	assert.True(t, first.IsTokenExpired(0))
}
