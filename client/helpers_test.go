package client

import (
	"path/filepath"
	"testing"

	"github.com/habedi/tokenflow/auth"
	"github.com/habedi/tokenflow/db"
	"github.com/stretchr/testify/require"
)

// newTestManager builds a Manager on a throwaway sqlite database.
func newTestManager(t *testing.T, transport auth.RefreshTransport) *auth.Manager {
	t.Helper()
	db.Path = filepath.Join(t.TempDir(), "tokenflow.db")
	require.NoError(t, db.InitDB())
	t.Cleanup(func() { _ = db.CloseDB() })

	m := auth.NewManager(auth.Options{
		Cookies:   db.NewCookieJar(db.GetDB()),
		Metadata:  db.NewKeyValueStore(db.GetDB()),
		Transport: transport,
	})
	t.Cleanup(m.Close)
	return m
}
