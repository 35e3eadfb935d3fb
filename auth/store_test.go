// auth/store_test.go
package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	session, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, session)

	saved := &Session{AccessToken: "at", RefreshToken: "rt"}
	require.NoError(t, store.Save(saved))

	session, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "at", session.AccessToken)

	require.NoError(t, store.Clear())
	session, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	session, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, session, "fresh store should be empty")

	saved := &Session{
		AccessToken:  "at-1",
		RefreshToken: "rt-1",
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		User:         User{ID: "user-1", Email: "ada@example.com", Role: "authenticated"},
	}
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved.AccessToken, loaded.AccessToken)
	assert.Equal(t, saved.User, loaded.User)
	assert.True(t, saved.ExpiresAt.Equal(loaded.ExpiresAt))

	// Save again overwrites the single row.
	saved.AccessToken = "at-2"
	require.NoError(t, store.Save(saved))
	loaded, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "at-2", loaded.AccessToken)

	require.NoError(t, store.Clear())
	loaded, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(&Session{
		AccessToken: "at", RefreshToken: "rt",
		ExpiresAt: time.Now().Add(time.Hour),
		User:      User{ID: "user-1"},
	}))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "user-1", loaded.User.ID)
}
