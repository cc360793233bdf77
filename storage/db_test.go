package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	_, err := db.Get([]byte("missing"))
	require.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	ok, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
	require.NotNil(t, db.TrieDB())
}

func TestLevelDBReopenKeepsValues(t *testing.T) {
	dir := t.TempDir()

	db, err := NewLevelDBWithOptions(dir, LevelDBOptions{CacheMB: 16, Handles: 64})
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("height"), []byte{0x01}))
	db.Close()

	reopened, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get([]byte("height"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, got)
}
