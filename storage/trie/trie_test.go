package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"mpachain/storage"
)

func TestCommittedBlocksSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.NewLevelDB(dir)
	require.NoError(t, err)

	tr, err := NewTrie(db, nil)
	require.NoError(t, err)
	first := crypto.Keccak256([]byte("first"))
	second := crypto.Keccak256([]byte("second"))

	require.NoError(t, tr.Update(first, []byte("1")))
	root1, err := tr.Commit(common.Hash{}, 1)
	require.NoError(t, err)
	require.NoError(t, tr.Update(second, []byte("2")))
	root2, err := tr.Commit(root1, 2)
	require.NoError(t, err)
	require.NotEqual(t, root1, root2)
	db.Close()

	db, err = storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db.Close()

	atBlock1, err := NewTrie(db, root1.Bytes())
	require.NoError(t, err)
	got, err := atBlock1.Get(second)
	require.NoError(t, err)
	require.Empty(t, got)

	atBlock2, err := NewTrie(db, root2.Bytes())
	require.NoError(t, err)
	for key, want := range map[string][]byte{string(first): []byte("1"), string(second): []byte("2")} {
		got, err := atBlock2.Get([]byte(key))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestCommitWithoutWritesKeepsRoot(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	tr, err := NewTrie(db, nil)
	require.NoError(t, err)
	root, err := tr.Commit(common.Hash{}, 1)
	require.NoError(t, err)
	require.Equal(t, gethtypes.EmptyRootHash, root)

	require.NoError(t, tr.Update(crypto.Keccak256([]byte("k")), []byte("v")))
	root, err = tr.Commit(root, 2)
	require.NoError(t, err)
	again, err := tr.Commit(root, 3)
	require.NoError(t, err)
	require.Equal(t, root, again)
}

func TestOpenUnknownRootFails(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	_, err := NewTrie(db, crypto.Keccak256([]byte("missing")))
	require.Error(t, err)
}

func TestTrieResetDiscardsPendingChanges(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	tr, err := NewTrie(db, nil)
	require.NoError(t, err)

	committedKey := crypto.Keccak256([]byte("committed"))
	require.NoError(t, tr.Update(committedKey, []byte("a")))
	root, err := tr.Commit(common.Hash{}, 1)
	require.NoError(t, err)
	require.Equal(t, root, tr.Root())

	pendingKey := crypto.Keccak256([]byte("pending"))
	require.NoError(t, tr.Update(pendingKey, []byte("b")))
	require.NotEqual(t, root, tr.Hash())

	require.NoError(t, tr.Reset(root))
	require.Equal(t, root, tr.Hash())

	got, err := tr.Get(pendingKey)
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = tr.Get(committedKey)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), got)
}
