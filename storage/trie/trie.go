package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"mpachain/storage"
)

// Trie is the ledger's state trie. It tracks the root of the last sealed
// block; mutations stay in memory until Commit and can be dropped with Reset.
//
// Callers hash keys themselves (keccak256). Not safe for concurrent use; the
// node serialises access behind its state lock.
type Trie struct {
	db   *triedb.Database
	live *gethtrie.Trie
	root common.Hash
}

// NewTrie opens the trie at root over store. An empty root opens an empty trie.
func NewTrie(store storage.Database, root []byte) (*Trie, error) {
	t := &Trie{db: store.TrieDB()}
	start := gethtypes.EmptyRootHash
	if len(root) > 0 {
		start = common.BytesToHash(root)
	}
	if err := t.open(start); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trie) open(root common.Hash) error {
	live, err := gethtrie.New(gethtrie.TrieID(root), t.db)
	if err != nil {
		return fmt.Errorf("trie: open %s: %w", root.Hex(), err)
	}
	t.live = live
	t.root = root
	return nil
}

func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.live.Get(key)
}

func (t *Trie) Update(key, value []byte) error {
	return t.live.Update(key, value)
}

// Hash includes uncommitted writes.
func (t *Trie) Hash() common.Hash {
	return t.live.Hash()
}

// Root is the last committed (or reset-to) root.
func (t *Trie) Root() common.Hash {
	return t.root
}

// Reset drops pending writes and reopens the trie at root. The node calls it
// when a transaction reverts.
func (t *Trie) Reset(root common.Hash) error {
	return t.open(root)
}

// Commit seals pending writes as the state of block number, flushes the
// dirty nodes to disk and reopens the trie at the new root.
func (t *Trie) Commit(parent common.Hash, number uint64) (common.Hash, error) {
	next, dirty := t.live.Commit(false)
	if dirty != nil {
		if err := t.persist(next, parent, number, dirty); err != nil {
			return common.Hash{}, err
		}
	}
	if err := t.open(next); err != nil {
		return common.Hash{}, err
	}
	return next, nil
}

func (t *Trie) persist(root, parent common.Hash, number uint64, dirty *trienode.NodeSet) error {
	nodes := trienode.NewMergedNodeSet()
	if err := nodes.Merge(dirty); err != nil {
		return fmt.Errorf("trie: merge nodes: %w", err)
	}
	if err := t.db.Update(root, parent, number, nodes, nil); err != nil {
		return fmt.Errorf("trie: update block %d: %w", number, err)
	}
	if err := t.db.Commit(root, false); err != nil {
		return fmt.Errorf("trie: commit block %d: %w", number, err)
	}
	return nil
}
