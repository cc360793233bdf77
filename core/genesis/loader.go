package genesis

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"mpachain/core/state"
	"mpachain/core/types"
	"mpachain/crypto"
	"mpachain/storage"
	"mpachain/storage/trie"
)

// Build writes the genesis state into db and returns the genesis block along
// with the development keys it funded.
func Build(spec *Spec, db storage.Database) (*types.Block, []*crypto.PrivateKey, error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}
	if db == nil {
		return nil, nil, fmt.Errorf("database must not be nil")
	}

	stateTrie, err := trie.NewTrie(db, nil)
	if err != nil {
		return nil, nil, err
	}
	manager := state.NewManager(stateTrie)

	// 1) Development accounts in index order
	keys, err := spec.DevKeys()
	if err != nil {
		return nil, nil, err
	}
	devBalance := EtherToWei(spec.BalanceEther)
	for i, key := range keys {
		addr := key.PubKey().Address().Array()
		if err := manager.AddBalance(addr, devBalance); err != nil {
			return nil, nil, fmt.Errorf("fund dev account %d: %w", i, err)
		}
	}

	// 2) Explicit allocations, sorted for a deterministic root
	allocAddresses := make([]string, 0, len(spec.Alloc))
	for addr := range spec.Alloc {
		allocAddresses = append(allocAddresses, addr)
	}
	sort.Strings(allocAddresses)
	for _, addrStr := range allocAddresses {
		parsed, err := crypto.ParseAddress(addrStr)
		if err != nil {
			return nil, nil, fmt.Errorf("alloc[%q]: %w", addrStr, err)
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(spec.Alloc[addrStr]), 10)
		if !ok || amount.Sign() < 0 {
			return nil, nil, fmt.Errorf("alloc[%q]: invalid amount %q", addrStr, spec.Alloc[addrStr])
		}
		if err := manager.AddBalance(parsed.Array(), amount); err != nil {
			return nil, nil, fmt.Errorf("alloc[%q]: %w", addrStr, err)
		}
	}

	// 3) Commit and set StateRoot
	newRoot, err := stateTrie.Commit(gethtypes.EmptyRootHash, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("commit state: %w", err)
	}
	header := &types.BlockHeader{
		Height:    0,
		Timestamp: spec.Timestamp,
		PrevHash:  []byte{},
		StateRoot: newRoot.Bytes(),
		TxRoot:    gethtypes.EmptyRootHash.Bytes(),
	}
	return types.NewBlock(header, nil), keys, nil
}
