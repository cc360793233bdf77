package core

import (
	"bytes"
	"fmt"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	gethtrie "github.com/ethereum/go-ethereum/trie"

	"mpachain/core/types"
)

// encodedTxs feeds pre-encoded transactions to DeriveSha, which cannot
// surface encoding errors itself.
type encodedTxs [][]byte

func (e encodedTxs) Len() int { return len(e) }

func (e encodedTxs) EncodeIndex(i int, w *bytes.Buffer) { w.Write(e[i]) }

// ComputeTxRoot returns the header's transaction root: an ordered trie of the
// RLP encoded transactions keyed by RLP index. No transactions yield the
// empty root.
func ComputeTxRoot(txs []*types.Transaction) ([]byte, error) {
	list := make(encodedTxs, len(txs))
	for i, tx := range txs {
		enc, err := rlp.EncodeToBytes(tx)
		if err != nil {
			return nil, fmt.Errorf("encode tx %d: %w", i, err)
		}
		list[i] = enc
	}
	root := gethtypes.DeriveSha(list, gethtrie.NewStackTrie(nil))
	return root.Bytes(), nil
}
