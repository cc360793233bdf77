package types

import (
	"crypto/sha256"
	"encoding/json"
)

// BlockHeader represents the header of a sealed block.
type BlockHeader struct {
	Height    uint64 `json:"height"`
	Timestamp int64  `json:"timestamp"`
	PrevHash  []byte `json:"prevHash"`  // Hash of the previous block's header
	StateRoot []byte `json:"stateRoot"` // Root of the state trie after the block's transactions
	TxRoot    []byte `json:"txRoot"`    // Root of the transaction trie
}

// Block represents a full block. The ledger seals one transaction per block.
type Block struct {
	Header       *BlockHeader   `json:"header"`
	Transactions []*Transaction `json:"transactions"`
}

// NewBlock creates a new block from a header and a set of transactions.
func NewBlock(header *BlockHeader, txs []*Transaction) *Block {
	return &Block{
		Header:       header,
		Transactions: txs,
	}
}

// Hash calculates and returns the SHA-256 hash of the block header.
// This hash serves as the block's unique identifier.
func (h *BlockHeader) Hash() ([]byte, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(b)
	return hash[:], nil
}
