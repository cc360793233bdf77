package core

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"mpachain/core/types"
	"mpachain/storage"
)

var (
	chainHeightKey     = []byte("chain/height")
	chainBlockPrefix   = []byte("chain/block/")
	chainReceiptPrefix = []byte("chain/receipt/")
)

func blockKey(height uint64) []byte {
	key := make([]byte, len(chainBlockPrefix)+8)
	copy(key, chainBlockPrefix)
	binary.BigEndian.PutUint64(key[len(chainBlockPrefix):], height)
	return key
}

func receiptKey(txHash []byte) []byte {
	return append(append([]byte(nil), chainReceiptPrefix...), txHash...)
}

// Blockchain persists sealed blocks and their receipts. The stored height is
// written last so a crash mid-write leaves the previous tip intact.
type Blockchain struct {
	db      storage.Database
	tip     []byte
	height  uint64
	current *types.BlockHeader
	mu      sync.RWMutex
}

// NewBlockchain opens the chain stored in db. When the database holds no
// chain, makeGenesis is called and its block becomes height zero.
func NewBlockchain(db storage.Database, makeGenesis func() (*types.Block, error)) (*Blockchain, error) {
	bc := &Blockchain{db: db}

	raw, err := db.Get(chainHeightKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if makeGenesis == nil {
			return nil, fmt.Errorf("blockchain: empty database and no genesis")
		}
		genesis, err := makeGenesis()
		if err != nil {
			return nil, fmt.Errorf("blockchain: build genesis: %w", err)
		}
		if err := bc.writeBlock(genesis, nil); err != nil {
			return nil, err
		}
		return bc, nil
	case err != nil:
		return nil, err
	}

	if len(raw) != 8 {
		return nil, fmt.Errorf("blockchain: corrupt height record")
	}
	height := binary.BigEndian.Uint64(raw)
	block, err := bc.loadBlock(height)
	if err != nil {
		return nil, fmt.Errorf("blockchain: load tip: %w", err)
	}
	tip, err := block.Header.Hash()
	if err != nil {
		return nil, err
	}
	bc.height = height
	bc.tip = tip
	bc.current = block.Header
	return bc, nil
}

// AddBlock validates linkage and appends the block with its receipt.
func (bc *Blockchain) AddBlock(b *types.Block, receipt *types.Receipt) error {
	if b == nil || b.Header == nil {
		return fmt.Errorf("blockchain: nil block")
	}
	bc.mu.RLock()
	tip, height := bc.tip, bc.height
	bc.mu.RUnlock()

	if !bytes.Equal(b.Header.PrevHash, tip) {
		return fmt.Errorf("block prevhash mismatch")
	}
	if b.Header.Height != height+1 {
		return fmt.Errorf("block height %d does not extend tip %d", b.Header.Height, height)
	}
	return bc.writeBlock(b, receipt)
}

func (bc *Blockchain) writeBlock(b *types.Block, receipt *types.Receipt) error {
	hash, err := b.Header.Hash()
	if err != nil {
		return err
	}
	blockBytes, err := json.Marshal(b)
	if err != nil {
		return err
	}
	if err := bc.db.Put(blockKey(b.Header.Height), blockBytes); err != nil {
		return err
	}
	if receipt != nil {
		receiptBytes, err := json.Marshal(receipt)
		if err != nil {
			return err
		}
		if err := bc.db.Put(receiptKey(receipt.TxHash), receiptBytes); err != nil {
			return err
		}
	}
	var heightBytes [8]byte
	binary.BigEndian.PutUint64(heightBytes[:], b.Header.Height)
	if err := bc.db.Put(chainHeightKey, heightBytes[:]); err != nil {
		return err
	}

	bc.mu.Lock()
	bc.tip = hash
	bc.height = b.Header.Height
	bc.current = b.Header
	bc.mu.Unlock()
	return nil
}

func (bc *Blockchain) loadBlock(height uint64) (*types.Block, error) {
	raw, err := bc.db.Get(blockKey(height))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: height %d", ErrBlockNotFound, height)
	}
	if err != nil {
		return nil, err
	}
	var block types.Block
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetBlockByHeight retrieves a block by its height.
func (bc *Blockchain) GetBlockByHeight(height uint64) (*types.Block, error) {
	if height > bc.GetHeight() {
		return nil, fmt.Errorf("%w: height %d", ErrBlockNotFound, height)
	}
	return bc.loadBlock(height)
}

// GetReceipt returns the receipt sealed for txHash.
func (bc *Blockchain) GetReceipt(txHash []byte) (*types.Receipt, error) {
	raw, err := bc.db.Get(receiptKey(txHash))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	var receipt types.Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (bc *Blockchain) GetHeight() uint64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.height
}

func (bc *Blockchain) Tip() []byte {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return append([]byte(nil), bc.tip...)
}

// CurrentHeader returns the header of the chain tip.
func (bc *Blockchain) CurrentHeader() *types.BlockHeader {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if bc.current == nil {
		return nil
	}
	header := *bc.current
	return &header
}
