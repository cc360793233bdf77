package core

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"mpachain/core/genesis"
	"mpachain/core/types"
	"mpachain/crypto"
	nativecommon "mpachain/native/common"
	"mpachain/native/mpa"
	"mpachain/observability"
	"mpachain/storage"
	"mpachain/storage/trie"
)

// DefaultEventBufferSize bounds the in-memory event ring when no size is
// configured.
const DefaultEventBufferSize = 1024

// ReceiptSink receives every sealed block together with its receipt.
type ReceiptSink interface {
	IndexReceipt(ctx context.Context, block *types.Block, receipt *types.Receipt) error
}

// Options configures a Node.
type Options struct {
	ChainID         uint64
	Genesis         genesis.Spec
	Pauses          nativecommon.PauseView
	CreateQuota     nativecommon.Quota
	EventBufferSize int
	Logger          *slog.Logger
}

// Node is the central controller, wiring the state processor, the chain and
// the event consumers together. Every transaction is sealed into its own
// block before the next one is accepted.
type Node struct {
	db       storage.Database
	state    *StateProcessor
	chain    *Blockchain
	chainID  uint64
	devKeys  map[[20]byte]*crypto.PrivateKey
	devOrder [][20]byte
	stateMu  sync.Mutex
	events   *eventLog
	sinks    []ReceiptSink
	logger   *slog.Logger
	nowFn    func() time.Time
}

func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database must not be nil")
	}
	spec := opts.Genesis
	if opts.ChainID != 0 {
		spec.ChainID = opts.ChainID
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	chain, err := NewBlockchain(db, func() (*types.Block, error) {
		block, _, err := genesis.Build(&spec, db)
		return block, err
	})
	if err != nil {
		return nil, err
	}

	// Load current state root from the chain tip, then open the trie.
	var root []byte
	if header := chain.CurrentHeader(); header != nil {
		root = header.StateRoot
	}
	stateTrie, err := trie.NewTrie(db, root)
	if err != nil {
		return nil, err
	}
	processor := NewStateProcessor(stateTrie, spec.ChainID)
	processor.SetPauses(opts.Pauses)
	processor.SetCreateQuota(opts.CreateQuota)

	keys, err := spec.DevKeys()
	if err != nil {
		return nil, err
	}
	devKeys := make(map[[20]byte]*crypto.PrivateKey, len(keys))
	devOrder := make([][20]byte, 0, len(keys))
	for _, key := range keys {
		addr := key.PubKey().Address().Array()
		devKeys[addr] = key
		devOrder = append(devOrder, addr)
	}

	bufferSize := opts.EventBufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	logger.Info("node ready",
		slog.Uint64("chain_id", spec.ChainID),
		slog.Uint64("height", chain.GetHeight()),
		slog.Int("dev_accounts", len(devOrder)))

	return &Node{
		db:       db,
		state:    processor,
		chain:    chain,
		chainID:  spec.ChainID,
		devKeys:  devKeys,
		devOrder: devOrder,
		events:   newEventLog(bufferSize),
		logger:   logger,
		nowFn:    time.Now,
	}, nil
}

// AddReceiptSink registers a consumer notified after each sealed block.
func (n *Node) AddReceiptSink(sink ReceiptSink) {
	if sink == nil {
		return
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.sinks = append(n.sinks, sink)
}

// SetNowFunc overrides the clock used for block timestamps.
func (n *Node) SetNowFunc(now func() time.Time) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if now == nil {
		now = time.Now
	}
	n.nowFn = now
}

// SubmitTransaction validates tx and seals it into a new block. Transactions
// that fail admission are rejected without touching the chain. Transactions
// that fail during execution are still sealed: the state is rolled back to
// the parent root, the sender nonce is bumped and a failed receipt is
// written. In that case the receipt is returned alongside an error wrapping
// ErrExecutionReverted.
func (n *Node) SubmitTransaction(tx *types.Transaction) (*types.Receipt, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.submitLocked(tx)
}

func (n *Node) submitLocked(tx *types.Transaction) (*types.Receipt, error) {
	start := time.Now()
	sender, err := n.state.ValidateTransaction(tx)
	if err != nil {
		return nil, err
	}
	txHash, err := tx.Hash()
	if err != nil {
		return nil, err
	}

	parent := n.chain.CurrentHeader()
	parentRoot := n.state.CurrentRoot()
	height := parent.Height + 1
	blockTime := n.nowFn().Unix()
	if blockTime < parent.Timestamp {
		blockTime = parent.Timestamp
	}

	receipt := &types.Receipt{
		TxHash:      txHash,
		BlockHeight: height,
		Type:        tx.Type,
		From:        append([]byte(nil), sender[:]...),
		To:          append([]byte(nil), tx.To...),
		Status:      types.ReceiptStatusSuccess,
	}
	result, execErr := n.state.Execute(tx, sender, blockTime)
	if execErr != nil {
		if err := n.state.ResetToRoot(parentRoot); err != nil {
			return nil, fmt.Errorf("node: roll back reverted tx: %w", err)
		}
		if err := n.state.BumpNonce(sender); err != nil {
			return nil, fmt.Errorf("node: bump nonce of reverted tx: %w", err)
		}
		receipt.Status = types.ReceiptStatusFailed
		receipt.Error = execErr.Error()
	} else {
		receipt.ContractAddress = result.ContractAddress
		receipt.Events = result.Events
	}

	txs := []*types.Transaction{tx}
	txRoot, err := ComputeTxRoot(txs)
	if err != nil {
		_ = n.state.ResetToRoot(parentRoot)
		return nil, err
	}
	stateRoot, err := n.state.Commit(height)
	if err != nil {
		_ = n.state.ResetToRoot(parentRoot)
		return nil, fmt.Errorf("node: commit state: %w", err)
	}
	header := &types.BlockHeader{
		Height:    height,
		Timestamp: blockTime,
		PrevHash:  n.chain.Tip(),
		StateRoot: stateRoot.Bytes(),
		TxRoot:    txRoot,
	}
	block := types.NewBlock(header, txs)
	if err := n.chain.AddBlock(block, receipt); err != nil {
		_ = n.state.ResetToRoot(parentRoot)
		return nil, fmt.Errorf("node: append block: %w", err)
	}

	n.publish(block, receipt)
	observability.Ledger().RecordBlock(height, tx.Type.String(), receipt.Succeeded(), time.Since(start))

	attrs := []any{
		slog.Uint64("height", height),
		slog.String("txhash", hex.EncodeToString(txHash)),
		slog.String("type", tx.Type.String()),
		slog.Bool("succeeded", receipt.Succeeded()),
	}
	if execErr != nil {
		n.logger.Warn("transaction reverted", append(attrs, slog.String("error", execErr.Error()))...)
		return receipt, fmt.Errorf("%w: %w", ErrExecutionReverted, execErr)
	}
	n.logger.Info("block sealed", attrs...)
	return receipt, nil
}

func (n *Node) publish(block *types.Block, receipt *types.Receipt) {
	records := make([]EventRecord, 0, len(receipt.Events))
	for i, evt := range receipt.Events {
		records = append(records, EventRecord{
			Height: receipt.BlockHeight,
			TxHash: receipt.TxHash,
			Index:  i,
			Event:  evt,
		})
		observability.Events().RecordEvent(evt.Type)
	}
	n.events.append(records...)

	for _, sink := range n.sinks {
		if err := sink.IndexReceipt(context.Background(), block, receipt); err != nil {
			observability.Ledger().RecordIndexError()
			n.logger.Error("index receipt",
				slog.Uint64("height", receipt.BlockHeight),
				slog.String("txhash", hex.EncodeToString(receipt.TxHash)),
				slog.Any("error", err))
		}
	}
}

// SendTransaction signs tx with the unlocked development key of from, fills
// in the chain id and the next nonce, and submits it.
func (n *Node) SendTransaction(from [20]byte, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: nil transaction", ErrInvalidTransaction)
	}
	key, ok := n.devKeys[from]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an unlocked account", ErrUnknownAccount, crypto.MustAddress(from).String())
	}

	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	account, err := n.state.Manager().GetAccount(from[:])
	if err != nil {
		return nil, err
	}
	tx.ChainID = n.chainID
	tx.Nonce = account.Nonce
	if err := tx.Sign(key.PrivateKey); err != nil {
		return nil, err
	}
	return n.submitLocked(tx)
}

// DevAccounts returns the unlocked development accounts in genesis order.
func (n *Node) DevAccounts() [][20]byte {
	out := make([][20]byte, len(n.devOrder))
	copy(out, n.devOrder)
	return out
}

func (n *Node) ChainID() uint64 {
	return n.chainID
}

func (n *Node) Chain() *Blockchain {
	return n.chain
}

func (n *Node) GetHeight() uint64 { return n.chain.GetHeight() }

func (n *Node) GetAccount(addr [20]byte) (*types.Account, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.Manager().GetAccount(addr[:])
}

func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	account, err := n.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}

func (n *Node) Nonce(addr [20]byte) (uint64, error) {
	account, err := n.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return account.Nonce, nil
}

func (n *Node) BlockByHeight(height uint64) (*types.Block, error) {
	return n.chain.GetBlockByHeight(height)
}

func (n *Node) Receipt(txHash []byte) (*types.Receipt, error) {
	return n.chain.GetReceipt(txHash)
}

// MPA returns the agreement deployed at addr.
func (n *Node) MPA(addr [20]byte) (*mpa.MPA, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.MPAEngine().Get(addr)
}

// Factory returns the factory deployed at addr.
func (n *Node) Factory(addr [20]byte) (*mpa.Factory, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.MPAEngine().Factory(addr)
}

// OwnedMPAs lists the agreements owner created through factory.
func (n *Node) OwnedMPAs(factory, owner [20]byte) ([][20]byte, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.MPAEngine().OwnedMPAs(factory, owner)
}

// RecentEvents returns the newest buffered events, oldest first, optionally
// filtered by type.
func (n *Node) RecentEvents(eventType string, limit int) []EventRecord {
	return n.events.recent(eventType, limit)
}

// IsNotFound reports whether err means the requested object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBlockNotFound) ||
		errors.Is(err, ErrReceiptNotFound) ||
		errors.Is(err, mpa.ErrNotFound) ||
		errors.Is(err, mpa.ErrFactoryNotFound)
}
