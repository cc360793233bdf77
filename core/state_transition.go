package core

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"mpachain/core/events"
	"mpachain/core/state"
	"mpachain/core/types"
	nativecommon "mpachain/native/common"
	"mpachain/native/mpa"
	"mpachain/storage/trie"
)

// ApplyResult captures what a successfully executed transaction produced.
type ApplyResult struct {
	ContractAddress []byte
	Events          []types.Event
}

// StateProcessor validates and executes transactions against the state trie.
// It is not safe for concurrent use; the node serialises access.
type StateProcessor struct {
	Trie          *trie.Trie
	chainID       uint64
	pauses        nativecommon.PauseView
	createQuota   nativecommon.Quota
	committedRoot common.Hash
	collector     events.Collector
}

func NewStateProcessor(tr *trie.Trie, chainID uint64) *StateProcessor {
	return &StateProcessor{
		Trie:          tr,
		chainID:       chainID,
		committedRoot: tr.Root(),
	}
}

// SetPauses configures the module pause view handed to native engines.
func (sp *StateProcessor) SetPauses(p nativecommon.PauseView) { sp.pauses = p }

// SetCreateQuota configures the per-owner MPA creation quota.
func (sp *StateProcessor) SetCreateQuota(q nativecommon.Quota) { sp.createQuota = q }

// CurrentRoot returns the last committed state root.
func (sp *StateProcessor) CurrentRoot() common.Hash {
	return sp.committedRoot
}

// PendingRoot returns the root of the trie including in-memory mutations.
func (sp *StateProcessor) PendingRoot() common.Hash {
	return sp.Trie.Hash()
}

// ResetToRoot discards any in-memory changes and reloads the trie at the
// provided root hash.
func (sp *StateProcessor) ResetToRoot(root common.Hash) error {
	if err := sp.Trie.Reset(root); err != nil {
		return err
	}
	sp.committedRoot = root
	sp.collector.Drain()
	return nil
}

// Commit persists the current trie contents and returns the resulting state
// root.
func (sp *StateProcessor) Commit(blockNumber uint64) (common.Hash, error) {
	newRoot, err := sp.Trie.Commit(sp.committedRoot, blockNumber)
	if err != nil {
		return common.Hash{}, err
	}
	sp.committedRoot = newRoot
	return newRoot, nil
}

// Manager returns a state manager over the live trie.
func (sp *StateProcessor) Manager() *state.Manager {
	return state.NewManager(sp.Trie)
}

func (sp *StateProcessor) newMPAEngine(manager *state.Manager, blockTime int64) *mpa.Engine {
	engine := mpa.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(&sp.collector)
	engine.SetPauses(sp.pauses)
	engine.SetCreateQuota(sp.createQuota)
	engine.SetNowFunc(func() int64 { return blockTime })
	return engine
}

// ValidateTransaction performs the admission checks that decide whether a
// transaction is sealed at all. It returns the recovered sender.
func (sp *StateProcessor) ValidateTransaction(tx *types.Transaction) ([20]byte, error) {
	var sender [20]byte
	if tx == nil {
		return sender, fmt.Errorf("%w: nil transaction", ErrInvalidTransaction)
	}
	if !tx.Type.Valid() {
		return sender, fmt.Errorf("%w: unknown type %d", ErrInvalidTransaction, tx.Type)
	}
	if tx.ChainID != sp.chainID {
		return sender, fmt.Errorf("%w: got %d, want %d", ErrInvalidChainID, tx.ChainID, sp.chainID)
	}
	if tx.Value != nil && tx.Value.Sign() < 0 {
		return sender, fmt.Errorf("%w: negative value", ErrInvalidTransaction)
	}
	from, err := tx.From()
	if err != nil {
		return sender, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	copy(sender[:], from)
	account, err := sp.Manager().GetAccount(sender[:])
	if err != nil {
		return sender, err
	}
	if tx.Nonce != account.Nonce {
		return sender, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonce, tx.Nonce, account.Nonce)
	}
	return sender, nil
}

// BumpNonce advances the sender nonce. It is the only state change a reverted
// transaction keeps.
func (sp *StateProcessor) BumpNonce(sender [20]byte) error {
	_, err := sp.Manager().IncrementNonce(sender)
	return err
}

// Execute applies a validated transaction. The sender nonce is consumed
// before the body runs; on error the caller must roll the trie back.
func (sp *StateProcessor) Execute(tx *types.Transaction, sender [20]byte, blockTime int64) (*ApplyResult, error) {
	sp.collector.Drain()
	manager := sp.Manager()
	nonce := tx.Nonce
	if _, err := manager.IncrementNonce(sender); err != nil {
		return nil, err
	}
	if tx.Type != types.TxTypeTransfer && tx.Value != nil && tx.Value.Sign() != 0 {
		return nil, fmt.Errorf("%w: %s does not accept value", ErrInvalidTransaction, tx.Type)
	}

	engine := sp.newMPAEngine(manager, blockTime)
	result := &ApplyResult{}
	var err error
	switch tx.Type {
	case types.TxTypeTransfer:
		err = sp.applyTransfer(tx, sender, manager, engine)
	case types.TxTypeDeployFactory:
		var factory *mpa.Factory
		if factory, err = engine.DeployFactory(sender, nonce); err == nil {
			result.ContractAddress = factory.Address[:]
		}
	case types.TxTypeCreateMPA:
		var created *mpa.MPA
		if created, err = sp.applyCreateMPA(tx, sender, engine); err == nil {
			result.ContractAddress = created.Address[:]
		}
	case types.TxTypeFreezeMPA:
		err = sp.applyFreezeMPA(tx, sender, engine)
	case types.TxTypeUnlockMPA:
		var target [20]byte
		if target, err = recipient(tx); err == nil {
			_, err = engine.Unlock(target, sender)
		}
	case types.TxTypeDistributeMPA:
		var target [20]byte
		if target, err = recipient(tx); err == nil {
			_, err = engine.Distribute(target, sender)
		}
	default:
		err = fmt.Errorf("%w: unknown type %d", ErrInvalidTransaction, tx.Type)
	}
	if err != nil {
		sp.collector.Drain()
		return nil, err
	}
	result.Events = sp.collector.Drain()
	return result, nil
}

func recipient(tx *types.Transaction) ([20]byte, error) {
	var to [20]byte
	if len(tx.To) != len(to) {
		return to, fmt.Errorf("%w: recipient must be 20 bytes", ErrInvalidTransaction)
	}
	copy(to[:], tx.To)
	return to, nil
}

func (sp *StateProcessor) applyTransfer(tx *types.Transaction, sender [20]byte, manager *state.Manager, engine *mpa.Engine) error {
	to, err := recipient(tx)
	if err != nil {
		return err
	}
	value := tx.Value
	if value == nil {
		value = big.NewInt(0)
	}
	if engine.IsMPA(to) {
		if _, err := engine.Receive(to, sender, value); err != nil {
			return err
		}
	} else if err := manager.AccountTransfer(sender, to, value); err != nil {
		return err
	}
	var txHash [32]byte
	if hash, err := tx.Hash(); err == nil {
		copy(txHash[:], hash)
	}
	sp.collector.Emit(events.Transfer{From: sender, To: to, Amount: value, TxHash: txHash})
	return nil
}

func (sp *StateProcessor) applyCreateMPA(tx *types.Transaction, sender [20]byte, engine *mpa.Engine) (*mpa.MPA, error) {
	factory, err := recipient(tx)
	if err != nil {
		return nil, err
	}
	var payload types.CreateMPAPayload
	if err := json.Unmarshal(tx.Data, &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid create payload: %v", ErrInvalidTransaction, err)
	}
	beneficiaries := make([][20]byte, len(payload.Beneficiaries))
	for i, raw := range payload.Beneficiaries {
		if len(raw) != 20 {
			return nil, fmt.Errorf("%w: beneficiary %d must be 20 bytes", mpa.ErrInvalidBeneficiaries, i)
		}
		copy(beneficiaries[i][:], raw)
	}
	return engine.Create(factory, sender, payload.Name, payload.Description, beneficiaries, payload.Shares, payload.Locked)
}

func (sp *StateProcessor) applyFreezeMPA(tx *types.Transaction, sender [20]byte, engine *mpa.Engine) error {
	target, err := recipient(tx)
	if err != nil {
		return err
	}
	var payload types.FreezeMPAPayload
	if err := json.Unmarshal(tx.Data, &payload); err != nil {
		return fmt.Errorf("%w: invalid freeze payload: %v", ErrInvalidTransaction, err)
	}
	_, err = engine.Freeze(target, sender, payload.Frozen)
	return err
}

// MPAEngine returns a read-mostly engine for queries outside block execution.
func (sp *StateProcessor) MPAEngine() *mpa.Engine {
	return sp.newMPAEngine(sp.Manager(), 0)
}
