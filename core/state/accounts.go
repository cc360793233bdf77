package state

import (
	"errors"
	"fmt"
	"math/big"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"mpachain/core/types"
)

// ErrInsufficientBalance is returned when a debit exceeds the account balance.
var ErrInsufficientBalance = errors.New("state: insufficient balance")

func accountStateKey(addr []byte) []byte {
	return ethcrypto.Keccak256(addr)
}

// GetAccount returns the nonce and balance stored under addr. Unknown
// addresses yield a zero account.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if len(addr) == 0 {
		return nil, fmt.Errorf("address must not be empty")
	}
	stateAcc, err := m.loadStateAccount(addr)
	if err != nil {
		return nil, err
	}
	account := &types.Account{Balance: big.NewInt(0)}
	if stateAcc != nil {
		account.Nonce = stateAcc.Nonce
		if stateAcc.Balance != nil {
			account.Balance = stateAcc.Balance.ToBig()
		}
	}
	return account, nil
}

// PutAccount persists the provided account under addr.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if account == nil {
		return fmt.Errorf("nil account")
	}
	amount := account.Balance
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	balance, overflow := uint256.FromBig(amount)
	if overflow {
		return fmt.Errorf("balance overflow")
	}
	stateAcc := &gethtypes.StateAccount{
		Nonce:    account.Nonce,
		Balance:  balance,
		Root:     gethtypes.EmptyRootHash,
		CodeHash: gethtypes.EmptyCodeHash.Bytes(),
	}
	encoded, err := rlp.EncodeToBytes(stateAcc)
	if err != nil {
		return err
	}
	return m.trie.Update(accountStateKey(addr), encoded)
}

func (m *Manager) loadStateAccount(addr []byte) (*gethtypes.StateAccount, error) {
	data, err := m.trie.Get(accountStateKey(addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	stateAcc := new(gethtypes.StateAccount)
	if err := rlp.DecodeBytes(data, stateAcc); err != nil {
		return nil, err
	}
	return stateAcc, nil
}

// AccountBalance returns the balance of addr in wei.
func (m *Manager) AccountBalance(addr [20]byte) (*big.Int, error) {
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return account.Balance, nil
}

// AddBalance credits amount to addr.
func (m *Manager) AddBalance(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative credit")
	}
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return m.PutAccount(addr[:], account)
}

// AccountTransfer moves amount from one account to another. A transfer to
// self only checks that the balance covers the amount.
func (m *Manager) AccountTransfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative transfer")
	}
	sender, err := m.GetAccount(from[:])
	if err != nil {
		return err
	}
	if sender.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, sender.Balance, amount)
	}
	if from == to {
		return nil
	}
	sender.Balance = new(big.Int).Sub(sender.Balance, amount)
	if err := m.PutAccount(from[:], sender); err != nil {
		return err
	}
	return m.AddBalance(to, amount)
}

// IncrementNonce bumps the replay nonce of addr and returns the new value.
func (m *Manager) IncrementNonce(addr [20]byte) (uint64, error) {
	account, err := m.GetAccount(addr[:])
	if err != nil {
		return 0, err
	}
	account.Nonce++
	if err := m.PutAccount(addr[:], account); err != nil {
		return 0, err
	}
	return account.Nonce, nil
}
