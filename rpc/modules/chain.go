package modules

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"mpachain/core"
	"mpachain/core/types"
)

// ChainModule serves account, block and transaction queries plus submission.
type ChainModule struct {
	node *core.Node
}

func NewChainModule(node *core.Node) *ChainModule {
	return &ChainModule{node: node}
}

var errChainOffline = &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: CodeServerError, Message: "chain module not initialised"}

type addressParams struct {
	Address string `json:"address"`
}

type blockParams struct {
	Number *uint64 `json:"number,omitempty"`
}

type hashParams struct {
	Hash string `json:"hash"`
}

type sendTransactionParams struct {
	From  string `json:"from"`
	Type  string `json:"type,omitempty"`
	To    string `json:"to,omitempty"`
	Value string `json:"value,omitempty"`
	Data  string `json:"data,omitempty"`
}

func decodeParams(raw json.RawMessage, out interface{}) *ModuleError {
	if len(raw) == 0 {
		return invalidParams("parameter object required", nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

// Accounts lists the unlocked development accounts.
func (m *ChainModule) Accounts() ([]string, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errChainOffline
	}
	return formatAddresses(m.node.DevAccounts()), nil
}

func (m *ChainModule) ChainID() (uint64, *ModuleError) {
	if m == nil || m.node == nil {
		return 0, errChainOffline
	}
	return m.node.ChainID(), nil
}

func (m *ChainModule) BlockNumber() (uint64, *ModuleError) {
	if m == nil || m.node == nil {
		return 0, errChainOffline
	}
	return m.node.GetHeight(), nil
}

// GetAccount returns balance and nonce. chain_getBalance and chain_getNonce
// both resolve through it.
func (m *ChainModule) GetAccount(raw json.RawMessage) (*AccountResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errChainOffline
	}
	var params addressParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	addr, modErr := parseAddress("address", params.Address)
	if modErr != nil {
		return nil, modErr
	}
	account, err := m.node.GetAccount(addr)
	if err != nil {
		return nil, ErrorFrom(err, nil)
	}
	return &AccountResult{
		Address: formatAddress(addr),
		Balance: formatAmount(account.Balance),
		Nonce:   account.Nonce,
	}, nil
}

// GetBlock returns the block at the requested height, or the tip when no
// number is supplied.
func (m *ChainModule) GetBlock(raw json.RawMessage) (*BlockResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errChainOffline
	}
	var params blockParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, invalidParams("invalid parameter object", err.Error())
		}
	}
	height := m.node.GetHeight()
	if params.Number != nil {
		height = *params.Number
	}
	block, err := m.node.BlockByHeight(height)
	if err != nil {
		return nil, ErrorFrom(err, nil)
	}
	result, err := formatBlock(block)
	if err != nil {
		return nil, ErrorFrom(err, nil)
	}
	return result, nil
}

func (m *ChainModule) GetReceipt(raw json.RawMessage) (*ReceiptResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errChainOffline
	}
	var params hashParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	hash, modErr := parseHash("hash", params.Hash)
	if modErr != nil {
		return nil, modErr
	}
	receipt, err := m.node.Receipt(hash)
	if err != nil {
		return nil, ErrorFrom(err, nil)
	}
	return formatReceipt(receipt), nil
}

// SendTransaction signs with the node-held development key of from and seals
// the transaction.
func (m *ChainModule) SendTransaction(raw json.RawMessage) (*ReceiptResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errChainOffline
	}
	var params sendTransactionParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	from, modErr := parseAddress("from", params.From)
	if modErr != nil {
		return nil, modErr
	}
	txType, modErr := parseTxType(params.Type)
	if modErr != nil {
		return nil, modErr
	}
	value, modErr := parseAmount(params.Value)
	if modErr != nil {
		return nil, modErr
	}
	tx := &types.Transaction{Type: txType, Value: value}
	if strings.TrimSpace(params.To) != "" {
		to, modErr := parseAddress("to", params.To)
		if modErr != nil {
			return nil, modErr
		}
		tx.To = to[:]
	}
	if data := strings.TrimPrefix(strings.TrimSpace(params.Data), "0x"); data != "" {
		decoded, err := hex.DecodeString(data)
		if err != nil {
			return nil, invalidParams("invalid data", err.Error())
		}
		tx.Data = decoded
	}
	return submitResult(m.node.SendTransaction(from, tx))
}

// SendRawTransaction seals a client-signed transaction.
func (m *ChainModule) SendRawTransaction(raw json.RawMessage) (*ReceiptResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errChainOffline
	}
	var tx types.Transaction
	if modErr := decodeParams(raw, &tx); modErr != nil {
		return nil, modErr
	}
	return submitResult(m.node.SubmitTransaction(&tx))
}
