package modules

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"mpachain/core/types"
	"mpachain/crypto"
	"mpachain/native/mpa"
)

// ReceiptResult reflects the final state of a sealed transaction.
type ReceiptResult struct {
	TransactionHash string        `json:"transactionHash"`
	BlockNumber     uint64        `json:"blockNumber"`
	Type            string        `json:"type"`
	From            string        `json:"from"`
	To              string        `json:"to,omitempty"`
	ContractAddress string        `json:"contractAddress,omitempty"`
	Status          string        `json:"status"`
	Error           string        `json:"error,omitempty"`
	Events          []EventResult `json:"events"`
}

// EventResult is an emitted event. Height and hash are set when the event is
// served from history.
type EventResult struct {
	Height     uint64            `json:"height,omitempty"`
	TxHash     string            `json:"txHash,omitempty"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// BlockResult summarises a sealed block.
type BlockResult struct {
	Number       uint64   `json:"number"`
	Hash         string   `json:"hash"`
	ParentHash   string   `json:"parentHash"`
	Timestamp    int64    `json:"timestamp"`
	StateRoot    string   `json:"stateRoot"`
	TxRoot       string   `json:"txRoot"`
	Transactions []string `json:"transactions"`
}

// AccountResult reports the balance and nonce of an address.
type AccountResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// MPAResult renders an agreement with its current balance.
type MPAResult struct {
	Address          string   `json:"address"`
	Factory          string   `json:"factory"`
	Owner            string   `json:"owner"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Beneficiaries    []string `json:"beneficiaries"`
	Shares           []uint32 `json:"shares"`
	Locked           bool     `json:"locked"`
	Frozen           bool     `json:"frozen"`
	Balance          string   `json:"balance"`
	TotalReceived    string   `json:"totalReceived"`
	TotalDistributed string   `json:"totalDistributed"`
	CreatedAt        int64    `json:"createdAt"`
}

// FactoryResult renders a factory.
type FactoryResult struct {
	Address   string   `json:"address"`
	Admin     string   `json:"admin"`
	Instances []string `json:"instances"`
	CreatedAt int64    `json:"createdAt"`
}

func formatAddress(addr [20]byte) string {
	return crypto.MustAddress(addr).String()
}

func formatAddressBytes(b []byte) string {
	if len(b) != 20 {
		return ""
	}
	return crypto.NewAddress(crypto.MPAPrefix, b).String()
}

func formatAddresses(addrs [][20]byte) []string {
	out := make([]string, len(addrs))
	for i, addr := range addrs {
		out[i] = formatAddress(addr)
	}
	return out
}

func formatHash(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAddress(field, value string) ([20]byte, *ModuleError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return [20]byte{}, invalidParams(fmt.Sprintf("%s is required", field), nil)
	}
	addr, err := crypto.ParseAddress(trimmed)
	if err != nil {
		return [20]byte{}, invalidParams(fmt.Sprintf("invalid %s", field), err.Error())
	}
	return addr.Array(), nil
}

func parseHash(field, value string) ([]byte, *ModuleError) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(value), "0x"), "0X")
	if trimmed == "" {
		return nil, invalidParams(fmt.Sprintf("%s is required", field), nil)
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, invalidParams(fmt.Sprintf("invalid %s", field), err.Error())
	}
	return decoded, nil
}

// parseAmount accepts a base-10 wei amount. An empty value is zero.
func parseAmount(value string) (*big.Int, *ModuleError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidParams("invalid value", trimmed)
	}
	if amount.Sign() < 0 {
		return nil, invalidParams("value must not be negative", trimmed)
	}
	return amount, nil
}

func parseTxType(value string) (types.TxType, *ModuleError) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return types.TxTypeTransfer, nil
	}
	for t := types.TxTypeTransfer; t.Valid(); t++ {
		if strings.EqualFold(t.String(), trimmed) {
			return t, nil
		}
	}
	return 0, invalidParams("unknown transaction type", trimmed)
}

func formatEvents(events []types.Event) []EventResult {
	out := make([]EventResult, 0, len(events))
	for _, evt := range events {
		attrs := make(map[string]string, len(evt.Attributes))
		for k, v := range evt.Attributes {
			attrs[k] = v
		}
		out = append(out, EventResult{Type: evt.Type, Attributes: attrs})
	}
	return out
}

func formatReceipt(receipt *types.Receipt) *ReceiptResult {
	if receipt == nil {
		return nil
	}
	status := "success"
	if !receipt.Succeeded() {
		status = "failed"
	}
	return &ReceiptResult{
		TransactionHash: formatHash(receipt.TxHash),
		BlockNumber:     receipt.BlockHeight,
		Type:            receipt.Type.String(),
		From:            formatAddressBytes(receipt.From),
		To:              formatAddressBytes(receipt.To),
		ContractAddress: formatAddressBytes(receipt.ContractAddress),
		Status:          status,
		Error:           receipt.Error,
		Events:          formatEvents(receipt.Events),
	}
}

func formatBlock(block *types.Block) (*BlockResult, error) {
	hash, err := block.Header.Hash()
	if err != nil {
		return nil, err
	}
	txs := make([]string, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		txHash, err := tx.Hash()
		if err != nil {
			return nil, err
		}
		txs = append(txs, formatHash(txHash))
	}
	return &BlockResult{
		Number:       block.Header.Height,
		Hash:         formatHash(hash),
		ParentHash:   formatHash(block.Header.PrevHash),
		Timestamp:    block.Header.Timestamp,
		StateRoot:    formatHash(block.Header.StateRoot),
		TxRoot:       formatHash(block.Header.TxRoot),
		Transactions: txs,
	}, nil
}

func formatMPA(agreement *mpa.MPA, balance *big.Int) *MPAResult {
	return &MPAResult{
		Address:          formatAddress(agreement.Address),
		Factory:          formatAddress(agreement.Factory),
		Owner:            formatAddress(agreement.Owner),
		Name:             agreement.Name,
		Description:      agreement.Description,
		Beneficiaries:    formatAddresses(agreement.Beneficiaries),
		Shares:           append([]uint32(nil), agreement.Shares...),
		Locked:           agreement.Locked,
		Frozen:           agreement.Frozen,
		Balance:          formatAmount(balance),
		TotalReceived:    formatAmount(agreement.TotalReceived),
		TotalDistributed: formatAmount(agreement.TotalDistributed),
		CreatedAt:        agreement.CreatedAt,
	}
}

func formatFactory(factory *mpa.Factory) *FactoryResult {
	return &FactoryResult{
		Address:   formatAddress(factory.Address),
		Admin:     formatAddress(factory.Admin),
		Instances: formatAddresses(factory.Instances),
		CreatedAt: factory.CreatedAt,
	}
}

// submitResult converts the outcome of a node submission. A reverted
// transaction is reported as an error carrying its sealed receipt.
func submitResult(receipt *types.Receipt, err error) (*ReceiptResult, *ModuleError) {
	if err != nil {
		var data interface{}
		if receipt != nil {
			data = formatReceipt(receipt)
		}
		return nil, ErrorFrom(err, data)
	}
	return formatReceipt(receipt), nil
}
