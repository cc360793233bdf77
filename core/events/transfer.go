package events

import (
	"math/big"

	"mpachain/core/types"
	"mpachain/crypto"
)

const (
	// TypeTransfer is emitted for native value movements between accounts.
	TypeTransfer = "transfer.native"
)

type Transfer struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
	TxHash [32]byte
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{
		"from":   crypto.MustAddress(e.From).String(),
		"to":     crypto.MustAddress(e.To).String(),
		"amount": formatAmount(e.Amount),
	}
	if !zeroBytes(e.TxHash[:]) {
		attrs["txHash"] = hexBytes(e.TxHash[:])
	}
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}
