package types

import "math/big"

// Account is the ledger view of an address: a replay nonce and a native
// balance denominated in wei.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}
