package core

import "errors"

var (
	// ErrExecutionReverted wraps every execution failure of a sealed
	// transaction. The transaction still lands in a block with a failed
	// receipt.
	ErrExecutionReverted = errors.New("execution reverted")
	// ErrInvalidNonce rejects a transaction whose nonce does not match the
	// sender account. Rejected transactions are never sealed.
	ErrInvalidNonce = errors.New("invalid nonce")
	// ErrInvalidChainID rejects transactions signed for another chain.
	ErrInvalidChainID = errors.New("invalid chain id")
	// ErrInvalidTransaction rejects malformed or unsigned transactions.
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrUnknownAccount is returned when the node holds no key for a sender.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrBlockNotFound is returned for heights above the chain tip.
	ErrBlockNotFound = errors.New("block not found")
	// ErrReceiptNotFound is returned for unknown transaction hashes.
	ErrReceiptNotFound = errors.New("receipt not found")
)
