package types

// ReceiptStatus reports whether a sealed transaction executed successfully.
type ReceiptStatus uint8

const (
	ReceiptStatusFailed  ReceiptStatus = 0
	ReceiptStatusSuccess ReceiptStatus = 1
)

// Receipt captures the outcome of a sealed transaction. Failed transactions
// are still sealed: only the sender nonce advances and no events are kept.
type Receipt struct {
	TxHash          []byte        `json:"txHash"`
	BlockHeight     uint64        `json:"blockHeight"`
	Type            TxType        `json:"type"`
	From            []byte        `json:"from"`
	To              []byte        `json:"to,omitempty"`
	ContractAddress []byte        `json:"contractAddress,omitempty"`
	Status          ReceiptStatus `json:"status"`
	Error           string        `json:"error,omitempty"`
	Events          []Event       `json:"events,omitempty"`
}

// Succeeded reports whether the receipt carries a successful status.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptStatusSuccess
}
