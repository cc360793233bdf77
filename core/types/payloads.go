package types

import "encoding/json"

// CreateMPAPayload is embedded in the data field of TxTypeCreateMPA
// transactions. The factory address travels in the transaction's To field.
type CreateMPAPayload struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Beneficiaries [][]byte `json:"beneficiaries"`
	Shares        []uint32 `json:"shares"`
	Locked        bool     `json:"locked"`
}

// FreezeMPAPayload is embedded in the data field of TxTypeFreezeMPA
// transactions.
type FreezeMPAPayload struct {
	Frozen bool `json:"frozen"`
}

// EncodePayload marshals a module payload for the Data field.
func EncodePayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
