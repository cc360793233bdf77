package types

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeTransfer       TxType = 0x01 // A plain value transfer
	TxTypeDeployFactory  TxType = 0x02 // Deploy an MPA factory owned by the sender
	TxTypeCreateMPA      TxType = 0x03 // Factory.create
	TxTypeFreezeMPA      TxType = 0x04 // MPA.freeze(bool)
	TxTypeUnlockMPA      TxType = 0x05 // Clear the locked flag of an MPA
	TxTypeDistributeMPA  TxType = 0x06 // Split the MPA balance across beneficiaries
	txTypeUpperExclusive TxType = 0x07
)

var errMissingSignature = errors.New("transaction: missing signature")

// Valid reports whether the type is one of the known transaction kinds.
func (t TxType) Valid() bool {
	return t >= TxTypeTransfer && t < txTypeUpperExclusive
}

func (t TxType) String() string {
	switch t {
	case TxTypeTransfer:
		return "transfer"
	case TxTypeDeployFactory:
		return "deployFactory"
	case TxTypeCreateMPA:
		return "createMPA"
	case TxTypeFreezeMPA:
		return "freezeMPA"
	case TxTypeUnlockMPA:
		return "unlockMPA"
	case TxTypeDistributeMPA:
		return "distributeMPA"
	default:
		return "unknown"
	}
}

// Transaction is the signed unit of work applied by the ledger. Module
// payloads travel JSON-encoded in Data.
type Transaction struct {
	ChainID uint64   `json:"chainId"`
	Type    TxType   `json:"type"`
	Nonce   uint64   `json:"nonce"`
	To      []byte   `json:"to,omitempty"`
	Value   *big.Int `json:"value,omitempty"`
	Data    []byte   `json:"data,omitempty"`

	R *big.Int `json:"r,omitempty"`
	S *big.Int `json:"s,omitempty"`
	V *big.Int `json:"v,omitempty"`

	from []byte
}

// Hash covers every field except the signature.
func (tx *Transaction) Hash() ([]byte, error) {
	value := tx.Value
	if value == nil {
		value = big.NewInt(0)
	}
	txData := struct {
		ChainID uint64
		Type    TxType
		Nonce   uint64
		To      []byte
		Value   *big.Int
		Data    []byte
	}{tx.ChainID, tx.Type, tx.Nonce, tx.To, value, tx.Data}

	b, err := json.Marshal(txData)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(b)
	return hash[:], nil
}

func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the sender address from the signature. The result is cached.
func (tx *Transaction) From() ([]byte, error) {
	if tx.from != nil {
		return tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return nil, errMissingSignature
	}
	if tx.V.Uint64() < 27 || len(tx.R.Bytes()) > 32 || len(tx.S.Bytes()) > 32 {
		return nil, errors.New("transaction: malformed signature")
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	sig := make([]byte, 65)
	copy(sig[32-len(tx.R.Bytes()):32], tx.R.Bytes())
	copy(sig[64-len(tx.S.Bytes()):64], tx.S.Bytes())
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	tx.from = crypto.PubkeyToAddress(*pubKey).Bytes()
	return tx.from, nil
}
