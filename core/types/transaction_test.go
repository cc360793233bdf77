package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestTransactionSignRecoversSender(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx := &Transaction{
		ChainID: 1337,
		Type:    TxTypeTransfer,
		Nonce:   3,
		To:      make([]byte, 20),
		Value:   big.NewInt(1_000),
	}
	require.NoError(t, tx.Sign(key))

	from, err := tx.From()
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Bytes(), from)
}

func TestTransactionHashIgnoresSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx := &Transaction{ChainID: 1, Type: TxTypeDeployFactory}
	before, err := tx.Hash()
	require.NoError(t, err)
	require.NoError(t, tx.Sign(key))
	after, err := tx.Hash()
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestTransactionTamperChangesSender(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx := &Transaction{ChainID: 1, Type: TxTypeTransfer, Value: big.NewInt(5)}
	require.NoError(t, tx.Sign(key))

	tampered := *tx
	tampered.from = nil
	tampered.Value = big.NewInt(6)
	from, err := tampered.From()
	if err == nil {
		require.NotEqual(t, crypto.PubkeyToAddress(key.PublicKey).Bytes(), from)
	}
}

func TestTransactionUnsignedHasNoSender(t *testing.T) {
	tx := &Transaction{Type: TxTypeTransfer}
	_, err := tx.From()
	require.Error(t, err)
}

func TestTxTypeValid(t *testing.T) {
	require.True(t, TxTypeTransfer.Valid())
	require.True(t, TxTypeDistributeMPA.Valid())
	require.False(t, TxType(0).Valid())
	require.False(t, TxType(0x07).Valid())
	require.Equal(t, "freezeMPA", TxTypeFreezeMPA.String())
}
