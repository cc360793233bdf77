package mpa_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"mpachain/core/state"
	"mpachain/native/mpa"
	"mpachain/storage"
	"mpachain/storage/trie"
)

func newTestManager(t *testing.T) *state.Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	return state.NewManager(tr)
}

func TestManagerMPAPutGet(t *testing.T) {
	mgr := newTestManager(t)
	agreement := &mpa.MPA{
		Address:          [20]byte{0x10},
		Factory:          [20]byte{0x20},
		Owner:            [20]byte{0x30},
		Name:             "  payroll ",
		Description:      "monthly split",
		Beneficiaries:    [][20]byte{{0x01}, {0x02}},
		Shares:           []uint32{70, 30},
		Locked:           true,
		CreatedAt:        1_700_000_000,
		TotalReceived:    big.NewInt(5),
		TotalDistributed: big.NewInt(0),
	}
	require.NoError(t, mgr.MPAPut(agreement))

	stored, ok, err := mgr.MPAGet(agreement.Address)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "payroll", stored.Name)
	require.Equal(t, agreement.Beneficiaries, stored.Beneficiaries)
	require.Equal(t, agreement.Shares, stored.Shares)
	require.True(t, stored.Locked)
	require.False(t, stored.Frozen)
	require.Equal(t, int64(1_700_000_000), stored.CreatedAt)
	require.Equal(t, int64(5), stored.TotalReceived.Int64())

	_, ok, err = mgr.MPAGet([20]byte{0x99})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManagerRejectsInvalidMPA(t *testing.T) {
	mgr := newTestManager(t)
	err := mgr.MPAPut(&mpa.MPA{
		Address:       [20]byte{0x10},
		Name:          "bad",
		Beneficiaries: [][20]byte{{0x01}},
		Shares:        []uint32{99},
	})
	require.ErrorIs(t, err, mpa.ErrInvalidShares)
}

func TestEngineAgainstTrieState(t *testing.T) {
	mgr := newTestManager(t)
	engine := mpa.NewEngine()
	engine.SetState(mgr)

	admin := [20]byte{0x09}
	owner := [20]byte{0x01}
	require.NoError(t, mgr.AddBalance(owner, big.NewInt(1_000)))

	factory, err := engine.DeployFactory(admin, 0)
	require.NoError(t, err)
	created, err := engine.Create(factory.Address, owner, "Test", "", [][20]byte{{0x02}, {0x03}}, []uint32{50, 50}, false)
	require.NoError(t, err)

	owned, err := engine.OwnedMPAs(factory.Address, owner)
	require.NoError(t, err)
	require.Equal(t, [][20]byte{created.Address}, owned)

	_, err = engine.Receive(created.Address, owner, big.NewInt(600))
	require.NoError(t, err)
	payouts, err := engine.Distribute(created.Address, owner)
	require.NoError(t, err)
	require.Len(t, payouts, 2)

	bal, err := mgr.AccountBalance([20]byte{0x03})
	require.NoError(t, err)
	require.Equal(t, int64(300), bal.Int64())

	reloaded, err := engine.Factory(factory.Address)
	require.NoError(t, err)
	require.Equal(t, [][20]byte{created.Address}, reloaded.Instances)
}
