package genesis

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"

	"mpachain/crypto"
)

// Spec describes the initial ledger state: a deterministic set of funded
// development accounts plus optional explicit allocations.
type Spec struct {
	ChainID      uint64
	Seed         string
	Accounts     int
	BalanceEther uint64
	Timestamp    int64
	// Alloc maps an address (bech32 or 0x hex) to a wei amount in base 10.
	Alloc map[string]string
}

// Validate reports obvious mistakes before any state is written.
func (s *Spec) Validate() error {
	if s == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if s.ChainID == 0 {
		return fmt.Errorf("genesis: chain id must be positive")
	}
	if s.Accounts < 0 {
		return fmt.Errorf("genesis: negative account count")
	}
	if s.Accounts > 0 && strings.TrimSpace(s.Seed) == "" {
		return fmt.Errorf("genesis: seed required for dev accounts")
	}
	return nil
}

// DevKeys derives the funded development keys in index order.
func (s *Spec) DevKeys() ([]*crypto.PrivateKey, error) {
	keys := make([]*crypto.PrivateKey, 0, s.Accounts)
	for i := 0; i < s.Accounts; i++ {
		key, err := crypto.DevKey(s.Seed, uint32(i))
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// EtherToWei converts whole ether into wei.
func EtherToWei(ether uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(ether), big.NewInt(params.Ether))
}
