package mpa

import (
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"
)

const (
	// TotalShares is the sum every share table must reach.
	TotalShares = 100
	// MaxBeneficiaries bounds the size of a share table.
	MaxBeneficiaries = 32
	// MaxNameLength bounds the agreement name in characters.
	MaxNameLength = 64
	// MaxDescriptionLength bounds the agreement description in characters.
	MaxDescriptionLength = 512
)

// Factory deploys MPA instances and holds the administrative key allowed to
// freeze them.
type Factory struct {
	Address   [20]byte
	Admin     [20]byte
	Nonce     uint64
	CreatedAt int64
	Instances [][20]byte
}

// Clone returns a deep copy of the factory.
func (f *Factory) Clone() *Factory {
	if f == nil {
		return nil
	}
	clone := *f
	clone.Instances = append([][20]byte(nil), f.Instances...)
	return &clone
}

// MPA is a multi-party agreement: an account that collects value and splits
// it among beneficiaries according to fixed percentage shares.
type MPA struct {
	Address          [20]byte
	Factory          [20]byte
	Owner            [20]byte
	Name             string
	Description      string
	Beneficiaries    [][20]byte
	Shares           []uint32
	Locked           bool
	Frozen           bool
	CreatedAt        int64
	TotalReceived    *big.Int
	TotalDistributed *big.Int
}

// Clone returns a deep copy of the agreement so callers can mutate the copy
// without affecting the stored instance.
func (m *MPA) Clone() *MPA {
	if m == nil {
		return nil
	}
	clone := *m
	clone.Beneficiaries = append([][20]byte(nil), m.Beneficiaries...)
	clone.Shares = append([]uint32(nil), m.Shares...)
	clone.TotalReceived = cloneBigInt(m.TotalReceived)
	clone.TotalDistributed = cloneBigInt(m.TotalDistributed)
	return &clone
}

// IsBeneficiary reports whether addr appears in the share table.
func (m *MPA) IsBeneficiary(addr [20]byte) bool {
	if m == nil {
		return false
	}
	for _, b := range m.Beneficiaries {
		if b == addr {
			return true
		}
	}
	return false
}

// Payout is a single transfer produced by a distribution.
type Payout struct {
	Beneficiary [20]byte
	Amount      *big.Int
}

// ValidateTerms checks the descriptive fields and share table of an agreement.
func ValidateTerms(name, description string, beneficiaries [][20]byte, shares []uint32) error {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return fmt.Errorf("%w: name required", ErrInvalidName)
	}
	if utf8.RuneCountInString(trimmedName) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, MaxNameLength)
	}
	if utf8.RuneCountInString(strings.TrimSpace(description)) > MaxDescriptionLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidDescription, MaxDescriptionLength)
	}
	if len(beneficiaries) == 0 {
		return fmt.Errorf("%w: at least one beneficiary required", ErrInvalidBeneficiaries)
	}
	if len(beneficiaries) > MaxBeneficiaries {
		return fmt.Errorf("%w: at most %d beneficiaries", ErrInvalidBeneficiaries, MaxBeneficiaries)
	}
	if len(beneficiaries) != len(shares) {
		return fmt.Errorf("%w: %d beneficiaries but %d shares", ErrInvalidShares, len(beneficiaries), len(shares))
	}
	seen := make(map[[20]byte]struct{}, len(beneficiaries))
	for i, b := range beneficiaries {
		if b == ([20]byte{}) {
			return fmt.Errorf("%w: beneficiary %d is the zero address", ErrInvalidBeneficiaries, i)
		}
		if _, dup := seen[b]; dup {
			return fmt.Errorf("%w: beneficiary %d is duplicated", ErrInvalidBeneficiaries, i)
		}
		seen[b] = struct{}{}
	}
	var total uint64
	for i, share := range shares {
		if share == 0 {
			return fmt.Errorf("%w: share %d must be positive", ErrInvalidShares, i)
		}
		total += uint64(share)
	}
	if total != TotalShares {
		return fmt.Errorf("%w: shares sum to %d, want %d", ErrInvalidShares, total, TotalShares)
	}
	return nil
}

// SanitizeMPA validates the agreement and returns a normalised clone with
// trimmed strings and non-nil totals. The input is not mutated.
func SanitizeMPA(m *MPA) (*MPA, error) {
	if m == nil {
		return nil, fmt.Errorf("nil mpa")
	}
	if m.Address == ([20]byte{}) {
		return nil, fmt.Errorf("mpa address required")
	}
	if err := ValidateTerms(m.Name, m.Description, m.Beneficiaries, m.Shares); err != nil {
		return nil, err
	}
	clone := m.Clone()
	clone.Name = strings.TrimSpace(clone.Name)
	clone.Description = strings.TrimSpace(clone.Description)
	if clone.TotalReceived.Sign() < 0 || clone.TotalDistributed.Sign() < 0 {
		return nil, fmt.Errorf("mpa totals must be non-negative")
	}
	return clone, nil
}

// SplitByShares divides amount across shares in percent. Integer remainders
// are credited to the first entry so the payouts always sum to amount.
func SplitByShares(amount *big.Int, shares []uint32) []*big.Int {
	out := make([]*big.Int, len(shares))
	if len(shares) == 0 {
		return out
	}
	total := cloneBigInt(amount)
	paid := big.NewInt(0)
	hundred := big.NewInt(TotalShares)
	for i, share := range shares {
		part := new(big.Int).Mul(total, new(big.Int).SetUint64(uint64(share)))
		part.Quo(part, hundred)
		out[i] = part
		paid.Add(paid, part)
	}
	out[0].Add(out[0], new(big.Int).Sub(total, paid))
	return out
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
