package state

import (
	"fmt"
	"math/big"

	nativecommon "mpachain/native/common"
	"mpachain/native/mpa"
)

var (
	mpaFactoryPrefix = []byte("mpa/factory/")
	mpaRecordPrefix  = []byte("mpa/agreement/")
	mpaOwnedPrefix   = []byte("mpa/owned/")
	mpaQuotaPrefix   = []byte("mpa/quota/")
)

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return buf
}

// RLP has no signed integers, so timestamps are stored as uint64.
type storedFactory struct {
	Address   [20]byte
	Admin     [20]byte
	Nonce     uint64
	CreatedAt uint64
	Instances [][20]byte
}

type storedMPA struct {
	Address          [20]byte
	Factory          [20]byte
	Owner            [20]byte
	Name             string
	Description      string
	Beneficiaries    [][20]byte
	Shares           []uint32
	Locked           bool
	Frozen           bool
	CreatedAt        uint64
	TotalReceived    *big.Int
	TotalDistributed *big.Int
}

func newStoredMPA(m *mpa.MPA) *storedMPA {
	return &storedMPA{
		Address:          m.Address,
		Factory:          m.Factory,
		Owner:            m.Owner,
		Name:             m.Name,
		Description:      m.Description,
		Beneficiaries:    m.Beneficiaries,
		Shares:           m.Shares,
		Locked:           m.Locked,
		Frozen:           m.Frozen,
		CreatedAt:        uint64(m.CreatedAt),
		TotalReceived:    m.TotalReceived,
		TotalDistributed: m.TotalDistributed,
	}
}

func (s *storedMPA) toMPA() *mpa.MPA {
	out := &mpa.MPA{
		Address:          s.Address,
		Factory:          s.Factory,
		Owner:            s.Owner,
		Name:             s.Name,
		Description:      s.Description,
		Beneficiaries:    s.Beneficiaries,
		Shares:           s.Shares,
		Locked:           s.Locked,
		Frozen:           s.Frozen,
		CreatedAt:        int64(s.CreatedAt),
		TotalReceived:    s.TotalReceived,
		TotalDistributed: s.TotalDistributed,
	}
	return out.Clone()
}

// FactoryPut stores the factory record.
func (m *Manager) FactoryPut(f *mpa.Factory) error {
	if f == nil {
		return fmt.Errorf("nil factory")
	}
	if f.Address == ([20]byte{}) {
		return fmt.Errorf("factory address required")
	}
	record := &storedFactory{
		Address:   f.Address,
		Admin:     f.Admin,
		Nonce:     f.Nonce,
		CreatedAt: uint64(f.CreatedAt),
		Instances: f.Instances,
	}
	return m.KVPut(prefixedKey(mpaFactoryPrefix, f.Address[:]), record)
}

// FactoryGet loads the factory deployed at addr.
func (m *Manager) FactoryGet(addr [20]byte) (*mpa.Factory, bool, error) {
	var record storedFactory
	ok, err := m.KVGet(prefixedKey(mpaFactoryPrefix, addr[:]), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	f := &mpa.Factory{
		Address:   record.Address,
		Admin:     record.Admin,
		Nonce:     record.Nonce,
		CreatedAt: int64(record.CreatedAt),
		Instances: record.Instances,
	}
	return f.Clone(), true, nil
}

// MPAPut validates and stores the agreement record.
func (m *Manager) MPAPut(agreement *mpa.MPA) error {
	sanitized, err := mpa.SanitizeMPA(agreement)
	if err != nil {
		return err
	}
	return m.KVPut(prefixedKey(mpaRecordPrefix, sanitized.Address[:]), newStoredMPA(sanitized))
}

// MPAGet loads the agreement stored at addr.
func (m *Manager) MPAGet(addr [20]byte) (*mpa.MPA, bool, error) {
	var record storedMPA
	ok, err := m.KVGet(prefixedKey(mpaRecordPrefix, addr[:]), &record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return record.toMPA(), true, nil
}

// MPAOwnedAppend records instance in the owner's list for factory.
func (m *Manager) MPAOwnedAppend(factory, owner, instance [20]byte) error {
	return m.KVAppend(prefixedKey(mpaOwnedPrefix, factory[:], owner[:]), instance[:])
}

// MPAOwned returns the instances owner created through factory in creation
// order.
func (m *Manager) MPAOwned(factory, owner [20]byte) ([][20]byte, error) {
	var raw [][]byte
	if err := m.KVGetList(prefixedKey(mpaOwnedPrefix, factory[:], owner[:]), &raw); err != nil {
		return nil, err
	}
	out := make([][20]byte, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 20 {
			return nil, fmt.Errorf("mpa owned index: malformed entry of %d bytes", len(entry))
		}
		var addr [20]byte
		copy(addr[:], entry)
		out = append(out, addr)
	}
	return out, nil
}

// MPAQuotaGet returns the create quota counters of owner on factory.
func (m *Manager) MPAQuotaGet(factory, owner [20]byte) (nativecommon.QuotaNow, error) {
	var usage nativecommon.QuotaNow
	if _, err := m.KVGet(prefixedKey(mpaQuotaPrefix, factory[:], owner[:]), &usage); err != nil {
		return nativecommon.QuotaNow{}, err
	}
	return usage, nil
}

// MPAQuotaPut stores the create quota counters of owner on factory.
func (m *Manager) MPAQuotaPut(factory, owner [20]byte, usage nativecommon.QuotaNow) error {
	return m.KVPut(prefixedKey(mpaQuotaPrefix, factory[:], owner[:]), usage)
}
