package mpa

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"mpachain/core/types"
)

const (
	EventTypeFactoryDeployed = "mpa.factory.deployed"
	EventTypeCreated         = "mpa.created"
	EventTypeReceived        = "mpa.received"
	EventTypeFrozen          = "mpa.frozen"
	EventTypeUnfrozen        = "mpa.unfrozen"
	EventTypeUnlocked        = "mpa.unlocked"
	EventTypeDistributed     = "mpa.distributed"
)

// NewFactoryDeployedEvent returns the payload emitted when a factory is
// deployed.
func NewFactoryDeployedEvent(f *Factory) *types.Event {
	attrs := make(map[string]string)
	if f != nil {
		attrs["factory"] = hex.EncodeToString(f.Address[:])
		attrs["admin"] = hex.EncodeToString(f.Admin[:])
		attrs["createdAt"] = strconv.FormatInt(f.CreatedAt, 10)
	}
	return &types.Event{Type: EventTypeFactoryDeployed, Attributes: attrs}
}

// NewCreatedEvent returns the canonical payload for a newly created agreement.
func NewCreatedEvent(m *MPA) *types.Event {
	evt := newMPAEvent(EventTypeCreated, m)
	if m != nil {
		evt.Attributes["name"] = m.Name
		evt.Attributes["beneficiaries"] = strconv.Itoa(len(m.Beneficiaries))
		evt.Attributes["locked"] = strconv.FormatBool(m.Locked)
		evt.Attributes["createdAt"] = strconv.FormatInt(m.CreatedAt, 10)
	}
	return evt
}

// NewReceivedEvent is emitted when value lands in an agreement.
func NewReceivedEvent(m *MPA, from [20]byte, amount *big.Int) *types.Event {
	evt := newMPAEvent(EventTypeReceived, m)
	evt.Attributes["from"] = hex.EncodeToString(from[:])
	evt.Attributes["amount"] = cloneBigInt(amount).String()
	return evt
}

// NewFrozenEvent reports a freeze toggle. Unfreezing uses the unfrozen type.
func NewFrozenEvent(m *MPA, caller [20]byte) *types.Event {
	eventType := EventTypeUnfrozen
	if m != nil && m.Frozen {
		eventType = EventTypeFrozen
	}
	evt := newMPAEvent(eventType, m)
	evt.Attributes["caller"] = hex.EncodeToString(caller[:])
	return evt
}

// NewUnlockedEvent is emitted when the owner clears the locked flag.
func NewUnlockedEvent(m *MPA) *types.Event {
	return newMPAEvent(EventTypeUnlocked, m)
}

// NewDistributedEvent summarises a distribution.
func NewDistributedEvent(m *MPA, caller [20]byte, total *big.Int, payouts []Payout) *types.Event {
	evt := newMPAEvent(EventTypeDistributed, m)
	evt.Attributes["caller"] = hex.EncodeToString(caller[:])
	evt.Attributes["amount"] = cloneBigInt(total).String()
	evt.Attributes["payouts"] = strconv.Itoa(len(payouts))
	return evt
}

func newMPAEvent(eventType string, m *MPA) *types.Event {
	attrs := make(map[string]string)
	if m == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["mpa"] = hex.EncodeToString(m.Address[:])
	attrs["factory"] = hex.EncodeToString(m.Factory[:])
	attrs["owner"] = hex.EncodeToString(m.Owner[:])
	return &types.Event{Type: eventType, Attributes: attrs}
}
