package mpa

import (
	"fmt"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"mpachain/core/events"
	"mpachain/core/types"
	nativecommon "mpachain/native/common"
)

// ModuleName is the identifier used by the pause guard.
const ModuleName = "mpa"

type engineState interface {
	FactoryPut(*Factory) error
	FactoryGet(addr [20]byte) (*Factory, bool, error)
	MPAPut(*MPA) error
	MPAGet(addr [20]byte) (*MPA, bool, error)
	MPAOwnedAppend(factory, owner, instance [20]byte) error
	MPAOwned(factory, owner [20]byte) ([][20]byte, error)
	MPAQuotaGet(factory, owner [20]byte) (nativecommon.QuotaNow, error)
	MPAQuotaPut(factory, owner [20]byte, usage nativecommon.QuotaNow) error
	AccountBalance(addr [20]byte) (*big.Int, error)
	AccountTransfer(from, to [20]byte, amount *big.Int) error
}

type mpaEvent struct {
	evt *types.Event
}

func (e mpaEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e mpaEvent) Event() *types.Event { return e.evt }

// Engine applies the factory and agreement rules against an external state
// backend. It holds no state of its own beyond configuration.
type Engine struct {
	state       engineState
	emitter     events.Emitter
	pauses      nativecommon.PauseView
	createQuota nativecommon.Quota
	nowFn       func() int64
}

// NewEngine creates an engine with a no-op emitter. Callers can override the
// emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses configures the pause view consulted before value-moving calls.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetCreateQuota limits how many agreements a single owner may create per
// factory within a quota epoch. The zero value disables the limit.
func (e *Engine) SetCreateQuota(q nativecommon.Quota) { e.createQuota = q }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(mpaEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// DeployFactory registers a factory administered by deployer. The address is
// derived from the deployer and its account nonce the same way contract
// addresses are.
func (e *Engine) DeployFactory(deployer [20]byte, nonce uint64) (*Factory, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if deployer == ([20]byte{}) {
		return nil, fmt.Errorf("%w: deployer required", ErrUnauthorized)
	}
	addr := [20]byte(ethcrypto.CreateAddress(ethcommon.Address(deployer), nonce))
	if _, exists, err := e.state.FactoryGet(addr); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrFactoryExists
	}
	factory := &Factory{
		Address:   addr,
		Admin:     deployer,
		CreatedAt: e.now(),
	}
	if err := e.state.FactoryPut(factory); err != nil {
		return nil, err
	}
	e.emit(NewFactoryDeployedEvent(factory))
	return factory.Clone(), nil
}

// Factory returns the factory stored at addr.
func (e *Engine) Factory(addr [20]byte) (*Factory, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	factory, ok, err := e.state.FactoryGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrFactoryNotFound
	}
	return factory, nil
}

// Get returns the agreement stored at addr.
func (e *Engine) Get(addr [20]byte) (*MPA, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	agreement, ok, err := e.state.MPAGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return agreement, nil
}

// IsMPA reports whether addr hosts an agreement. Lookup errors count as false.
func (e *Engine) IsMPA(addr [20]byte) bool {
	if e == nil || e.state == nil {
		return false
	}
	_, ok, err := e.state.MPAGet(addr)
	return err == nil && ok
}

// Create deploys a new agreement from factoryAddr on behalf of caller, who
// becomes its owner. The instance is appended to the caller's owned list.
func (e *Engine) Create(factoryAddr, caller [20]byte, name, description string, beneficiaries [][20]byte, shares []uint32, locked bool) (*MPA, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	factory, err := e.Factory(factoryAddr)
	if err != nil {
		return nil, err
	}
	if err := ValidateTerms(name, description, beneficiaries, shares); err != nil {
		return nil, err
	}
	addr := [20]byte(ethcrypto.CreateAddress(ethcommon.Address(factoryAddr), factory.Nonce))
	// Paying the agreement to itself would count toward TotalDistributed
	// while the value never leaves the balance.
	for i, beneficiary := range beneficiaries {
		if beneficiary == addr {
			return nil, fmt.Errorf("%w: beneficiary %d is the agreement itself", ErrInvalidBeneficiaries, i)
		}
	}
	if err := e.consumeCreateQuota(factoryAddr, caller); err != nil {
		return nil, err
	}

	agreement := &MPA{
		Address:          addr,
		Factory:          factoryAddr,
		Owner:            caller,
		Name:             name,
		Description:      description,
		Beneficiaries:    beneficiaries,
		Shares:           shares,
		Locked:           locked,
		CreatedAt:        e.now(),
		TotalReceived:    big.NewInt(0),
		TotalDistributed: big.NewInt(0),
	}
	sanitized, err := SanitizeMPA(agreement)
	if err != nil {
		return nil, err
	}
	if err := e.state.MPAPut(sanitized); err != nil {
		return nil, err
	}
	if err := e.state.MPAOwnedAppend(factoryAddr, caller, addr); err != nil {
		return nil, err
	}
	factory.Nonce++
	factory.Instances = append(factory.Instances, addr)
	if err := e.state.FactoryPut(factory); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(sanitized))
	return sanitized.Clone(), nil
}

func (e *Engine) consumeCreateQuota(factory, owner [20]byte) error {
	if !e.createQuota.Enabled() {
		return nil
	}
	prev, err := e.state.MPAQuotaGet(factory, owner)
	if err != nil {
		return err
	}
	next, err := nativecommon.CheckQuota(e.createQuota, e.createQuota.EpochAt(e.now()), prev, 1, 0)
	if err != nil {
		return err
	}
	return e.state.MPAQuotaPut(factory, owner, next)
}

// OwnedMPAs lists the agreements owner created through factoryAddr, in
// creation order. Unknown owners yield an empty list.
func (e *Engine) OwnedMPAs(factoryAddr, owner [20]byte) ([][20]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.Factory(factoryAddr); err != nil {
		return nil, err
	}
	owned, err := e.state.MPAOwned(factoryAddr, owner)
	if err != nil {
		return nil, err
	}
	if owned == nil {
		owned = [][20]byte{}
	}
	return owned, nil
}

// Receive moves value from sender into the agreement at addr. Transfers into
// a frozen agreement are rejected before any balance changes.
func (e *Engine) Receive(addr, from [20]byte, value *big.Int) (*MPA, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if value != nil && value.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	agreement, err := e.Get(addr)
	if err != nil {
		return nil, err
	}
	if agreement.Frozen {
		return nil, ErrFrozen
	}
	amount := cloneBigInt(value)
	if amount.Sign() > 0 {
		available, err := e.state.AccountBalance(from)
		if err != nil {
			return nil, err
		}
		if available == nil || available.Cmp(amount) < 0 {
			return nil, ErrInsufficientBalance
		}
		if err := e.state.AccountTransfer(from, addr, amount); err != nil {
			return nil, err
		}
	}
	agreement.TotalReceived = new(big.Int).Add(cloneBigInt(agreement.TotalReceived), amount)
	if err := e.state.MPAPut(agreement); err != nil {
		return nil, err
	}
	e.emit(NewReceivedEvent(agreement, from, amount))
	return agreement.Clone(), nil
}

// Freeze toggles the frozen flag. Only the administrator of the deploying
// factory may call it; setting the current value again is a no-op.
func (e *Engine) Freeze(addr, caller [20]byte, frozen bool) (*MPA, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	agreement, err := e.Get(addr)
	if err != nil {
		return nil, err
	}
	factory, err := e.Factory(agreement.Factory)
	if err != nil {
		return nil, err
	}
	if caller != factory.Admin {
		return nil, ErrUnauthorized
	}
	if agreement.Frozen == frozen {
		return agreement, nil
	}
	agreement.Frozen = frozen
	if err := e.state.MPAPut(agreement); err != nil {
		return nil, err
	}
	e.emit(NewFrozenEvent(agreement, caller))
	return agreement.Clone(), nil
}

// Unlock clears the locked flag so the balance can be distributed. Only the
// owner may unlock and the flag never comes back.
func (e *Engine) Unlock(addr, caller [20]byte) (*MPA, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	agreement, err := e.Get(addr)
	if err != nil {
		return nil, err
	}
	if caller != agreement.Owner {
		return nil, ErrUnauthorized
	}
	if !agreement.Locked {
		return agreement, nil
	}
	agreement.Locked = false
	if err := e.state.MPAPut(agreement); err != nil {
		return nil, err
	}
	e.emit(NewUnlockedEvent(agreement))
	return agreement.Clone(), nil
}

// Distribute pays out the whole balance of the agreement by share. The owner
// or any beneficiary may trigger it. Payouts into another agreement go
// through Receive and therefore fail if that agreement is frozen.
func (e *Engine) Distribute(addr, caller [20]byte) ([]Payout, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	agreement, err := e.Get(addr)
	if err != nil {
		return nil, err
	}
	if caller != agreement.Owner && !agreement.IsBeneficiary(caller) {
		return nil, ErrUnauthorized
	}
	if agreement.Frozen {
		return nil, ErrFrozen
	}
	if agreement.Locked {
		return nil, ErrLocked
	}
	balance, err := e.state.AccountBalance(addr)
	if err != nil {
		return nil, err
	}
	if balance == nil || balance.Sign() == 0 {
		return []Payout{}, nil
	}

	amounts := SplitByShares(balance, agreement.Shares)
	payouts := make([]Payout, 0, len(amounts))
	for i, amount := range amounts {
		beneficiary := agreement.Beneficiaries[i]
		payouts = append(payouts, Payout{Beneficiary: beneficiary, Amount: new(big.Int).Set(amount)})
		if amount.Sign() == 0 {
			continue
		}
		if beneficiary != addr && e.IsMPA(beneficiary) {
			if _, err := e.Receive(beneficiary, addr, amount); err != nil {
				return nil, fmt.Errorf("payout %d: %w", i, err)
			}
			continue
		}
		if err := e.state.AccountTransfer(addr, beneficiary, amount); err != nil {
			return nil, fmt.Errorf("payout %d: %w", i, err)
		}
	}

	agreement.TotalDistributed = new(big.Int).Add(cloneBigInt(agreement.TotalDistributed), balance)
	if err := e.state.MPAPut(agreement); err != nil {
		return nil, err
	}
	e.emit(NewDistributedEvent(agreement, caller, balance, payouts))
	return payouts, nil
}
