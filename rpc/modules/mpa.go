package modules

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"mpachain/core"
	"mpachain/core/types"
	"mpachain/indexer"
)

// EventIndex serves historical events. The node's in-memory ring is used when
// no index is configured.
type EventIndex interface {
	Events(ctx context.Context, filter indexer.EventFilter) ([]indexer.Event, error)
}

// MPAModule exposes the factory and agreement operations.
type MPAModule struct {
	node  *core.Node
	index EventIndex
}

// NewMPAModule constructs the module. index may be nil.
func NewMPAModule(node *core.Node, index EventIndex) *MPAModule {
	return &MPAModule{node: node, index: index}
}

var errMPAOffline = &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: CodeServerError, Message: "mpa module not initialised"}

type fromParams struct {
	From string `json:"from"`
}

type createParams struct {
	From          string   `json:"from"`
	Factory       string   `json:"factory"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Beneficiaries []string `json:"beneficiaries"`
	Shares        []uint32 `json:"shares"`
	Locked        bool     `json:"locked"`
}

type ownedParams struct {
	Factory string `json:"factory"`
	Owner   string `json:"owner"`
}

type targetParams struct {
	From    string `json:"from"`
	Address string `json:"address"`
}

type freezeParams struct {
	From    string `json:"from"`
	Address string `json:"address"`
	Frozen  bool   `json:"frozen"`
}

type eventsParams struct {
	Type       string `json:"type,omitempty"`
	Address    string `json:"address,omitempty"`
	FromHeight uint64 `json:"fromHeight,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

func (m *MPAModule) send(fromValue string, tx *types.Transaction) (*ReceiptResult, *ModuleError) {
	from, modErr := parseAddress("from", fromValue)
	if modErr != nil {
		return nil, modErr
	}
	return submitResult(m.node.SendTransaction(from, tx))
}

func (m *MPAModule) DeployFactory(raw json.RawMessage) (*ReceiptResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errMPAOffline
	}
	var params fromParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	return m.send(params.From, &types.Transaction{Type: types.TxTypeDeployFactory})
}

// Create deploys an agreement through a factory. The new address is reported
// as the receipt's contract address.
func (m *MPAModule) Create(raw json.RawMessage) (*ReceiptResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errMPAOffline
	}
	var params createParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	factory, modErr := parseAddress("factory", params.Factory)
	if modErr != nil {
		return nil, modErr
	}
	beneficiaries := make([][]byte, 0, len(params.Beneficiaries))
	for _, value := range params.Beneficiaries {
		addr, modErr := parseAddress("beneficiary", value)
		if modErr != nil {
			return nil, modErr
		}
		beneficiaries = append(beneficiaries, append([]byte(nil), addr[:]...))
	}
	data, err := types.EncodePayload(types.CreateMPAPayload{
		Name:          params.Name,
		Description:   params.Description,
		Beneficiaries: beneficiaries,
		Shares:        params.Shares,
		Locked:        params.Locked,
	})
	if err != nil {
		return nil, ErrorFrom(err, nil)
	}
	return m.send(params.From, &types.Transaction{Type: types.TxTypeCreateMPA, To: factory[:], Data: data})
}

func (m *MPAModule) OwnedMPAs(raw json.RawMessage) ([]string, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errMPAOffline
	}
	var params ownedParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	factory, modErr := parseAddress("factory", params.Factory)
	if modErr != nil {
		return nil, modErr
	}
	owner, modErr := parseAddress("owner", params.Owner)
	if modErr != nil {
		return nil, modErr
	}
	owned, err := m.node.OwnedMPAs(factory, owner)
	if err != nil {
		return nil, ErrorFrom(err, nil)
	}
	return formatAddresses(owned), nil
}

func (m *MPAModule) Get(raw json.RawMessage) (*MPAResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errMPAOffline
	}
	var params addressParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	addr, modErr := parseAddress("address", params.Address)
	if modErr != nil {
		return nil, modErr
	}
	agreement, err := m.node.MPA(addr)
	if err != nil {
		return nil, ErrorFrom(err, nil)
	}
	balance, err := m.node.Balance(addr)
	if err != nil {
		return nil, ErrorFrom(err, nil)
	}
	return formatMPA(agreement, balance), nil
}

func (m *MPAModule) GetFactory(raw json.RawMessage) (*FactoryResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errMPAOffline
	}
	var params addressParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	addr, modErr := parseAddress("address", params.Address)
	if modErr != nil {
		return nil, modErr
	}
	factory, err := m.node.Factory(addr)
	if err != nil {
		return nil, ErrorFrom(err, nil)
	}
	return formatFactory(factory), nil
}

func (m *MPAModule) Freeze(raw json.RawMessage) (*ReceiptResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errMPAOffline
	}
	var params freezeParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	target, modErr := parseAddress("address", params.Address)
	if modErr != nil {
		return nil, modErr
	}
	data, err := types.EncodePayload(types.FreezeMPAPayload{Frozen: params.Frozen})
	if err != nil {
		return nil, ErrorFrom(err, nil)
	}
	return m.send(params.From, &types.Transaction{Type: types.TxTypeFreezeMPA, To: target[:], Data: data})
}

func (m *MPAModule) Unlock(raw json.RawMessage) (*ReceiptResult, *ModuleError) {
	return m.targeted(raw, types.TxTypeUnlockMPA)
}

func (m *MPAModule) Distribute(raw json.RawMessage) (*ReceiptResult, *ModuleError) {
	return m.targeted(raw, types.TxTypeDistributeMPA)
}

func (m *MPAModule) targeted(raw json.RawMessage, txType types.TxType) (*ReceiptResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errMPAOffline
	}
	var params targetParams
	if modErr := decodeParams(raw, &params); modErr != nil {
		return nil, modErr
	}
	target, modErr := parseAddress("address", params.Address)
	if modErr != nil {
		return nil, modErr
	}
	return m.send(params.From, &types.Transaction{Type: txType, To: target[:]})
}

// Events lists past events, from the SQLite index when present and from the
// node's recent-event buffer otherwise.
func (m *MPAModule) Events(ctx context.Context, raw json.RawMessage) ([]EventResult, *ModuleError) {
	if m == nil || m.node == nil {
		return nil, errMPAOffline
	}
	var params eventsParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, invalidParams("invalid parameter object", err.Error())
		}
	}
	if params.Limit < 0 {
		return nil, invalidParams("limit must not be negative", params.Limit)
	}
	var address []byte
	if strings.TrimSpace(params.Address) != "" {
		addr, modErr := parseAddress("address", params.Address)
		if modErr != nil {
			return nil, modErr
		}
		address = addr[:]
	}

	if m.index != nil {
		indexed, err := m.index.Events(ctx, indexer.EventFilter{
			Type:       strings.TrimSpace(params.Type),
			Address:    address,
			FromHeight: params.FromHeight,
			Limit:      params.Limit,
		})
		if err != nil {
			return nil, ErrorFrom(err, nil)
		}
		out := make([]EventResult, 0, len(indexed))
		for _, evt := range indexed {
			out = append(out, EventResult{Height: evt.Height, TxHash: "0x" + evt.TxHash, Type: evt.Type, Attributes: evt.Attributes})
		}
		return out, nil
	}

	limit := params.Limit
	if limit == 0 {
		limit = indexer.DefaultLimit
	}
	addressHex := ""
	if address != nil {
		addressHex = strings.ToLower(formatHash(address)[2:])
	}
	records := m.node.RecentEvents(strings.TrimSpace(params.Type), 0)
	out := make([]EventResult, 0)
	for _, rec := range records {
		if rec.Height < params.FromHeight {
			continue
		}
		if addressHex != "" && eventAddress(rec.Event) != addressHex {
			continue
		}
		attrs := make(map[string]string, len(rec.Event.Attributes))
		for k, v := range rec.Event.Attributes {
			attrs[k] = v
		}
		out = append(out, EventResult{Height: rec.Height, TxHash: formatHash(rec.TxHash), Type: rec.Event.Type, Attributes: attrs})
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// eventAddress mirrors the index: the agreement when present, otherwise the
// factory.
func eventAddress(evt types.Event) string {
	if addr := evt.Attributes["mpa"]; addr != "" {
		return addr
	}
	return evt.Attributes["factory"]
}
