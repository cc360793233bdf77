package rpc

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"mpachain/core/genesis"
	"mpachain/indexer"
	"mpachain/native/mpa"
	"mpachain/rpc/modules"
)

type rpcFixture struct {
	handler  http.Handler
	accounts []string
}

func newFixture(t *testing.T, cfg ServerConfig) *rpcFixture {
	t.Helper()
	node := newTestNode(t)
	handler := newTestServer(t, node, cfg)
	var accounts []string
	callRPC(t, handler, "", "chain_accounts").decode(t, &accounts)
	require.Len(t, accounts, 10)
	return &rpcFixture{handler: handler, accounts: accounts}
}

func (f *rpcFixture) deployFactory(t *testing.T, token string) string {
	t.Helper()
	var receipt modules.ReceiptResult
	callRPC(t, f.handler, token, "mpa_deployFactory", map[string]string{"from": f.accounts[9]}).decode(t, &receipt)
	require.Equal(t, "success", receipt.Status)
	require.True(t, strings.HasPrefix(receipt.ContractAddress, "mpa1"))
	return receipt.ContractAddress
}

func (f *rpcFixture) create(t *testing.T, token, factory string) string {
	t.Helper()
	var receipt modules.ReceiptResult
	callRPC(t, f.handler, token, "mpa_create", map[string]interface{}{
		"from":          f.accounts[0],
		"factory":       factory,
		"name":          "Test",
		"description":   "This contract is to be locked",
		"beneficiaries": []string{f.accounts[1], f.accounts[2]},
		"shares":        []uint32{50, 50},
		"locked":        true,
	}).decode(t, &receipt)
	return receipt.ContractAddress
}

func (f *rpcFixture) send(t *testing.T, token, to, value string) *testResponse {
	t.Helper()
	return callRPC(t, f.handler, token, "chain_sendTransaction", map[string]string{
		"from":  f.accounts[0],
		"to":    to,
		"value": value,
	})
}

func (f *rpcFixture) freeze(t *testing.T, token, from, target string, frozen bool) *testResponse {
	t.Helper()
	return callRPC(t, f.handler, token, "mpa_freeze", map[string]interface{}{
		"from":    from,
		"address": target,
		"frozen":  frozen,
	})
}

const oneEtherWei = "1000000000000000000"

func TestFreezeScenarioOverRPC(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	factory := f.deployFactory(t, "")
	instance := f.create(t, "", factory)

	var owned []string
	callRPC(t, f.handler, "", "mpa_ownedMPAs", map[string]string{"factory": factory, "owner": f.accounts[0]}).decode(t, &owned)
	require.Equal(t, []string{instance}, owned)

	resp := f.send(t, "", instance, oneEtherWei)
	require.Nil(t, resp.Error)
	var balance string
	callRPC(t, f.handler, "", "chain_getBalance", map[string]string{"address": instance}).decode(t, &balance)
	require.Equal(t, oneEtherWei, balance)

	require.Nil(t, f.freeze(t, "", f.accounts[9], instance, true).Error)

	resp = f.send(t, "", instance, oneEtherWei)
	require.NotNil(t, resp.Error)
	require.Equal(t, modules.CodeConflict, resp.Error.Code)
	require.Equal(t, http.StatusConflict, resp.Status)

	require.Nil(t, f.freeze(t, "", f.accounts[9], instance, false).Error)
	require.Nil(t, f.send(t, "", instance, oneEtherWei).Error)

	callRPC(t, f.handler, "", "chain_getBalance", map[string]string{"address": instance}).decode(t, &balance)
	require.Equal(t, "2000000000000000000", balance)

	var agreement modules.MPAResult
	callRPC(t, f.handler, "", "mpa_get", map[string]string{"address": instance}).decode(t, &agreement)
	require.Equal(t, "2000000000000000000", agreement.Balance)
	require.True(t, agreement.Locked)
	require.False(t, agreement.Frozen)
	require.Equal(t, []uint32{50, 50}, agreement.Shares)

	var factoryResult modules.FactoryResult
	callRPC(t, f.handler, "", "mpa_getFactory", map[string]string{"address": factory}).decode(t, &factoryResult)
	require.Equal(t, f.accounts[9], factoryResult.Admin)
	require.Equal(t, []string{instance}, factoryResult.Instances)
}

func TestErrorCodes(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	factory := f.deployFactory(t, "")
	instance := f.create(t, "", factory)

	resp := f.freeze(t, "", f.accounts[0], instance, true)
	require.NotNil(t, resp.Error)
	require.Equal(t, modules.CodeForbidden, resp.Error.Code)

	resp = callRPC(t, f.handler, "", "mpa_get", map[string]string{"address": f.accounts[5]})
	require.NotNil(t, resp.Error)
	require.Equal(t, modules.CodeNotFound, resp.Error.Code)

	resp = callRPC(t, f.handler, "", "mpa_get", map[string]string{"address": "not-an-address"})
	require.NotNil(t, resp.Error)
	require.Equal(t, modules.CodeInvalidParams, resp.Error.Code)

	resp = callRPC(t, f.handler, "", "mpa_create", map[string]interface{}{
		"from":          f.accounts[0],
		"factory":       factory,
		"name":          "Bad",
		"beneficiaries": []string{f.accounts[1]},
		"shares":        []uint32{60},
	})
	require.NotNil(t, resp.Error)
	require.Equal(t, modules.CodeInvalidParams, resp.Error.Code)

	resp = callRPC(t, f.handler, "", "mpa_distribute", map[string]string{"from": f.accounts[0], "address": instance})
	require.NotNil(t, resp.Error)
	require.Equal(t, modules.CodeConflict, resp.Error.Code)

	resp = callRPC(t, f.handler, "", "chain_nope")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)

	resp = callRPC(t, f.handler, "", "chain_getBlock", map[string]uint64{"number": 99})
	require.NotNil(t, resp.Error)
	require.Equal(t, modules.CodeNotFound, resp.Error.Code)
}

func TestWriteMethodsRequireToken(t *testing.T) {
	f := newFixture(t, ServerConfig{AuthToken: testToken})

	resp := callRPC(t, f.handler, "", "mpa_deployFactory", map[string]string{"from": f.accounts[9]})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
	require.Equal(t, http.StatusUnauthorized, resp.Status)

	resp = callRPC(t, f.handler, "wrong", "mpa_deployFactory", map[string]string{"from": f.accounts[9]})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	f.deployFactory(t, testToken)

	// Reads stay open.
	var height uint64
	callRPC(t, f.handler, "", "chain_blockNumber").decode(t, &height)
	require.Equal(t, uint64(1), height)
}

func TestWriteMethodsAreRateLimited(t *testing.T) {
	f := newFixture(t, ServerConfig{RateLimit: 0.001, RateBurst: 1})
	f.deployFactory(t, "")

	resp := callRPC(t, f.handler, "", "mpa_deployFactory", map[string]string{"from": f.accounts[9]})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeRateLimited, resp.Error.Code)
	require.Equal(t, http.StatusTooManyRequests, resp.Status)

	var nonce uint64
	callRPC(t, f.handler, "", "chain_getNonce", map[string]string{"address": f.accounts[9]}).decode(t, &nonce)
	require.Equal(t, uint64(1), nonce)
}

func TestReceiptAndBlockQueries(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	resp := f.send(t, "", f.accounts[1], "5")
	var receipt modules.ReceiptResult
	resp.decode(t, &receipt)
	require.Equal(t, "transfer", receipt.Type)
	require.Equal(t, f.accounts[0], receipt.From)
	require.NotEmpty(t, resp.Header.Get(requestIDHeader))

	var stored modules.ReceiptResult
	callRPC(t, f.handler, "", "chain_getReceipt", map[string]string{"hash": receipt.TransactionHash}).decode(t, &stored)
	require.Equal(t, receipt.TransactionHash, stored.TransactionHash)
	require.Equal(t, uint64(1), stored.BlockNumber)

	var block modules.BlockResult
	callRPC(t, f.handler, "", "chain_getBlock").decode(t, &block)
	require.Equal(t, uint64(1), block.Number)
	require.Equal(t, []string{receipt.TransactionHash}, block.Transactions)

	var account modules.AccountResult
	callRPC(t, f.handler, "", "chain_getAccount", map[string]string{"address": f.accounts[1]}).decode(t, &account)
	want := genesis.EtherToWei(100)
	want.Add(want, big.NewInt(5))
	require.Equal(t, want.String(), account.Balance)
}

func TestEventsFromRingAndIndex(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	factory := f.deployFactory(t, "")
	f.create(t, "", factory)

	var events []modules.EventResult
	callRPC(t, f.handler, "", "mpa_events", map[string]string{"type": mpa.EventTypeCreated}).decode(t, &events)
	require.Len(t, events, 1)
	require.Equal(t, uint64(2), events[0].Height)

	idx, err := indexer.Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	node := newTestNode(t)
	node.AddReceiptSink(idx)
	handler := newTestServer(t, node, ServerConfig{Index: idx})
	var accounts []string
	callRPC(t, handler, "", "chain_accounts").decode(t, &accounts)
	var receipt modules.ReceiptResult
	callRPC(t, handler, "", "mpa_deployFactory", map[string]string{"from": accounts[9]}).decode(t, &receipt)

	callRPC(t, handler, "", "mpa_events", map[string]string{"address": receipt.ContractAddress}).decode(t, &events)
	require.Len(t, events, 1)
	require.Equal(t, mpa.EventTypeFactoryDeployed, events[0].Type)

	indexed, err := idx.Events(context.Background(), indexer.EventFilter{})
	require.NoError(t, err)
	require.Len(t, indexed, 1)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	handler := newTestServer(t, newTestNode(t), ServerConfig{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	callRPC(t, handler, "", "chain_blockNumber")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "mpachain_module_requests_total")
}

func TestRejectsMalformedRequests(t *testing.T) {
	handler := newTestServer(t, newTestNode(t), ServerConfig{MaxBodyBytes: 64})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader("{")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid JSON payload")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(strings.Repeat(" ", 128)+"{}")))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
