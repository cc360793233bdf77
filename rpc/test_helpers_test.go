package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"mpachain/core"
	"mpachain/core/genesis"
	"mpachain/storage"
)

const testToken = "rpc-test-token"

func newTestNode(t testing.TB) *core.Node {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	node, err := core.NewNode(db, core.Options{
		ChainID: 1337,
		Genesis: genesis.Spec{Seed: "rpc-test", Accounts: 10, BalanceEther: 100},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return node
}

func newTestServer(t testing.TB, node *core.Node, cfg ServerConfig) http.Handler {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return NewServer(node, cfg).Handler()
}

type testResponse struct {
	Status int
	Header http.Header
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (r *testResponse) decode(t testing.TB, out interface{}) {
	t.Helper()
	require.Nil(t, r.Error, "unexpected rpc error: %+v", r.Error)
	require.NoError(t, json.Unmarshal(r.Result, out))
}

func callRPC(t testing.TB, handler http.Handler, token, method string, params ...interface{}) *testResponse {
	t.Helper()
	rawParams := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		require.NoError(t, err)
		rawParams = append(rawParams, encoded)
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  rawParams,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := &testResponse{Status: rec.Code, Header: rec.Header()}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), resp))
	return resp
}
