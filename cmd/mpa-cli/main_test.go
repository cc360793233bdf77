package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mpachain/cmd/internal/passphrase"
	"mpachain/core/types"
	"mpachain/crypto"
)

type recordedCall struct {
	method      string
	params      interface{}
	requireAuth bool
}

// stubRPC replaces rpcCall for the duration of the test. respond returns the
// result for each method; unknown methods fail the test.
func stubRPC(t *testing.T, respond func(method string, params interface{}) (interface{}, *rpcError)) *[]recordedCall {
	t.Helper()
	calls := &[]recordedCall{}
	original := rpcCall
	rpcCall = func(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
		*calls = append(*calls, recordedCall{method: method, params: params, requireAuth: requireAuth})
		result, rpcErr := respond(method, params)
		if rpcErr != nil {
			return nil, rpcErr, nil
		}
		raw, err := json.Marshal(result)
		require.NoError(t, err)
		return raw, nil, nil
	}
	t.Cleanup(func() { rpcCall = original })
	return calls
}

func testAddress(t *testing.T, index uint32) string {
	t.Helper()
	key, err := crypto.DevKey("cli-test", index)
	require.NoError(t, err)
	return key.PubKey().Address().String()
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsageAndUnknownCommand(t *testing.T) {
	code, _, stderr := runCLI()
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Usage: mpa-cli")

	code, _, stderr = runCLI("bogus")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "Unknown command: bogus")

	code, stdout, _ := runCLI("help")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "factory deploy")
}

func TestApplyGlobalFlags(t *testing.T) {
	original := rpcEndpoint
	t.Cleanup(func() { rpcEndpoint = original })

	rest, err := applyGlobalFlags([]string{"--rpc", "http://node:1", "get", "x"})
	require.NoError(t, err)
	require.Equal(t, []string{"get", "x"}, rest)
	require.Equal(t, "http://node:1", rpcEndpoint)

	rest, err = applyGlobalFlags([]string{"events", "--rpc=http://node:2"})
	require.NoError(t, err)
	require.Equal(t, []string{"events"}, rest)
	require.Equal(t, "http://node:2", rpcEndpoint)

	_, err = applyGlobalFlags([]string{"--rpc"})
	require.Error(t, err)
}

func TestWriteCommandsRequireOneSigner(t *testing.T) {
	stubRPC(t, func(method string, _ interface{}) (interface{}, *rpcError) {
		t.Fatalf("unexpected RPC call %s", method)
		return nil, nil
	})
	addr := testAddress(t, 0)

	code, _, stderr := runCLI("unlock", "--address", addr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "either --from or --key is required")

	code, _, stderr = runCLI("unlock", "--address", addr, "--from", addr, "--key", "k.json")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "mutually exclusive")

	code, _, stderr = runCLI("create", "--from", addr, "--factory", addr, "--name", "x")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "at least one --beneficiary")
}

func TestCreateWithDevAccount(t *testing.T) {
	owner := testAddress(t, 0)
	factory := testAddress(t, 1)
	b1 := testAddress(t, 2)
	b2 := testAddress(t, 3)
	calls := stubRPC(t, func(method string, _ interface{}) (interface{}, *rpcError) {
		require.Equal(t, "mpa_create", method)
		return map[string]interface{}{"status": "success", "contractAddress": "mpa1xyz"}, nil
	})

	code, stdout, stderr := runCLI("create",
		"--from", owner,
		"--factory", factory,
		"--name", "Test",
		"--description", "This contract is to be locked",
		"--beneficiary", b1+":50",
		"--beneficiary", b2+":50",
		"--locked")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "mpa1xyz")
	require.Len(t, *calls, 1)

	call := (*calls)[0]
	require.True(t, call.requireAuth)
	params := call.params.(map[string]interface{})
	require.Equal(t, owner, params["from"])
	require.Equal(t, factory, params["factory"])
	require.Equal(t, []string{b1, b2}, params["beneficiaries"])
	require.Equal(t, []uint32{50, 50}, params["shares"])
	require.Equal(t, true, params["locked"])
}

func TestFreezeWithKeystoreSignsLocally(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	keyPath := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, crypto.SaveToKeystoreWithParams(keyPath, key, "pw", crypto.LightScrypt))

	originalPass := newPassSource
	newPassSource = func() *passphrase.Source { return passphrase.Static("pw") }
	t.Cleanup(func() { newPassSource = originalPass })

	target := testAddress(t, 5)
	var sent *types.Transaction
	calls := stubRPC(t, func(method string, params interface{}) (interface{}, *rpcError) {
		switch method {
		case "chain_chainId":
			return uint64(1337), nil
		case "chain_getNonce":
			require.Equal(t, map[string]string{"address": key.PubKey().Address().String()}, params)
			return uint64(4), nil
		case "chain_sendRawTransaction":
			sent = params.(*types.Transaction)
			return map[string]interface{}{"status": "success"}, nil
		}
		t.Fatalf("unexpected RPC call %s", method)
		return nil, nil
	})

	code, _, stderr := runCLI("freeze", "--key", keyPath, "--address", target, "--frozen=false")
	require.Equal(t, 0, code, stderr)
	require.Len(t, *calls, 3)
	require.NotNil(t, sent)

	require.Equal(t, types.TxTypeFreezeMPA, sent.Type)
	require.Equal(t, uint64(1337), sent.ChainID)
	require.Equal(t, uint64(4), sent.Nonce)
	from, err := sent.From()
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address().Bytes(), from)

	var payload types.FreezeMPAPayload
	require.NoError(t, json.Unmarshal(sent.Data, &payload))
	require.False(t, payload.Frozen)
}

func TestRevertedWriteReportsReceipt(t *testing.T) {
	addr := testAddress(t, 0)
	stubRPC(t, func(string, interface{}) (interface{}, *rpcError) {
		return nil, &rpcError{
			Code:    -32024,
			Message: "mpa: agreement is frozen",
			Data:    json.RawMessage(`{"status":"failed"}`),
		}
	})
	code, _, stderr := runCLI("distribute", "--from", addr, "--address", testAddress(t, 1))
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "RPC error -32024: mpa: agreement is frozen")
	require.Contains(t, stderr, `"status": "failed"`)
}

func TestEventsBuildsFilter(t *testing.T) {
	addr := testAddress(t, 0)
	calls := stubRPC(t, func(string, interface{}) (interface{}, *rpcError) {
		return []interface{}{}, nil
	})
	code, _, stderr := runCLI("events", "--type", "mpa.frozen", "--address", addr, "--from-height", "3", "--limit", "5")
	require.Equal(t, 0, code, stderr)
	require.Equal(t, "mpa_events", (*calls)[0].method)
	require.False(t, (*calls)[0].requireAuth)
	require.Equal(t, map[string]interface{}{
		"type":       "mpa.frozen",
		"address":    addr,
		"fromHeight": uint64(3),
		"limit":      5,
	}, (*calls)[0].params)
}

func TestCallRPCSendsBearerToken(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":7}`))
	}))
	defer srv.Close()

	originalEndpoint, originalToken := rpcEndpoint, rpcAuthToken
	rpcEndpoint, rpcAuthToken = srv.URL, "s3cret"
	t.Cleanup(func() { rpcEndpoint, rpcAuthToken = originalEndpoint, originalToken })

	result, rpcErr, err := callRPC("chain_blockNumber", nil, false)
	require.NoError(t, err)
	require.Nil(t, rpcErr)
	require.JSONEq(t, "7", string(result))
	require.Empty(t, gotAuth)
	require.Equal(t, "chain_blockNumber", gotBody["method"])

	_, _, err = callRPC("mpa_unlock", map[string]string{"address": "x"}, true)
	require.NoError(t, err)
	require.Equal(t, "Bearer s3cret", gotAuth)
}

func TestBeneficiaryListRejectsMalformed(t *testing.T) {
	var list beneficiaryList
	require.Error(t, list.Set("nocolon"))
	require.Error(t, list.Set(testAddress(t, 0)+":"))
	require.Error(t, list.Set(testAddress(t, 0)+":-1"))
	require.NoError(t, list.Set(testAddress(t, 0)+":25"))
	require.Equal(t, []uint32{25}, list.shares)
}
