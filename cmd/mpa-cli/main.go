package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"mpachain/cmd/internal/passphrase"
)

const (
	rpcTokenEnv = "MPA_RPC_TOKEN"
	keyPassEnv  = "MPA_KEY_PASS"
)

var (
	rpcEndpoint  = defaultRPCEndpoint()
	rpcAuthToken = strings.TrimSpace(os.Getenv(rpcTokenEnv))
	rpcClient    = &http.Client{Timeout: 30 * time.Second}

	// rpcCall is swapped out by tests.
	rpcCall = callRPC

	newPassSource = func() *passphrase.Source {
		return passphrase.NewSource(keyPassEnv)
	}
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}
	command, rest := args[0], args[1:]
	switch command {
	case "generate-key":
		return runGenerateKeyCommand(rest, stdout, stderr)
	case "address":
		return runAddressCommand(rest, stdout, stderr)
	case "accounts":
		return runAccountsCommand(rest, stdout, stderr)
	case "balance":
		return runBalanceCommand(rest, stdout, stderr)
	case "send":
		return runSendCommand(rest, stdout, stderr)
	case "receipt":
		return runReceiptCommand(rest, stdout, stderr)
	case "block":
		return runBlockCommand(rest, stdout, stderr)
	case "factory":
		return runFactoryCommand(rest, stdout, stderr)
	case "create":
		return runCreateCommand(rest, stdout, stderr)
	case "get":
		return runGetCommand(rest, stdout, stderr)
	case "owned":
		return runOwnedCommand(rest, stdout, stderr)
	case "freeze":
		return runFreezeCommand(rest, stdout, stderr)
	case "unlock":
		return runTargetedCommand("unlock", rest, stdout, stderr)
	case "distribute":
		return runTargetedCommand("distribute", rest, stdout, stderr)
	case "events":
		return runEventsCommand(rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n%s\n", command, usage())
		return 1
	}
}

func usage() string {
	return strings.TrimSpace(`
Usage: mpa-cli [--rpc URL] <command> [flags]

Accounts:
  generate-key [--out wallet.json]           Create an encrypted keystore
  address --key FILE                         Print the address of a keystore
  accounts                                   List the node's development accounts
  balance <address>                          Show balance and nonce
  send --to ADDR --value WEI SIGNER          Transfer value

Chain:
  receipt <tx-hash>                          Show a transaction receipt
  block [height]                             Show a block (default: tip)

Agreements:
  factory deploy SIGNER                      Deploy a factory owned by the signer
  factory get <factory>                      Show a factory
  create --factory ADDR --name NAME --beneficiary ADDR:SHARE... SIGNER
  get <mpa>                                  Show an agreement and its balance
  owned --factory ADDR --owner ADDR          List agreements created by owner
  freeze --address MPA [--frozen=false] SIGNER
  unlock --address MPA SIGNER
  distribute --address MPA SIGNER
  events [--type T] [--address A] [--from-height N] [--limit N]

SIGNER is either --from <dev account> (signed by the node) or
--key <keystore> (signed locally; passphrase from MPA_KEY_PASS or a prompt).
Set MPA_RPC_TOKEN when the node requires a bearer token for writes.`)
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8545"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage())
	}
	return fs
}

func callRPC(method string, params interface{}, requireAuth bool) (json.RawMessage, *rpcError, error) {
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	} else {
		payload["params"] = []interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	resp, err := doRPCRequest(body, requireAuth)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode RPC response: %w", err)
	}
	return rpcResp.Result, rpcResp.Error, nil
}

func doRPCRequest(payload []byte, requireAuth bool) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// Nodes without a configured token accept writes anonymously.
	if requireAuth && rpcAuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+rpcAuthToken)
	}
	resp, err := rpcClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	return resp, nil
}

func printError(w io.Writer, msg string) int {
	fmt.Fprintf(w, "Error: %s\n", msg)
	return 1
}

func handleRPCError(w io.Writer, err *rpcError) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "RPC error %d: %s\n", err.Code, err.Message)
	if len(err.Data) > 0 && string(err.Data) != "null" {
		fmt.Fprintln(w, indentJSON(err.Data))
	}
	return 1
}

// finish reports the outcome of a single RPC round trip.
func finish(stdout, stderr io.Writer, result json.RawMessage, rpcErr *rpcError, err error) int {
	if err != nil {
		return printError(stderr, err.Error())
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	fmt.Fprintln(stdout, indentJSON(result))
	return 0
}

func indentJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "No result."
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
