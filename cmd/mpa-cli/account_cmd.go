package main

import (
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"mpachain/core/types"
	"mpachain/crypto"
)

func runGenerateKeyCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("generate-key", stderr)
	out := fs.String("out", "wallet.json", "Keystore file to write")
	light := fs.Bool("light", false, "Use the light scrypt cost (tests and throwaway keys only)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	pass, err := newPassSource().Get()
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := crypto.StandardScrypt
	if *light {
		params = crypto.LightScrypt
	}
	if err := crypto.SaveToKeystoreWithParams(*out, key, pass, params); err != nil {
		return printError(stderr, fmt.Sprintf("save keystore: %v", err))
	}
	fmt.Fprintf(stdout, "Generated new key and saved to %s\n", *out)
	fmt.Fprintf(stdout, "Address: %s\n", key.PubKey().Address().String())
	return 0
}

func runAddressCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("address", stderr)
	keyFile := fs.String("key", "wallet.json", "Keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := loadKey(*keyFile)
	if err != nil {
		return printError(stderr, err.Error())
	}
	addr := key.PubKey().Address()
	fmt.Fprintf(stdout, "%s\n%s\n", addr.String(), addr.Hex())
	return 0
}

func runAccountsCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) != 0 {
		return printError(stderr, "accounts takes no arguments")
	}
	result, rpcErr, err := rpcCall("chain_accounts", nil, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runBalanceCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		return printError(stderr, "usage: balance <address>")
	}
	if _, err := crypto.ParseAddress(args[0]); err != nil {
		return printError(stderr, err.Error())
	}
	result, rpcErr, err := rpcCall("chain_getAccount", map[string]string{"address": strings.TrimSpace(args[0])}, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runSendCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("send", stderr)
	var signer signerFlags
	signer.register(fs)
	to := fs.String("to", "", "Recipient address (account or agreement)")
	value := fs.String("value", "", "Amount in wei")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := signer.validate(); err != nil {
		return printError(stderr, err.Error())
	}
	toBytes, err := parseAddressFlag("to", *to)
	if err != nil {
		return printError(stderr, err.Error())
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(*value), 10)
	if !ok || amount.Sign() < 0 {
		return printError(stderr, "--value must be a non-negative integer amount in wei")
	}
	params := map[string]interface{}{
		"type":  types.TxTypeTransfer.String(),
		"to":    strings.TrimSpace(*to),
		"value": amount.String(),
	}
	result, rpcErr, err := signer.submit("chain_sendTransaction", params, func() (*types.Transaction, error) {
		return &types.Transaction{Type: types.TxTypeTransfer, To: toBytes, Value: amount}, nil
	})
	return finish(stdout, stderr, result, rpcErr, err)
}

func runReceiptCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return printError(stderr, "usage: receipt <tx-hash>")
	}
	result, rpcErr, err := rpcCall("chain_getReceipt", map[string]string{"hash": strings.TrimSpace(args[0])}, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runBlockCommand(args []string, stdout, stderr io.Writer) int {
	params := map[string]interface{}{}
	switch len(args) {
	case 0:
	case 1:
		height, err := strconv.ParseUint(strings.TrimSpace(args[0]), 10, 64)
		if err != nil {
			return printError(stderr, "block height must be an unsigned integer")
		}
		params["number"] = height
	default:
		return printError(stderr, "usage: block [height]")
	}
	result, rpcErr, err := rpcCall("chain_getBlock", params, false)
	return finish(stdout, stderr, result, rpcErr, err)
}
