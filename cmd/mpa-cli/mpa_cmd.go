package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"mpachain/core/types"
	"mpachain/crypto"
)

// beneficiaryList collects repeated --beneficiary ADDR:SHARE flags.
type beneficiaryList struct {
	addrs  []string
	raw    [][]byte
	shares []uint32
}

func (b *beneficiaryList) String() string {
	parts := make([]string, len(b.addrs))
	for i := range b.addrs {
		parts[i] = fmt.Sprintf("%s:%d", b.addrs[i], b.shares[i])
	}
	return strings.Join(parts, ",")
}

func (b *beneficiaryList) Set(value string) error {
	idx := strings.LastIndex(value, ":")
	if idx <= 0 || idx == len(value)-1 {
		return fmt.Errorf("expected ADDR:SHARE, got %q", value)
	}
	addr, err := crypto.ParseAddress(value[:idx])
	if err != nil {
		return err
	}
	share, err := strconv.ParseUint(strings.TrimSpace(value[idx+1:]), 10, 32)
	if err != nil {
		return fmt.Errorf("share %q: %v", value[idx+1:], err)
	}
	b.addrs = append(b.addrs, addr.String())
	b.raw = append(b.raw, addr.Bytes())
	b.shares = append(b.shares, uint32(share))
	return nil
}

func runFactoryCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		return printError(stderr, "usage: factory <deploy|get> ...")
	}
	switch args[0] {
	case "deploy":
		fs := newFlagSet("factory deploy", stderr)
		var signer signerFlags
		signer.register(fs)
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if err := signer.validate(); err != nil {
			return printError(stderr, err.Error())
		}
		result, rpcErr, err := signer.submit("mpa_deployFactory", nil, func() (*types.Transaction, error) {
			return &types.Transaction{Type: types.TxTypeDeployFactory}, nil
		})
		return finish(stdout, stderr, result, rpcErr, err)
	case "get":
		if len(args) != 2 {
			return printError(stderr, "usage: factory get <factory>")
		}
		return lookup("mpa_getFactory", args[1], stdout, stderr)
	default:
		return printError(stderr, fmt.Sprintf("unknown factory subcommand %q", args[0]))
	}
}

func runCreateCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("create", stderr)
	var signer signerFlags
	signer.register(fs)
	factory := fs.String("factory", "", "Factory address")
	name := fs.String("name", "", "Agreement name")
	description := fs.String("description", "", "Agreement description")
	locked := fs.Bool("locked", false, "Hold payouts until the owner unlocks")
	var beneficiaries beneficiaryList
	fs.Var(&beneficiaries, "beneficiary", "Beneficiary as ADDR:SHARE (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := signer.validate(); err != nil {
		return printError(stderr, err.Error())
	}
	factoryBytes, err := parseAddressFlag("factory", *factory)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if strings.TrimSpace(*name) == "" {
		return printError(stderr, "--name is required")
	}
	if len(beneficiaries.addrs) == 0 {
		return printError(stderr, "at least one --beneficiary is required")
	}
	params := map[string]interface{}{
		"factory":       strings.TrimSpace(*factory),
		"name":          *name,
		"description":   *description,
		"beneficiaries": beneficiaries.addrs,
		"shares":        beneficiaries.shares,
		"locked":        *locked,
	}
	result, rpcErr, err := signer.submit("mpa_create", params, func() (*types.Transaction, error) {
		data, err := types.EncodePayload(types.CreateMPAPayload{
			Name:          *name,
			Description:   *description,
			Beneficiaries: beneficiaries.raw,
			Shares:        beneficiaries.shares,
			Locked:        *locked,
		})
		if err != nil {
			return nil, err
		}
		return &types.Transaction{Type: types.TxTypeCreateMPA, To: factoryBytes, Data: data}, nil
	})
	return finish(stdout, stderr, result, rpcErr, err)
}

func runGetCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		return printError(stderr, "usage: get <mpa>")
	}
	return lookup("mpa_get", args[0], stdout, stderr)
}

func lookup(method, address string, stdout, stderr io.Writer) int {
	if _, err := crypto.ParseAddress(address); err != nil {
		return printError(stderr, err.Error())
	}
	result, rpcErr, err := rpcCall(method, map[string]string{"address": strings.TrimSpace(address)}, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runOwnedCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("owned", stderr)
	factory := fs.String("factory", "", "Factory address")
	owner := fs.String("owner", "", "Owner address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if _, err := parseAddressFlag("factory", *factory); err != nil {
		return printError(stderr, err.Error())
	}
	if _, err := parseAddressFlag("owner", *owner); err != nil {
		return printError(stderr, err.Error())
	}
	params := map[string]string{
		"factory": strings.TrimSpace(*factory),
		"owner":   strings.TrimSpace(*owner),
	}
	result, rpcErr, err := rpcCall("mpa_ownedMPAs", params, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runFreezeCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("freeze", stderr)
	var signer signerFlags
	signer.register(fs)
	address := fs.String("address", "", "Agreement address")
	frozen := fs.Bool("frozen", true, "Freeze (true) or thaw (false) the agreement")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := signer.validate(); err != nil {
		return printError(stderr, err.Error())
	}
	target, err := parseAddressFlag("address", *address)
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := map[string]interface{}{
		"address": strings.TrimSpace(*address),
		"frozen":  *frozen,
	}
	result, rpcErr, err := signer.submit("mpa_freeze", params, func() (*types.Transaction, error) {
		data, err := types.EncodePayload(types.FreezeMPAPayload{Frozen: *frozen})
		if err != nil {
			return nil, err
		}
		return &types.Transaction{Type: types.TxTypeFreezeMPA, To: target, Data: data}, nil
	})
	return finish(stdout, stderr, result, rpcErr, err)
}

// runTargetedCommand handles unlock and distribute, which only name the
// agreement they act on.
func runTargetedCommand(action string, args []string, stdout, stderr io.Writer) int {
	txType := types.TxTypeUnlockMPA
	if action == "distribute" {
		txType = types.TxTypeDistributeMPA
	}
	fs := newFlagSet(action, stderr)
	var signer signerFlags
	signer.register(fs)
	address := fs.String("address", "", "Agreement address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := signer.validate(); err != nil {
		return printError(stderr, err.Error())
	}
	target, err := parseAddressFlag("address", *address)
	if err != nil {
		return printError(stderr, err.Error())
	}
	params := map[string]interface{}{"address": strings.TrimSpace(*address)}
	result, rpcErr, err := signer.submit("mpa_"+action, params, func() (*types.Transaction, error) {
		return &types.Transaction{Type: txType, To: target}, nil
	})
	return finish(stdout, stderr, result, rpcErr, err)
}

func runEventsCommand(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events", stderr)
	eventType := fs.String("type", "", "Event type filter, e.g. mpa.frozen")
	address := fs.String("address", "", "Agreement or factory address filter")
	fromHeight := fs.Uint64("from-height", 0, "Only events at or above this height")
	limit := fs.Int("limit", 0, "Maximum number of events")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *limit < 0 {
		return printError(stderr, "--limit must not be negative")
	}
	params := map[string]interface{}{}
	if v := strings.TrimSpace(*eventType); v != "" {
		params["type"] = v
	}
	if v := strings.TrimSpace(*address); v != "" {
		if _, err := crypto.ParseAddress(v); err != nil {
			return printError(stderr, err.Error())
		}
		params["address"] = v
	}
	if *fromHeight > 0 {
		params["fromHeight"] = *fromHeight
	}
	if *limit > 0 {
		params["limit"] = *limit
	}
	result, rpcErr, err := rpcCall("mpa_events", params, false)
	return finish(stdout, stderr, result, rpcErr, err)
}
