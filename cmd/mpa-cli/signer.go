package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strings"

	"mpachain/core/types"
	"mpachain/crypto"
)

// signerFlags selects who authorises a write: a development account held by
// the node (--from) or a local keystore (--key).
type signerFlags struct {
	from    string
	keyFile string
}

func (s *signerFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.from, "from", "", "Development account managed by the node")
	fs.StringVar(&s.keyFile, "key", "", "Keystore file used to sign locally")
}

func (s *signerFlags) validate() error {
	from := strings.TrimSpace(s.from)
	key := strings.TrimSpace(s.keyFile)
	switch {
	case from == "" && key == "":
		return errors.New("either --from or --key is required")
	case from != "" && key != "":
		return errors.New("--from and --key are mutually exclusive")
	case from != "":
		if _, err := crypto.ParseAddress(from); err != nil {
			return fmt.Errorf("--from: %v", err)
		}
	}
	return nil
}

// submit sends a state changing call. With --from the node signs through
// method; with --key the transaction from build is signed locally and sent
// raw.
func (s *signerFlags) submit(method string, params map[string]interface{}, build func() (*types.Transaction, error)) (json.RawMessage, *rpcError, error) {
	if strings.TrimSpace(s.keyFile) == "" {
		if params == nil {
			params = map[string]interface{}{}
		}
		params["from"] = strings.TrimSpace(s.from)
		return rpcCall(method, params, true)
	}

	key, err := loadKey(s.keyFile)
	if err != nil {
		return nil, nil, err
	}
	tx, err := build()
	if err != nil {
		return nil, nil, err
	}
	chainID, rpcErr, err := fetchUint("chain_chainId", nil)
	if err != nil || rpcErr != nil {
		return nil, rpcErr, err
	}
	sender := key.PubKey().Address()
	nonce, rpcErr, err := fetchUint("chain_getNonce", map[string]string{"address": sender.String()})
	if err != nil || rpcErr != nil {
		return nil, rpcErr, err
	}
	tx.ChainID = chainID
	tx.Nonce = nonce
	if err := tx.Sign(key.PrivateKey); err != nil {
		return nil, nil, fmt.Errorf("sign transaction: %w", err)
	}
	return rpcCall("chain_sendRawTransaction", tx, true)
}

func fetchUint(method string, params interface{}) (uint64, *rpcError, error) {
	result, rpcErr, err := rpcCall(method, params, false)
	if err != nil || rpcErr != nil {
		return 0, rpcErr, err
	}
	var out uint64
	if err := json.Unmarshal(result, &out); err != nil {
		return 0, nil, fmt.Errorf("decode %s result: %w", method, err)
	}
	return out, nil, nil
}

func loadKey(path string) (*crypto.PrivateKey, error) {
	pass, err := newPassSource().Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(strings.TrimSpace(path), pass)
	if err != nil {
		return nil, fmt.Errorf("load keystore %s: %w", path, err)
	}
	return key, nil
}

func parseAddressFlag(name, value string) ([]byte, error) {
	if strings.TrimSpace(value) == "" {
		return nil, fmt.Errorf("--%s is required", name)
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %v", name, err)
	}
	return addr.Bytes(), nil
}
