package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part used when rendering addresses.
type AddressPrefix string

const MPAPrefix AddressPrefix = "mpa"

var errAddressLength = errors.New("crypto: address must be 20 bytes long")

// Address is a 20-byte ledger address with its bech32 prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != common.AddressLength {
		panic("address must be 20 bytes long")
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}
}

// MustAddress renders raw bytes with the default prefix.
func MustAddress(b [20]byte) Address {
	return NewAddress(MPAPrefix, b[:])
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Hex renders the address as a checksummed 0x string.
func (a Address) Hex() string {
	return common.BytesToAddress(a.bytes).Hex()
}

func (a Address) Bytes() []byte {
	return a.bytes
}

// Array returns a fixed size copy of the address bytes.
func (a Address) Array() [20]byte {
	var out [20]byte
	copy(out[:], a.bytes)
	return out
}

func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != common.AddressLength {
		return Address{}, errAddressLength
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// ParseAddress accepts either a 0x-prefixed hex address or a bech32 string.
func ParseAddress(value string) (Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Address{}, errors.New("crypto: empty address")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		if !common.IsHexAddress(trimmed) {
			return Address{}, fmt.Errorf("crypto: invalid hex address %q", trimmed)
		}
		return NewAddress(MPAPrefix, common.HexToAddress(trimmed).Bytes()), nil
	}
	addr, err := DecodeAddress(trimmed)
	if err != nil {
		return Address{}, err
	}
	if addr.Prefix() != MPAPrefix {
		return Address{}, fmt.Errorf("crypto: unexpected address prefix %q", addr.Prefix())
	}
	return addr, nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// DevKey deterministically derives the index-th development key from seed.
// The same seed always yields the same genesis accounts.
func DevKey(seed string, index uint32) (*PrivateKey, error) {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)
	for counter := byte(0); counter < 8; counter++ {
		digest := crypto.Keccak256([]byte(seed), idx[:], []byte{counter})
		key, err := crypto.ToECDSA(digest)
		if err == nil {
			return &PrivateKey{key}, nil
		}
	}
	return nil, fmt.Errorf("crypto: unable to derive dev key %d", index)
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

func (k *PublicKey) Address() Address {
	addrBytes := crypto.PubkeyToAddress(*k.PublicKey).Bytes()
	return NewAddress(MPAPrefix, addrBytes)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
