package events

import (
	"encoding/hex"
	"math/big"
	"strings"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func zeroBytes(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func hexBytes(b []byte) string {
	return "0x" + strings.ToLower(hex.EncodeToString(b))
}
