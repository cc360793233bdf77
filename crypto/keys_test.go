package crypto

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressBech32RoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	addr := key.PubKey().Address()

	encoded := addr.String()
	require.True(t, strings.HasPrefix(encoded, "mpa1"))

	decoded, err := ParseAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, addr.Bytes(), decoded.Bytes())

	fromHex, err := ParseAddress(addr.Hex())
	require.NoError(t, err)
	require.Equal(t, addr.Bytes(), fromHex.Bytes())
}

func TestParseAddressRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "0x1234", "notanaddress"} {
		_, err := ParseAddress(input)
		require.Error(t, err, input)
	}
}

func TestDevKeyIsDeterministic(t *testing.T) {
	a, err := DevKey("seed", 0)
	require.NoError(t, err)
	b, err := DevKey("seed", 0)
	require.NoError(t, err)
	c, err := DevKey("seed", 1)
	require.NoError(t, err)

	require.Equal(t, a.Bytes(), b.Bytes())
	require.NotEqual(t, a.Bytes(), c.Bytes())
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "dev.json")

	require.NoError(t, SaveToKeystoreWithParams(path, key, "secret", LightScrypt))
	loaded, err := LoadFromKeystore(path, "secret")
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), loaded.Bytes())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}
