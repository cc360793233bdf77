package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRenamesKeysAndTeesToFile(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "node.log")
	logger := SetupWithOptions(Options{Service: "mpad", Env: "test", Writer: &buf, File: file, MaxSizeMB: 1})

	logger.Info("sealed block", slog.Uint64("height", 3))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "sealed block", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "mpad", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), "sealed block")
}

func TestSetupHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions(Options{Service: "mpad", Level: "warn", Writer: &buf})
	logger.Info("dropped")
	require.Zero(t, buf.Len())
	logger.Warn("kept")
	require.Contains(t, buf.String(), "kept")
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("token", "secret").Value.String())
	require.Equal(t, "rpc", MaskField("component", "rpc").Value.String())
	require.Equal(t, "", MaskField("token", "").Value.String())
	require.Contains(t, RedactionAllowlist(), "method")
}
