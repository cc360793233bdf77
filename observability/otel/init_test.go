package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "mpad"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracesShutsDownCleanly(t *testing.T) {
	// The exporter connects lazily, so no collector needs to be running.
	shutdown, err := Init(context.Background(), Config{
		ServiceName: "mpad",
		Environment: "test",
		Endpoint:    "127.0.0.1:1",
		Insecure:    true,
		Traces:      true,
		SampleRatio: 0.5,
	})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = shutdown(ctx)
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc ,broken, =nokey,x=1")
	require.Equal(t, map[string]string{"api-key": "abc", "x": "1"}, got)
	require.Empty(t, ParseHeaders(""))
}
