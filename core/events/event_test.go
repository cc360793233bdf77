package events

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

type bareEvent struct{}

func (bareEvent) EventType() string { return "bare" }

func TestCollectorKeepsPayloadsInOrder(t *testing.T) {
	var c Collector
	c.Emit(Transfer{From: [20]byte{1}, To: [20]byte{2}, Amount: big.NewInt(7)})
	c.Emit(bareEvent{})
	c.Emit(Transfer{From: [20]byte{2}, To: [20]byte{3}})

	drained := c.Drain()
	require.Len(t, drained, 2)
	require.Equal(t, TypeTransfer, drained[0].Type)
	require.Equal(t, "7", drained[0].Attributes["amount"])
	require.Equal(t, "0", drained[1].Attributes["amount"])
	require.NotContains(t, drained[0].Attributes, "txHash")
	require.Empty(t, c.Drain())
}
