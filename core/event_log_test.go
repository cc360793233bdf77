package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mpachain/core/types"
)

func record(height uint64, eventType string) EventRecord {
	return EventRecord{Height: height, Event: types.Event{Type: eventType}}
}

func TestEventLogWrapsAndFilters(t *testing.T) {
	log := newEventLog(3)
	log.append(record(1, "a"), record(2, "b"), record(3, "a"), record(4, "b"))

	all := log.recent("", 0)
	require.Len(t, all, 3)
	require.Equal(t, []uint64{2, 3, 4}, []uint64{all[0].Height, all[1].Height, all[2].Height})

	onlyA := log.recent("a", 0)
	require.Len(t, onlyA, 1)
	require.Equal(t, uint64(3), onlyA[0].Height)

	latest := log.recent("", 1)
	require.Len(t, latest, 1)
	require.Equal(t, uint64(4), latest[0].Height)
}

func TestEventLogEmpty(t *testing.T) {
	log := newEventLog(0)
	require.Empty(t, log.recent("", 10))
}
