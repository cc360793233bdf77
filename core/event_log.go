package core

import (
	"sync"

	"mpachain/core/types"
)

// EventRecord is an emitted event together with the block and transaction
// that produced it.
type EventRecord struct {
	Height uint64      `json:"height"`
	TxHash []byte      `json:"txHash"`
	Index  int         `json:"index"`
	Event  types.Event `json:"event"`
}

// eventLog is a fixed-size ring of the most recent events.
type eventLog struct {
	mu      sync.RWMutex
	records []EventRecord
	next    int
	full    bool
}

func newEventLog(size int) *eventLog {
	if size <= 0 {
		size = 1
	}
	return &eventLog{records: make([]EventRecord, size)}
}

func (l *eventLog) append(records ...EventRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range records {
		l.records[l.next] = rec
		l.next++
		if l.next == len(l.records) {
			l.next = 0
			l.full = true
		}
	}
}

// recent returns up to limit records, oldest first. An empty eventType
// matches everything and a non-positive limit returns every match.
func (l *eventLog) recent(eventType string, limit int) []EventRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ordered := make([]EventRecord, 0, len(l.records))
	if l.full {
		ordered = append(ordered, l.records[l.next:]...)
	}
	ordered = append(ordered, l.records[:l.next]...)

	out := make([]EventRecord, 0)
	for i := len(ordered) - 1; i >= 0; i-- {
		if eventType != "" && ordered[i].Event.Type != eventType {
			continue
		}
		out = append(out, ordered[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
