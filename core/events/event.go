package events

import "mpachain/core/types"

// Event represents a structured state change emitted by the chain.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render themselves as the
// canonical key/value form stored in receipts and the index.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Collector buffers emitted payloads until they are drained. Events that do
// not implement Payload are dropped.
type Collector struct {
	events []types.Event
}

func (c *Collector) Emit(evt Event) {
	if c == nil || evt == nil {
		return
	}
	payload, ok := evt.(Payload)
	if !ok {
		return
	}
	rendered := payload.Event()
	if rendered == nil {
		return
	}
	attrs := make(map[string]string, len(rendered.Attributes))
	for k, v := range rendered.Attributes {
		attrs[k] = v
	}
	c.events = append(c.events, types.Event{Type: rendered.Type, Attributes: attrs})
}

// Drain returns the buffered events and resets the collector.
func (c *Collector) Drain() []types.Event {
	if c == nil {
		return nil
	}
	out := c.events
	c.events = nil
	return out
}
