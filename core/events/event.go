package events

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
	Attributes() map[string]string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC feeds,
// indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects events during an operation so they can be released only
// once the operation's state changes have committed.
type Buffer struct {
	events []Event
}

// NewBuffer returns an empty event buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Emit stages the event.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Flush forwards all staged events to the provided emitter and clears the
// buffer. A nil emitter simply drops the staged events.
func (b *Buffer) Flush(sink Emitter) {
	if b == nil {
		return
	}
	if sink != nil {
		for _, evt := range b.events {
			sink.Emit(evt)
		}
	}
	b.events = nil
}
