package rpc

import (
	"sync"
	"time"

	"bridgeledger/core/events"
)

// FeedEntry is a single event captured by the in-memory feed.
type FeedEntry struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	ObservedAt time.Time         `json:"observedAt"`
}

// EventFeed retains the most recent committed events for the API's event
// endpoint. It implements events.Emitter.
type EventFeed struct {
	mu      sync.Mutex
	entries []FeedEntry
	limit   int
	clock   func() time.Time
}

// NewEventFeed constructs a feed retaining at most limit entries.
func NewEventFeed(limit int) *EventFeed {
	if limit <= 0 {
		limit = 256
	}
	return &EventFeed{limit: limit, clock: time.Now}
}

// SetClock overrides the time source for deterministic tests.
func (f *EventFeed) SetClock(clock func() time.Time) {
	if f == nil || clock == nil {
		return
	}
	f.clock = clock
}

// Emit records the event, evicting the oldest entry once the limit is hit.
func (f *EventFeed) Emit(evt events.Event) {
	if f == nil || evt == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, FeedEntry{
		Type:       evt.EventType(),
		Attributes: evt.Attributes(),
		ObservedAt: f.clock().UTC(),
	})
	if len(f.entries) > f.limit {
		f.entries = f.entries[len(f.entries)-f.limit:]
	}
}

// Recent returns up to n most recent entries, newest last.
func (f *EventFeed) Recent(n int) []FeedEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 || n > len(f.entries) {
		n = len(f.entries)
	}
	out := make([]FeedEntry, n)
	copy(out, f.entries[len(f.entries)-n:])
	return out
}
