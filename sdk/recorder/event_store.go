package recorder

import (
	"iter"
	"slices"
	"sync"

	"github.com/leandrodaf/midirecorder/sdk/contracts"
)

// EventStore is the ordered, append-only buffer of one recording session.
// Events are kept in capture order; no sorting or deduplication happens on insert.
type EventStore struct {
	mu     sync.RWMutex
	events []contracts.MidiEvent
}

// NewEventStore creates an empty store.
func NewEventStore() *EventStore {
	return &EventStore{}
}

// Append adds an event at the end of the store.
func (s *EventStore) Append(ev contracts.MidiEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

// Clear drops every event.
func (s *EventStore) Clear() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

// Snapshot returns a copy of the events in capture order.
func (s *EventStore) Snapshot() []contracts.MidiEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// All iterates over a snapshot taken when iteration starts.
func (s *EventStore) All() iter.Seq2[int, contracts.MidiEvent] {
	return func(yield func(int, contracts.MidiEvent) bool) {
		for i, ev := range s.Snapshot() {
			if !yield(i, ev) {
				return
			}
		}
	}
}

// Len returns the number of stored events.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// IsEmpty reports whether nothing has been recorded.
func (s *EventStore) IsEmpty() bool {
	return s.Len() == 0
}
