package recorder

import (
	"github.com/leandrodaf/midirecorder/sdk/contracts"
)

const activeSensing = 0xFE

// MessageLength returns the full length, status byte included, of the message
// that starts with status. Bytes that are neither channel nor system-common
// statuses count as single-byte messages.
func MessageLength(status byte) int {
	switch status & 0xF0 {
	case 0x80, 0x90, 0xA0, 0xB0, 0xE0:
		return 3
	case 0xC0, 0xD0:
		return 2
	}
	switch status {
	case 0xF1, 0xF3:
		return 2
	case 0xF2:
		return 3
	}
	return 1
}

// Segmenter splits transport byte batches into single MIDI messages and appends
// them to an EventStore with offsets relative to the first recorded message.
//
// A message cut off by the end of a batch is dropped together with the rest of the
// batch; partial tails are not carried over to the next call.
//
// Receive must not be called concurrently with itself.
type Segmenter struct {
	store   *EventStore
	filter  *contracts.MIDIEventFilter
	onInput func()
	logger  contracts.Logger

	startTime int64
	started   bool
	notified  bool
}

// NewSegmenter creates a segmenter writing to store.
func NewSegmenter(store *EventStore, opts ...contracts.SessionOption) *Segmenter {
	return newSegmenter(store, applySessionOptions(opts...))
}

func newSegmenter(store *EventStore, options contracts.SessionOptions) *Segmenter {
	return &Segmenter{
		store:   store,
		filter:  options.MIDIEventFilter,
		onInput: options.OnInputDetected,
		logger:  options.Logger,
	}
}

// Receive implements contracts.Receiver.
func (s *Segmenter) Receive(msg []byte, offset, count int, timestamp int64) {
	if offset < 0 || count <= 0 || offset >= len(msg) {
		return
	}
	end := min(offset+count, len(msg))

	for i := offset; i < end; {
		status := msg[i]
		if status == activeSensing {
			i++
			continue
		}

		length := MessageLength(status)
		if i+length > end {
			s.logger.Debug("Dropping truncated MIDI message",
				s.logger.Field().Hex("tail", msg[i:end]),
				s.logger.Field().Int("expected", length))
			return
		}

		if s.filter.Allows(status) {
			s.record(msg[i:i+length], timestamp)
		}
		i += length
	}
}

// Reset forgets the session epoch and re-arms the input-detected callback.
func (s *Segmenter) Reset() {
	s.started = false
	s.startTime = 0
	s.notified = false
}

func (s *Segmenter) record(message []byte, timestamp int64) {
	if !s.started {
		s.startTime = timestamp
		s.started = true
	}
	if !s.notified {
		s.notified = true
		if s.onInput != nil {
			s.onInput()
		}
	}

	data := make([]byte, len(message))
	copy(data, message)
	s.store.Append(contracts.MidiEvent{Data: data, TimestampOffset: timestamp - s.startTime})
}
