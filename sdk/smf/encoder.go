// Package smf encodes captured MIDI sessions as Standard MIDI Files.
//
// Only Format 0 with a single track is produced: a fixed 480 PPQ resolution, one
// Set-Tempo event of 500000 µs per quarter note, the events in timestamp order and
// an End-of-Track event. Encoding is a pure transform; it performs no I/O of its own.
package smf

import (
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/leandrodaf/midirecorder/sdk/contracts"
)

const (
	headerChunkID = "MThd"
	trackChunkID  = "MTrk"

	headerLength = 6
	formatSingle = 0

	metaEvent      = 0xFF
	metaSetTempo   = 0x51
	metaEndOfTrack = 0x2F
)

// Sorted returns a copy of events ordered by TimestampOffset.
// The sort is stable, so events sharing an offset keep their capture order.
func Sorted(events []contracts.MidiEvent) []contracts.MidiEvent {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b contracts.MidiEvent) int {
		switch {
		case a.TimestampOffset < b.TimestampOffset:
			return -1
		case a.TimestampOffset > b.TimestampOffset:
			return 1
		}
		return 0
	})
	return sorted
}

// Encode returns the complete byte sequence of a Format 0 Standard MIDI File
// holding events. The input is neither retained nor modified; an empty input
// still produces a valid, musically empty file.
func Encode(events []contracts.MidiEvent) []byte {
	track := encodeTrack(Sorted(events))

	out := make([]byte, 0, 14+8+len(track))
	out = append(out, headerChunkID...)
	out = binary.BigEndian.AppendUint32(out, headerLength)
	out = binary.BigEndian.AppendUint16(out, formatSingle)
	out = binary.BigEndian.AppendUint16(out, 1)
	out = binary.BigEndian.AppendUint16(out, PPQ)

	out = append(out, trackChunkID...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(track)))
	return append(out, track...)
}

// WriteTo encodes events and writes the file to w.
func WriteTo(w io.Writer, events []contracts.MidiEvent) (int64, error) {
	n, err := w.Write(Encode(events))
	if err != nil {
		return int64(n), fmt.Errorf("write midi file: %w", err)
	}
	return int64(n), nil
}

// appendUint24 appends the low three bytes of v, big-endian.
func appendUint24(dst []byte, v uint32) []byte {
	return append(dst, binary.BigEndian.AppendUint32(nil, v)[1:]...)
}

// encodeTrack builds the MTrk payload for events already sorted by offset.
func encodeTrack(events []contracts.MidiEvent) []byte {
	size := 7 + 4
	for _, ev := range events {
		size += len(ev.Data) + 2
	}
	track := make([]byte, 0, size)

	track = AppendVLQ(track, 0)
	track = append(track, metaEvent, metaSetTempo, 0x03)
	track = appendUint24(track, MicrosPerQuarterNote)

	var lastTimestamp int64
	for _, ev := range events {
		delta := Ticks(ev.TimestampOffset-lastTimestamp, PPQ, MicrosPerQuarterNote)
		track = AppendVLQ(track, uint64(delta))
		track = append(track, ev.Data...)
		lastTimestamp = ev.TimestampOffset
	}

	track = AppendVLQ(track, 0)
	return append(track, metaEvent, metaEndOfTrack, 0x00)
}
