package smf

import (
	"errors"
	"fmt"
	"io"

	"github.com/leandrodaf/midirecorder/sdk/contracts"
	gsmf "gitlab.com/gomidi/midi/v2/smf"
)

var (
	// ErrInvalidFile is returned when the input is not a readable Standard MIDI File.
	ErrInvalidFile = errors.New("invalid midi file")
	// ErrUnsupportedFormat is returned for files that do not hold exactly one track.
	ErrUnsupportedFormat = errors.New("only single-track midi files are supported")
	// ErrUnsupportedTimeFormat is returned for SMPTE-timed files.
	ErrUnsupportedTimeFormat = errors.New("only metric (ticks per quarter note) timing is supported")
)

// Decode reads a single-track Standard MIDI File and returns its channel and
// system-common messages as events, with offsets in nanoseconds from the start of
// the track. Meta and SysEx events are skipped. The first Set-Tempo event seen
// defines the tempo of the whole file; later tempo changes are ignored.
func Decode(r io.Reader) ([]contracts.MidiEvent, error) {
	file, err := gsmf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if len(file.Tracks) != 1 {
		return nil, fmt.Errorf("%w: found %d tracks", ErrUnsupportedFormat, len(file.Tracks))
	}
	ticks, ok := file.TimeFormat.(gsmf.MetricTicks)
	if !ok {
		return nil, ErrUnsupportedTimeFormat
	}
	ppq := int(uint16(ticks))
	if ppq == 0 {
		return nil, fmt.Errorf("%w: zero resolution", ErrInvalidFile)
	}

	tempo := MicrosPerQuarterNote
	tempoSeen := false
	var absolute int64
	var events []contracts.MidiEvent

	for _, ev := range file.Tracks[0] {
		absolute += int64(ev.Delta)
		raw := []byte(ev.Message)
		if len(raw) == 0 {
			continue
		}

		if micros, isTempo := tempoOf(raw); isTempo {
			if !tempoSeen {
				tempo = micros
				tempoSeen = true
			}
			continue
		}
		if raw[0] == metaEvent || raw[0] == 0xF0 || raw[0] == 0xF7 {
			continue
		}

		data := make([]byte, len(raw))
		copy(data, raw)
		events = append(events, contracts.MidiEvent{
			Data:            data,
			TimestampOffset: Nanos(absolute, ppq, tempo),
		})
	}
	return events, nil
}

// tempoOf extracts the microseconds per quarter note from a Set-Tempo meta message.
func tempoOf(raw []byte) (int, bool) {
	if len(raw) != 6 || raw[0] != metaEvent || raw[1] != metaSetTempo || raw[2] != 0x03 {
		return 0, false
	}
	return int(raw[3])<<16 | int(raw[4])<<8 | int(raw[5]), true
}
