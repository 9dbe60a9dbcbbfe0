package recorder

import (
	"time"

	"github.com/leandrodaf/midirecorder/internal/clock"
	"github.com/leandrodaf/midirecorder/internal/logger"
	"github.com/leandrodaf/midirecorder/sdk/contracts"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// DefaultPlaybackTail is how long playback waits after the last event so that
// released notes can decay before the output is silenced.
const DefaultPlaybackTail = 500 * time.Millisecond

// applySessionOptions fills in defaults and then applies opts on top of them.
func applySessionOptions(opts ...contracts.SessionOption) contracts.SessionOptions {
	options := contracts.SessionOptions{
		// Acoustic Grand Piano on channel 1.
		PlaybackPreamble: [][]byte{gomidi.ProgramChange(0, 0)},
		PlaybackTail:     DefaultPlaybackTail,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.Clock == nil {
		options.Clock = clock.Now
	}
	if options.PlaybackTail < 0 {
		options.PlaybackTail = 0
	}
	return options
}
