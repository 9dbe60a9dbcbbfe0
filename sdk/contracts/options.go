package contracts

import (
	"time"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// MIDICommand represents the types of MIDI commands for event filtering.
// Channel commands carry the status high nibble only; system commands carry the full status byte.
type MIDICommand byte

const (
	// NoteOff is the MIDI command for a Note Off event (0x80).
	NoteOff MIDICommand = 0x80
	// NoteOn is the MIDI command for a Note On event (0x90).
	NoteOn MIDICommand = 0x90
	// PolyPressure is the MIDI command for polyphonic key pressure (0xA0).
	PolyPressure MIDICommand = 0xA0
	// ControlChange is the MIDI command for a controller change (0xB0).
	ControlChange MIDICommand = 0xB0
	// ProgramChange is the MIDI command for a program change (0xC0).
	ProgramChange MIDICommand = 0xC0
	// ChannelPressure is the MIDI command for channel aftertouch (0xD0).
	ChannelPressure MIDICommand = 0xD0
	// PitchBend is the MIDI command for a pitch bend change (0xE0).
	PitchBend MIDICommand = 0xE0
)

// CommandOf returns the command a status byte belongs to.
func CommandOf(status byte) MIDICommand {
	if status >= 0xF0 {
		return MIDICommand(status)
	}
	return MIDICommand(status & 0xF0)
}

// MIDIEventFilter allows users to specify which MIDI commands to record.
type MIDIEventFilter struct {
	Commands []MIDICommand // List of MIDI commands to keep.
}

// Allows reports whether a message starting with status passes the filter.
// A nil filter lets everything through.
func (f *MIDIEventFilter) Allows(status byte) bool {
	if f == nil {
		return true
	}
	command := CommandOf(status)
	for _, allowed := range f.Commands {
		if command == allowed {
			return true
		}
	}
	return false
}

// CoreMIDIConfig holds configuration for CoreMIDI.
type CoreMIDIConfig struct {
	ClientName string // Name of the MIDI client.
}

// ClientOptions defines the configuration options for the MIDI client.
type ClientOptions struct {
	Logger         Logger          // Logger for logging events and errors.
	LogLevel       LogLevel        // Level of logging to use.
	LogFilePath    string          // File path for logging if file logging is enabled.
	CoreMIDIConfig *CoreMIDIConfig // Configuration specific to CoreMIDI.
	Driver         drivers.Driver  // Optional gomidi driver; forces the portable transport.
}

// Option is a function that modifies ClientOptions.
type Option func(*ClientOptions)

// WithLogger sets the logger for the MIDI client.
func WithLogger(l Logger) Option {
	return func(opts *ClientOptions) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the MIDI client.
func WithLogLevel(level LogLevel) Option {
	return func(opts *ClientOptions) {
		opts.LogLevel = level
	}
}

// WithLogFile sends the client's logs to a file instead of the console.
func WithLogFile(path string) Option {
	return func(opts *ClientOptions) {
		opts.LogFilePath = path
	}
}

// WithCoreMIDIConfig sets the CoreMIDI configuration for the MIDI client.
func WithCoreMIDIConfig(config CoreMIDIConfig) Option {
	return func(opts *ClientOptions) {
		opts.CoreMIDIConfig = &config
	}
}

// WithDriver selects the portable transport on top of a gomidi driver.
func WithDriver(drv drivers.Driver) Option {
	return func(opts *ClientOptions) {
		opts.Driver = drv
	}
}

// SessionOptions configures the recorder and the player.
type SessionOptions struct {
	Logger           Logger           // Logger for capture and playback diagnostics.
	MIDIEventFilter  *MIDIEventFilter // Optional filter applied while segmenting.
	OnInputDetected  func()           // Called once per session when the first event is recorded.
	PlaybackPreamble [][]byte         // Messages sent before replaying a session.
	PlaybackTail     time.Duration    // Wait after the last event before silencing the output.
	Clock            func() int64     // Monotonic nanosecond clock used to pace playback.
}

// SessionOption is a function that modifies SessionOptions.
type SessionOption func(*SessionOptions)

// WithSessionLogger sets the logger for the recorder or player.
func WithSessionLogger(l Logger) SessionOption {
	return func(opts *SessionOptions) {
		opts.Logger = l
	}
}

// WithMIDIEventFilter sets the MIDI event filter used while recording.
func WithMIDIEventFilter(filter MIDIEventFilter) SessionOption {
	return func(opts *SessionOptions) {
		opts.MIDIEventFilter = &filter
	}
}

// WithInputDetected registers the one-shot "input detected" callback.
func WithInputDetected(fn func()) SessionOption {
	return func(opts *SessionOptions) {
		opts.OnInputDetected = fn
	}
}

// WithPlaybackPreamble replaces the messages sent before playback starts.
// Passing no messages disables the preamble.
func WithPlaybackPreamble(msgs ...[]byte) SessionOption {
	return func(opts *SessionOptions) {
		opts.PlaybackPreamble = msgs
	}
}

// WithPlaybackTail sets how long playback lingers after the last event.
func WithPlaybackTail(d time.Duration) SessionOption {
	return func(opts *SessionOptions) {
		opts.PlaybackTail = d
	}
}

// WithClock overrides the monotonic clock used for playback pacing.
func WithClock(now func() int64) SessionOption {
	return func(opts *SessionOptions) {
		opts.Clock = now
	}
}
