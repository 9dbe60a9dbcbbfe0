package contracts

import "bytes"

// MidiEvent is one captured MIDI message.
//
// Data holds the status and data bytes of exactly one channel or system message
// (never running status, never Active Sensing). TimestampOffset is measured in
// nanoseconds from the first event of the recording session, so the first event of
// a session always has offset 0.
type MidiEvent struct {
	Data            []byte
	TimestampOffset int64
}

// Equal reports whether two events carry the same bytes at the same offset.
func (e MidiEvent) Equal(other MidiEvent) bool {
	return e.TimestampOffset == other.TimestampOffset && bytes.Equal(e.Data, other.Data)
}

// Receiver consumes raw byte batches delivered by a MIDI transport.
// Every byte in msg[offset:offset+count] shares the same capture timestamp, expressed
// in monotonic nanoseconds with an arbitrary epoch. The buffer may be reused by the
// caller once Receive returns.
type Receiver interface {
	Receive(msg []byte, offset, count int, timestamp int64)
}

// ReceiverFunc adapts a plain function to the Receiver interface.
type ReceiverFunc func(msg []byte, offset, count int, timestamp int64)

// Receive calls f.
func (f ReceiverFunc) Receive(msg []byte, offset, count int, timestamp int64) {
	f(msg, offset, count, timestamp)
}

// Output accepts complete MIDI messages, typically a synthesizer input port.
type Output interface {
	Send(data []byte) error
}

// OutputPort is an Output that owns a device handle.
type OutputPort interface {
	Output
	Close() error
}

// ClientMIDI defines an interface for MIDI transport operations.
type ClientMIDI interface {
	Stop() error                                 // Stops capture and releases every device handle.
	ListDevices() ([]DeviceInfo, error)          // Lists all available MIDI input devices.
	SelectDevice(deviceID int) error             // Selects a MIDI input device by its ID.
	StartCapture(receiver Receiver) error        // Starts delivering raw byte batches to receiver.
	StopCapture()                                // Stops delivering batches; the device stays selected.
	ListOutputs() ([]DeviceInfo, error)          // Lists all available MIDI output devices.
	OpenOutput(deviceID int) (OutputPort, error) // Opens a MIDI output device for playback.
}
