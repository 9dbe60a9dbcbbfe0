package contracts

import "errors"

// ErrNoMIDIDevices is returned by every transport when a device listing is empty.
var ErrNoMIDIDevices = errors.New("no MIDI devices found")

// DeviceInfo contains information about a MIDI port.
type DeviceInfo struct {
	ID           int    // Index to pass to SelectDevice or OpenOutput.
	Name         string // Device name.
	Manufacturer string // Device manufacturer.
	EntityName   string // Name of the entity to which the device belongs.
}
