// Package midi creates MIDI clients for the current platform.
package midi

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/midirecorder/internal/midi/mididarwin"
	"github.com/leandrodaf/midirecorder/internal/midi/midiportable"
	"github.com/leandrodaf/midirecorder/internal/midi/midiwindows"
	"github.com/leandrodaf/midirecorder/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrUnsupportedOS is returned when the operating system has no native transport
// and no gomidi driver is registered.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// clientInitializers maps OS names to corresponding MIDI client initializers.
var clientInitializers = map[string]func(*contracts.ClientOptions) (contracts.ClientMIDI, error){
	"darwin":  mididarwin.NewMIDIClient,  // macOS (Darwin) MIDI client initializer.
	"windows": midiwindows.NewMIDIClient, // Windows MIDI client initializer.
}

// NewMIDIClient applies default options and creates the transport for this platform.
func NewMIDIClient(opts ...contracts.Option) (contracts.ClientMIDI, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	client, err := NewClient(&options)
	if err != nil {
		options.Logger.Error("Failed to create MIDI client", options.Logger.Field().Error("error", err))
		return nil, err
	}
	return client, nil
}

// NewClient initializes a MIDI client for the current operating system.
//
// An explicit driver in opts always selects the portable transport. Otherwise macOS
// and Windows use their native clients, and every other system falls back to the
// portable transport over the registered gomidi driver.
//
// Returns ErrUnsupportedOS if none of these is available.
func NewClient(opts *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	return newClient(runtime.GOOS, opts)
}

func newClient(goos string, opts *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	if opts.Driver != nil {
		return midiportable.NewMIDIClient(opts)
	}
	if initializer, exists := clientInitializers[goos]; exists {
		return initializer(opts)
	}
	if drivers.Get() != nil {
		return midiportable.NewMIDIClient(opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
}
