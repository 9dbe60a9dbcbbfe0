// Package midiportable implements the MIDI client on top of any gomidi driver,
// which covers platforms without a native transport.
package midiportable

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midirecorder/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.uber.org/multierr"
)

var (
	ErrNoDriver          = errors.New("no MIDI driver registered")
	ErrNoMIDIDevices     = contracts.ErrNoMIDIDevices
	ErrInvalidMIDIDevice = errors.New("invalid MIDI device")
	ErrNoDeviceSelected  = errors.New("no MIDI device selected")
	ErrNilReceiver       = errors.New("nil receiver")
	ErrListen            = errors.New("error listening to MIDI device")
)

// ClientMid captures from a driver's in port and plays through its out ports.
type ClientMid struct {
	logger contracts.Logger
	driver drivers.Driver

	mu         sync.Mutex
	in         drivers.In
	stopListen func()
}

// NewMIDIClient creates a client bound to options.Driver, falling back to the
// driver registered by a blank import such as rtmididrv.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	drv := options.Driver
	if drv == nil {
		drv = drivers.Get()
	}
	if drv == nil {
		return nil, ErrNoDriver
	}

	options.Logger.Info("MIDI client created", options.Logger.Field().String("driver", drv.String()))
	return &ClientMid{logger: options.Logger, driver: drv}, nil
}

// ListDevices lists the driver's in ports.
func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	ins, err := m.driver.Ins()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI inputs: %w", err)
	}
	if len(ins) == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	devices := make([]contracts.DeviceInfo, len(ins))
	for i, in := range ins {
		devices[i] = deviceInfo(i, in, m.driver)
	}
	return devices, nil
}

// ListOutputs lists the driver's out ports.
func (m *ClientMid) ListOutputs() ([]contracts.DeviceInfo, error) {
	outs, err := m.driver.Outs()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI outputs: %w", err)
	}
	if len(outs) == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	devices := make([]contracts.DeviceInfo, len(outs))
	for i, out := range outs {
		devices[i] = deviceInfo(i, out, m.driver)
	}
	return devices, nil
}

func deviceInfo(id int, port drivers.Port, drv drivers.Driver) contracts.DeviceInfo {
	return contracts.DeviceInfo{
		ID:           id,
		Name:         port.String(),
		EntityName:   port.String(),
		Manufacturer: drv.String(),
	}
}

// SelectDevice opens the in port at deviceID, closing the previous one.
func (m *ClientMid) SelectDevice(deviceID int) error {
	ins, err := m.driver.Ins()
	if err != nil {
		return fmt.Errorf("error retrieving MIDI inputs: %w", err)
	}
	if deviceID < 0 || deviceID >= len(ins) {
		m.logger.Error(ErrInvalidMIDIDevice.Error(), m.logger.Field().Int("deviceID", deviceID))
		return ErrInvalidMIDIDevice
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.release(); err != nil {
		m.logger.Warn("Failed to close previous MIDI device", m.logger.Field().Error("error", err))
	}

	in := ins[deviceID]
	if err := in.Open(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMIDIDevice, err)
	}
	m.in = in

	m.logger.Info("MIDI device selected",
		m.logger.Field().Int("deviceID", deviceID),
		m.logger.Field().String("deviceName", in.String()))
	return nil
}

// StartCapture listens on the selected port. Every message is delivered as its own
// batch, stamped with the driver's millisecond clock.
func (m *ClientMid) StartCapture(receiver contracts.Receiver) error {
	if receiver == nil {
		return ErrNilReceiver
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.in == nil {
		m.logger.Error("Cannot start capture: No MIDI device selected")
		return ErrNoDeviceSelected
	}
	if m.stopListen != nil {
		m.stopListen()
		m.stopListen = nil
	}

	stop, err := m.in.Listen(func(msg []byte, milliseconds int32) {
		receiver.Receive(msg, 0, len(msg), int64(milliseconds)*1_000_000)
	}, drivers.ListenConfig{})
	if err != nil {
		m.logger.Error(ErrListen.Error(), m.logger.Field().Error("error", err))
		return fmt.Errorf("%w: %v", ErrListen, err)
	}

	m.stopListen = stop
	m.logger.Info("Starting MIDI event capture")
	return nil
}

// StopCapture stops listening; the port stays open.
func (m *ClientMid) StopCapture() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopListen != nil {
		m.stopListen()
		m.stopListen = nil
		m.logger.Info("MIDI capture stopped")
	}
}

// OpenOutput opens the out port at deviceID.
func (m *ClientMid) OpenOutput(deviceID int) (contracts.OutputPort, error) {
	outs, err := m.driver.Outs()
	if err != nil {
		return nil, fmt.Errorf("error retrieving MIDI outputs: %w", err)
	}
	if deviceID < 0 || deviceID >= len(outs) {
		m.logger.Error(ErrInvalidMIDIDevice.Error(), m.logger.Field().Int("deviceID", deviceID))
		return nil, ErrInvalidMIDIDevice
	}

	out := outs[deviceID]
	if err := out.Open(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMIDIDevice, err)
	}

	m.logger.Info("MIDI output opened",
		m.logger.Field().Int("deviceID", deviceID),
		m.logger.Field().String("deviceName", out.String()))
	return out, nil
}

// Stop stops capture and closes the selected in port. The driver itself is left
// open since it may be shared.
func (m *ClientMid) Stop() error {
	m.StopCapture()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.release()
}

// release must be called with mu held.
func (m *ClientMid) release() error {
	var err error
	if m.stopListen != nil {
		m.stopListen()
		m.stopListen = nil
	}
	if m.in != nil {
		err = multierr.Append(err, m.in.Close())
		m.in = nil
	}
	return err
}
