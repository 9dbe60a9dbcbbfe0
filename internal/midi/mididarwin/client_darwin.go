//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midirecorder/internal/clock"
	"github.com/leandrodaf/midirecorder/internal/midi/dispatch"
	"github.com/leandrodaf/midirecorder/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for MIDI connection and handling issues.
var (
	ErrNoMIDIDevices       = contracts.ErrNoMIDIDevices
	ErrInvalidMIDIDevice   = errors.New("invalid MIDI device")
	ErrMIDIConnectionError = errors.New("error connecting to MIDI device")
	ErrCreateInputPort     = errors.New("error creating input port")
	ErrCreateOutputPort    = errors.New("error creating output port")
	ErrNoDeviceSelected    = errors.New("no MIDI device selected")
	ErrNilReceiver         = errors.New("nil receiver")
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// ClientMid captures and plays MIDI through CoreMIDI on Darwin (macOS) systems.
type ClientMid struct {
	logger         contracts.Logger
	dispatcher     dispatch.Dispatcher    // Active receiver; empty while capture is off.
	client         coremidi.Client        // CoreMIDI client instance for MIDI operations.
	inputPort      coremidi.InputPort     // Input port for receiving MIDI packets.
	portConn       internalPortConnection // Connection to the selected source.
	coreMIDIConfig *contracts.CoreMIDIConfig
	mu             sync.Mutex // Guards portConn and inputPort.
}

// NewMIDIClient initializes a new ClientMid for handling MIDI events on macOS.
func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	client, err := coremidi.NewClient(options.CoreMIDIConfig.ClientName)
	if err != nil {
		return nil, err
	}
	options.Logger.Info("MIDI client successfully created",
		options.Logger.Field().String("clientName", options.CoreMIDIConfig.ClientName))

	return &ClientMid{
		logger:         options.Logger,
		client:         client,
		coreMIDIConfig: options.CoreMIDIConfig,
	}, nil
}

// ListDevices retrieves and returns available MIDI sources.
func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}
	if len(sources) == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	devices := make([]contracts.DeviceInfo, len(sources))
	for i, source := range sources {
		sourceEntity := source.Entity()
		devices[i] = contracts.DeviceInfo{
			ID:           i,
			Name:         source.Name(),
			EntityName:   sourceEntity.Name(),
			Manufacturer: sourceEntity.Manufacturer(),
		}
	}
	return devices, nil
}

// SelectDevice connects the input port to the source at deviceID,
// disconnecting any previously selected source first.
func (m *ClientMid) SelectDevice(deviceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sources, err := coremidi.AllSources()
	if err != nil {
		return fmt.Errorf("error retrieving MIDI sources: %w", err)
	}
	if deviceID < 0 || deviceID >= len(sources) {
		m.logger.Error(ErrInvalidMIDIDevice.Error(), m.logger.Field().Int("deviceID", deviceID))
		return ErrInvalidMIDIDevice
	}

	m.disconnect()

	source := sources[deviceID]
	m.logger.Info("MIDI device selected",
		m.logger.Field().Int("deviceID", deviceID),
		m.logger.Field().String("deviceName", source.Name()))

	m.inputPort, err = coremidi.NewInputPort(m.client, "Input Port", m.handlePacket)
	if err != nil {
		m.logger.Error(ErrCreateInputPort.Error(), m.logger.Field().Error("error", err))
		return fmt.Errorf("%w: %v", ErrCreateInputPort, err)
	}

	conn, err := m.inputPort.Connect(source)
	if err != nil {
		m.logger.Error(ErrMIDIConnectionError.Error(), m.logger.Field().Error("error", err))
		return fmt.Errorf("%w: %v", ErrMIDIConnectionError, err)
	}
	m.portConn = conn

	m.logger.Info("MIDI device successfully connected")
	return nil
}

// handlePacket forwards a CoreMIDI packet to the active receiver. A packet may carry
// several messages; splitting them is the receiver's job.
func (m *ClientMid) handlePacket(_ coremidi.Source, packet coremidi.Packet) {
	m.dispatcher.Deliver(packet.Data, 0, len(packet.Data), clock.Now())
}

// StartCapture starts delivering packets from the selected source to receiver.
// Calling it again swaps the receiver.
func (m *ClientMid) StartCapture(receiver contracts.Receiver) error {
	if receiver == nil {
		m.logger.Error("StartCapture called with nil receiver")
		return ErrNilReceiver
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.portConn == nil {
		return ErrNoDeviceSelected
	}

	m.dispatcher.Set(receiver)
	m.logger.Info("Starting MIDI event capture")
	return nil
}

// StopCapture stops delivering packets and waits for in-flight ones to finish.
func (m *ClientMid) StopCapture() {
	m.dispatcher.Clear()
	m.logger.Info("MIDI capture stopped")
}

// ListOutputs returns the available CoreMIDI destinations.
func (m *ClientMid) ListOutputs() ([]contracts.DeviceInfo, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI destinations: %w", err)
	}
	if len(destinations) == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	devices := make([]contracts.DeviceInfo, len(destinations))
	for i, destination := range destinations {
		destinationEntity := destination.Entity()
		devices[i] = contracts.DeviceInfo{
			ID:           i,
			Name:         destination.Name(),
			EntityName:   destinationEntity.Name(),
			Manufacturer: destinationEntity.Manufacturer(),
		}
	}
	return devices, nil
}

// OpenOutput opens an output port bound to the destination at deviceID.
func (m *ClientMid) OpenOutput(deviceID int) (contracts.OutputPort, error) {
	destinations, err := coremidi.AllDestinations()
	if err != nil {
		return nil, fmt.Errorf("error retrieving MIDI destinations: %w", err)
	}
	if deviceID < 0 || deviceID >= len(destinations) {
		m.logger.Error(ErrInvalidMIDIDevice.Error(), m.logger.Field().Int("deviceID", deviceID))
		return nil, ErrInvalidMIDIDevice
	}

	port, err := coremidi.NewOutputPort(m.client, "Output Port")
	if err != nil {
		m.logger.Error(ErrCreateOutputPort.Error(), m.logger.Field().Error("error", err))
		return nil, fmt.Errorf("%w: %v", ErrCreateOutputPort, err)
	}

	m.logger.Info("MIDI output opened",
		m.logger.Field().Int("deviceID", deviceID),
		m.logger.Field().String("deviceName", destinations[deviceID].Name()))
	return &outputPort{port: port, destination: destinations[deviceID]}, nil
}

// Stop stops capture and disconnects from the selected source. It is safe to call
// more than once.
func (m *ClientMid) Stop() error {
	m.logger.Info("Stopping MIDI client")
	m.StopCapture()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnect()
	return nil
}

// disconnect must be called with mu held.
func (m *ClientMid) disconnect() {
	if m.portConn != nil {
		m.portConn.Disconnect()
		m.portConn = nil
	}
}

// outputPort sends messages to a single CoreMIDI destination.
type outputPort struct {
	mu          sync.Mutex
	port        coremidi.OutputPort
	destination coremidi.Destination
	closed      bool
}

func (o *outputPort) Send(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errors.New("output port closed")
	}
	packet := coremidi.NewPacket(data, 0)
	return packet.Send(&o.port, &o.destination)
}

func (o *outputPort) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}
