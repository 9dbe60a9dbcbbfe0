//go:build windows
// +build windows

package midiwindows

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/leandrodaf/midirecorder/internal/clock"
	"github.com/leandrodaf/midirecorder/internal/midi/dispatch"
	"github.com/leandrodaf/midirecorder/sdk/contracts"
	"github.com/leandrodaf/midirecorder/sdk/recorder"
	"go.uber.org/multierr"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type (
	HMIDIIN  windows.Handle
	HMIDIOUT windows.Handle
)

// Constants for callback flags
const (
	CALLBACK_NULL     = 0x00000000 // No callback
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
	MIDI_IO_STATUS    = 0x00000020 // MIDI input/output status
)

// Constants for MIDI message types
const (
	MIM_OPEN      = 0x3C1 // MIDI device opened
	MIM_CLOSE     = 0x3C2 // MIDI device closed
	MIM_DATA      = 0x3C3 // MIDI data received
	MIM_ERROR     = 0x3C5 // MIDI error
	MIM_LONGERROR = 0x3C6 // Long MIDI error
	MIM_MOREDATA  = 0x3CC // More MIDI data available
)

var (
	ErrNoMIDIDevices     = contracts.ErrNoMIDIDevices
	ErrInvalidMIDIDevice = errors.New("invalid MIDI device")
	ErrNoDeviceSelected  = errors.New("no MIDI device selected")
	ErrNilReceiver       = errors.New("nil receiver")
	ErrOutputClosed      = errors.New("output port closed")
)

// Struct representing MIDI input device capabilities
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// Struct representing MIDI output device capabilities
type midiOutCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	wTechnology    uint16
	wVoices        uint16
	wNotes         uint16
	wChannelMask   uint16
	dwSupport      uint32
}

// ClientMid manages MIDI on Windows
type ClientMid struct {
	logger     contracts.Logger
	dispatcher dispatch.Dispatcher
	instance   uintptr // Key passed to winmm as dwInstance.
	handle     HMIDIIN
	portConn   bool
	capturing  bool
	mu         sync.Mutex
	callback   uintptr
}

// instances resolves the dwInstance value winmm hands back to the callback.
var instances = struct {
	sync.RWMutex
	next    uintptr
	clients map[uintptr]*ClientMid
}{clients: make(map[uintptr]*ClientMid)}

func registerInstance(m *ClientMid) uintptr {
	instances.Lock()
	defer instances.Unlock()
	instances.next++
	instances.clients[instances.next] = m
	return instances.next
}

func unregisterInstance(id uintptr) {
	instances.Lock()
	defer instances.Unlock()
	delete(instances.clients, id)
}

func lookupInstance(id uintptr) *ClientMid {
	instances.RLock()
	defer instances.RUnlock()
	return instances.clients[id]
}

// Load the winmm.dll library and required functions
var (
	winmm                 = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs  = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps  = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen        = winmm.NewProc("midiInOpen")
	procMidiInStart       = winmm.NewProc("midiInStart")
	procMidiInStop        = winmm.NewProc("midiInStop")
	procMidiInClose       = winmm.NewProc("midiInClose")
	procMidiOutGetNumDevs = winmm.NewProc("midiOutGetNumDevs")
	procMidiOutGetDevCaps = winmm.NewProc("midiOutGetDevCapsW")
	procMidiOutOpen       = winmm.NewProc("midiOutOpen")
	procMidiOutShortMsg   = winmm.NewProc("midiOutShortMsg")
	procMidiOutReset      = winmm.NewProc("midiOutReset")
	procMidiOutClose      = winmm.NewProc("midiOutClose")
)

// NewMIDIClient creates a MIDI client for Windows
func NewMIDIClient(options *contracts.ClientOptions) (contracts.ClientMIDI, error) {
	options.Logger.Info("MIDI client created for Windows")

	return &ClientMid{logger: options.Logger}, nil
}

// ListDevices lists the available MIDI input devices
func (m *ClientMid) ListDevices() ([]contracts.DeviceInfo, error) {
	r0, _, _ := procMidiInGetNumDevs.Call()
	numDevices := uint32(r0)
	if numDevices == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	devices := make([]contracts.DeviceInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			m.logger.Warn("Failed to get information for MIDI device", m.logger.Field().Int("deviceID", int(i)))
			continue
		}
		deviceName := windows.UTF16ToString(caps.szPname[:])
		devices = append(devices, contracts.DeviceInfo{
			ID:           int(i),
			Name:         deviceName,
			EntityName:   deviceName,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		})
	}
	return devices, nil
}

// SelectDevice opens a MIDI input device, closing the previous one first
func (m *ClientMid) SelectDevice(deviceID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.portConn {
		if err := m.closeInput(); err != nil {
			return fmt.Errorf("failed to close previous MIDI device: %w", err)
		}
	}

	if m.instance == 0 {
		m.instance = registerInstance(m)
	}
	m.callback = windows.NewCallback(midiInCallback)
	fdwOpen := CALLBACK_FUNCTION | MIDI_IO_STATUS

	r1, _, err := procMidiInOpen.Call(
		uintptr(unsafe.Pointer(&m.handle)),
		uintptr(deviceID),
		m.callback,
		m.instance,
		uintptr(fdwOpen),
	)
	if r1 != 0 {
		m.logger.Error("Failed to open MIDI device",
			m.logger.Field().Int("deviceID", deviceID),
			m.logger.Field().Error("error", err))
		return fmt.Errorf("%w %d: %v", ErrInvalidMIDIDevice, deviceID, err)
	}

	m.portConn = true
	m.logger.Info("MIDI device connected", m.logger.Field().Int("deviceID", deviceID))
	return nil
}

// StartCapture starts the input device and delivers its messages to receiver
func (m *ClientMid) StartCapture(receiver contracts.Receiver) error {
	if receiver == nil {
		return ErrNilReceiver
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.portConn || m.handle == 0 {
		m.logger.Error("Cannot start capture: No MIDI device selected")
		return ErrNoDeviceSelected
	}

	m.dispatcher.Set(receiver)
	if m.capturing {
		return nil
	}

	r1, _, err := procMidiInStart.Call(uintptr(m.handle))
	if r1 != 0 {
		m.dispatcher.Clear()
		m.logger.Error("Failed to start MIDI capture", m.logger.Field().Error("error", err))
		return fmt.Errorf("failed to start MIDI capture: %v", err)
	}

	m.capturing = true
	m.logger.Info("MIDI capture started")
	return nil
}

// StopCapture stops delivering messages; the device stays open
func (m *ClientMid) StopCapture() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dispatcher.Clear()
	if m.capturing && m.handle != 0 {
		if r1, _, err := procMidiInStop.Call(uintptr(m.handle)); r1 != 0 {
			m.logger.Error("Failed to stop MIDI capture", m.logger.Field().Error("error", err))
		}
	}
	m.capturing = false
}

// midiInCallback processes incoming MIDI messages
func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	m := lookupInstance(dwInstance)
	if m == nil {
		return 0
	}

	switch wMsg {
	case MIM_OPEN:
		m.logger.Info("MIDI device opened")
	case MIM_CLOSE:
		m.logger.Info("MIDI device closed")
	case MIM_DATA:
		// A short message is packed little-endian into dwParam1.
		msg := [3]byte{
			byte(dwParam1 & 0xFF),
			byte((dwParam1 >> 8) & 0xFF),
			byte((dwParam1 >> 16) & 0xFF),
		}
		m.dispatcher.Deliver(msg[:], 0, recorder.MessageLength(msg[0]), clock.Now())
	case MIM_ERROR, MIM_LONGERROR:
		m.logger.Error("MIDI error", m.logger.Field().Uint64("msg", uint64(wMsg)))
	case MIM_MOREDATA:
		m.logger.Debug("Received MIM_MOREDATA message; ignored")
	default:
		m.logger.Warn("Unknown MIDI message", m.logger.Field().Uint64("msg", uint64(wMsg)))
	}

	return 0
}

// Stop terminates MIDI event capture and closes the device
func (m *ClientMid) Stop() error {
	m.StopCapture()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.portConn {
		m.logger.Warn("No MIDI device is connected")
		m.release()
		return nil
	}

	if err := m.closeInput(); err != nil {
		return fmt.Errorf("failed to stop MIDI capture: %w", err)
	}
	m.release()
	m.logger.Info("MIDI capture stopped and device closed")
	return nil
}

// release drops the callback registration; mu must be held
func (m *ClientMid) release() {
	if m.instance != 0 {
		unregisterInstance(m.instance)
		m.instance = 0
	}
}

// closeInput stops and closes the input handle; mu must be held
func (m *ClientMid) closeInput() error {
	if m.handle == 0 {
		return fmt.Errorf("invalid MIDI device handle")
	}

	var err error
	if r1, _, callErr := procMidiInStop.Call(uintptr(m.handle)); r1 != 0 {
		err = multierr.Append(err, fmt.Errorf("midiInStop: %v", callErr))
	}
	if r1, _, callErr := procMidiInClose.Call(uintptr(m.handle)); r1 != 0 {
		err = multierr.Append(err, fmt.Errorf("midiInClose: %v", callErr))
	}
	if err != nil {
		m.logger.Error("Failed to close MIDI device", m.logger.Field().Error("error", err))
		return err
	}

	m.portConn = false
	m.capturing = false
	m.handle = 0
	m.dispatcher.Clear()
	return nil
}

// ListOutputs lists the available MIDI output devices
func (m *ClientMid) ListOutputs() ([]contracts.DeviceInfo, error) {
	r0, _, _ := procMidiOutGetNumDevs.Call()
	numDevices := uint32(r0)
	if numDevices == 0 {
		m.logger.Warn(ErrNoMIDIDevices.Error())
		return nil, ErrNoMIDIDevices
	}

	devices := make([]contracts.DeviceInfo, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiOutCaps
		r1, _, _ := procMidiOutGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			m.logger.Warn("Failed to get information for MIDI output", m.logger.Field().Int("deviceID", int(i)))
			continue
		}
		deviceName := windows.UTF16ToString(caps.szPname[:])
		devices = append(devices, contracts.DeviceInfo{
			ID:           int(i),
			Name:         deviceName,
			EntityName:   deviceName,
			Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		})
	}
	return devices, nil
}

// OpenOutput opens a MIDI output device such as the GS Wavetable Synth
func (m *ClientMid) OpenOutput(deviceID int) (contracts.OutputPort, error) {
	out := &outputPort{}
	r1, _, err := procMidiOutOpen.Call(
		uintptr(unsafe.Pointer(&out.handle)),
		uintptr(deviceID),
		0,
		0,
		CALLBACK_NULL,
	)
	if r1 != 0 {
		m.logger.Error("Failed to open MIDI output",
			m.logger.Field().Int("deviceID", deviceID),
			m.logger.Field().Error("error", err))
		return nil, fmt.Errorf("%w %d: %v", ErrInvalidMIDIDevice, deviceID, err)
	}

	m.logger.Info("MIDI output opened", m.logger.Field().Int("deviceID", deviceID))
	return out, nil
}

type outputPort struct {
	mu     sync.Mutex
	handle HMIDIOUT
}

// Send packs a short message into a DWORD for midiOutShortMsg
func (o *outputPort) Send(data []byte) error {
	if len(data) == 0 || len(data) > 3 {
		return fmt.Errorf("unsupported short message length %d", len(data))
	}

	var packed uint32
	for i, b := range data {
		packed |= uint32(b) << (8 * i)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handle == 0 {
		return ErrOutputClosed
	}
	if r1, _, err := procMidiOutShortMsg.Call(uintptr(o.handle), uintptr(packed)); r1 != 0 {
		return fmt.Errorf("midiOutShortMsg: %v", err)
	}
	return nil
}

func (o *outputPort) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handle == 0 {
		return nil
	}

	var err error
	if r1, _, callErr := procMidiOutReset.Call(uintptr(o.handle)); r1 != 0 {
		err = multierr.Append(err, fmt.Errorf("midiOutReset: %v", callErr))
	}
	if r1, _, callErr := procMidiOutClose.Call(uintptr(o.handle)); r1 != 0 {
		err = multierr.Append(err, fmt.Errorf("midiOutClose: %v", callErr))
	}
	o.handle = 0
	return err
}
