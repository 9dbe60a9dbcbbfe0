package midiportable

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/testdrv"

	"github.com/leandrodaf/midirecorder/internal/logger"
	"github.com/leandrodaf/midirecorder/sdk/contracts"
	"github.com/leandrodaf/midirecorder/sdk/recorder"
)

func newTestClient(t *testing.T, name string) (*ClientMid, drivers.Driver) {
	t.Helper()
	var drv drivers.Driver = testdrv.New(name)
	t.Cleanup(func() { _ = drv.Close() })

	client, err := NewMIDIClient(&contracts.ClientOptions{
		Logger: logger.NewNopLogger(),
		Driver: drv,
	})
	require.NoError(t, err)
	return client.(*ClientMid), drv
}

type capture struct {
	mu      sync.Mutex
	batches [][]byte
}

func (c *capture) Receive(msg []byte, offset, count int, _ int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, append([]byte(nil), msg[offset:offset+count]...))
}

func (c *capture) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.batches...)
}

func TestClientListsDriverPorts(t *testing.T) {
	client, _ := newTestClient(t, "list")

	ins, err := client.ListDevices()
	require.NoError(t, err)
	require.NotEmpty(t, ins)
	require.Equal(t, 0, ins[0].ID)

	outs, err := client.ListOutputs()
	require.NoError(t, err)
	require.NotEmpty(t, outs)
}

func TestClientRejectsInvalidDevice(t *testing.T) {
	client, _ := newTestClient(t, "invalid")

	require.ErrorIs(t, client.SelectDevice(-1), ErrInvalidMIDIDevice)
	require.ErrorIs(t, client.SelectDevice(99), ErrInvalidMIDIDevice)

	_, err := client.OpenOutput(99)
	require.ErrorIs(t, err, ErrInvalidMIDIDevice)
}

func TestClientCaptureRequiresDevice(t *testing.T) {
	client, _ := newTestClient(t, "nodevice")

	require.ErrorIs(t, client.StartCapture(&capture{}), ErrNoDeviceSelected)
	require.ErrorIs(t, client.StartCapture(nil), ErrNilReceiver)
	client.StopCapture()
	require.NoError(t, client.Stop())
}

func TestClientLoopback(t *testing.T) {
	client, _ := newTestClient(t, "loopback")

	require.NoError(t, client.SelectDevice(0))
	got := &capture{}
	require.NoError(t, client.StartCapture(got))

	out, err := client.OpenOutput(0)
	require.NoError(t, err)
	require.NoError(t, out.Send([]byte{0x90, 0x3C, 0x64}))

	require.Eventually(t, func() bool { return len(got.received()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, []byte{0x90, 0x3C, 0x64}, got.received()[0])

	client.StopCapture()
	require.NoError(t, out.Send([]byte{0x80, 0x3C, 0x00}))
	time.Sleep(20 * time.Millisecond)
	require.Len(t, got.received(), 1)

	require.NoError(t, client.Stop())
	require.NoError(t, client.Stop())
}

func TestClientFeedsRecorder(t *testing.T) {
	client, _ := newTestClient(t, "recorder")
	require.NoError(t, client.SelectDevice(0))

	rec := recorder.NewRecorder(client, contracts.WithSessionLogger(logger.NewNopLogger()))
	require.NoError(t, rec.StartRecording())

	out, err := client.OpenOutput(0)
	require.NoError(t, err)
	require.NoError(t, out.Send([]byte{0x90, 0x3C, 0x64}))
	require.NoError(t, out.Send([]byte{0x80, 0x3C, 0x00}))

	require.Eventually(t, func() bool { return len(rec.Events()) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, rec.StopRecording())

	events := rec.Events()
	require.Equal(t, int64(0), events[0].TimestampOffset)
	require.GreaterOrEqual(t, events[1].TimestampOffset, int64(0))
	require.True(t, rec.HasInput())
}
