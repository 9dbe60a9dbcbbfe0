package recorder

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leandrodaf/midirecorder/internal/logger"
	"github.com/leandrodaf/midirecorder/sdk/contracts"
	"github.com/leandrodaf/midirecorder/sdk/smf"
)

// fakeClient is a transport that lets tests push batches into the active receiver.
type fakeClient struct {
	mu         sync.Mutex
	receiver   contracts.Receiver
	startErr   error
	startCalls int
	stopCalls  int
}

func (c *fakeClient) Stop() error { return nil }

func (c *fakeClient) ListDevices() ([]contracts.DeviceInfo, error) { return nil, nil }

func (c *fakeClient) SelectDevice(int) error { return nil }

func (c *fakeClient) ListOutputs() ([]contracts.DeviceInfo, error) { return nil, nil }

func (c *fakeClient) OpenOutput(int) (contracts.OutputPort, error) { return nil, nil }

func (c *fakeClient) StartCapture(receiver contracts.Receiver) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startCalls++
	if c.startErr != nil {
		return c.startErr
	}
	c.receiver = receiver
	return nil
}

func (c *fakeClient) StopCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCalls++
	c.receiver = nil
}

func (c *fakeClient) deliver(msg []byte, timestamp int64) {
	c.mu.Lock()
	receiver := c.receiver
	c.mu.Unlock()
	if receiver != nil {
		receiver.Receive(msg, 0, len(msg), timestamp)
	}
}

func newTestRecorder(client contracts.ClientMIDI, opts ...contracts.SessionOption) *Recorder {
	opts = append([]contracts.SessionOption{contracts.WithSessionLogger(logger.NewNopLogger())}, opts...)
	return NewRecorder(client, opts...)
}

func TestRecorderCapturesThroughClient(t *testing.T) {
	client := &fakeClient{}
	detected := 0
	rec := newTestRecorder(client, contracts.WithInputDetected(func() { detected++ }))

	require.NoError(t, rec.StartRecording())
	require.True(t, rec.IsRecording())
	require.False(t, rec.HasInput())

	client.deliver([]byte{0x90, 0x3C, 0x64}, 5_000_000)
	client.deliver([]byte{0x80, 0x3C, 0x00}, 505_000_000)

	require.True(t, rec.HasInput())
	require.Equal(t, 1, detected)
	require.NoError(t, rec.StopRecording())
	require.False(t, rec.IsRecording())
	require.Equal(t, 1, client.stopCalls)

	events := rec.Events()
	require.Len(t, events, 2)
	require.Equal(t, int64(0), events[0].TimestampOffset)
	require.Equal(t, int64(500_000_000), events[1].TimestampOffset)
	require.True(t, rec.HasData())
}

func TestRecorderIgnoresInputWhileStopped(t *testing.T) {
	rec := newTestRecorder(nil)

	rec.Receive([]byte{0x90, 0x3C, 0x64}, 0, 3, 10)
	require.False(t, rec.HasData())

	require.NoError(t, rec.StartRecording())
	rec.Receive([]byte{0x90, 0x3C, 0x64}, 0, 3, 10)
	require.NoError(t, rec.StopRecording())
	rec.Receive([]byte{0x80, 0x3C, 0x00}, 0, 3, 20)

	require.Len(t, rec.Events(), 1)
}

func TestRecorderStateErrors(t *testing.T) {
	rec := newTestRecorder(nil)

	require.ErrorIs(t, rec.StopRecording(), ErrNotRecording)
	require.NoError(t, rec.StartRecording())
	require.ErrorIs(t, rec.StartRecording(), ErrAlreadyRecording)
}

func TestRecorderStartCaptureFailure(t *testing.T) {
	client := &fakeClient{startErr: errors.New("device gone")}
	rec := newTestRecorder(client)

	err := rec.StartRecording()
	require.ErrorIs(t, err, ErrStartCapture)
	require.Contains(t, err.Error(), "device gone")
	require.False(t, rec.IsRecording())
}

func TestRecorderNewSessionClearsPrevious(t *testing.T) {
	rec := newTestRecorder(nil)

	require.NoError(t, rec.StartRecording())
	rec.Receive([]byte{0x90, 0x3C, 0x64}, 0, 3, 100)
	require.NoError(t, rec.StopRecording())
	require.True(t, rec.HasInput())

	require.NoError(t, rec.StartRecording())
	require.False(t, rec.HasData())
	require.False(t, rec.HasInput())

	rec.Receive([]byte{0x90, 0x3E, 0x64}, 0, 3, 900)
	events := rec.Events()
	require.Len(t, events, 1)
	require.Equal(t, int64(0), events[0].TimestampOffset)
}

func TestRecorderRestartWhileTransportDelivers(t *testing.T) {
	rec := newTestRecorder(nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		var timestamp int64
		for {
			select {
			case <-stop:
				return
			default:
				timestamp += 1_000
				rec.Receive([]byte{0x90, 0x3C, 0x64}, 0, 3, timestamp)
			}
		}
	}()

	for i := 0; i < 50; i++ {
		require.NoError(t, rec.StartRecording())
		time.Sleep(time.Millisecond)
		require.NoError(t, rec.StopRecording())

		events := rec.Events()
		if len(events) > 0 {
			require.Equal(t, int64(0), events[0].TimestampOffset)
		}
		for _, ev := range events {
			require.GreaterOrEqual(t, ev.TimestampOffset, int64(0))
		}
		require.Equal(t, events, rec.Events(), "no batch may land after StopRecording returns")
	}

	close(stop)
	wg.Wait()
}

func TestRecorderSave(t *testing.T) {
	rec := newTestRecorder(nil)
	require.NoError(t, rec.StartRecording())
	rec.Receive([]byte{0x90, 0x3C, 0x64}, 0, 3, 42)
	require.NoError(t, rec.StopRecording())

	var buf bytes.Buffer
	require.NoError(t, rec.Save(&buf))
	require.Equal(t, rec.Encode(), buf.Bytes())
	require.Equal(t, smf.Encode(rec.Events()), buf.Bytes())

	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x0F}, buf.Bytes()[18:22])
}

func TestRecorderEncodeIsIdempotent(t *testing.T) {
	rec := newTestRecorder(nil)
	require.NoError(t, rec.StartRecording())
	rec.Receive([]byte{0x90, 0x3C, 0x64, 0xB0, 0x40, 0x7F}, 0, 6, 1)
	rec.Receive([]byte{0x80, 0x3C, 0x00}, 0, 3, 300_000_000)
	require.NoError(t, rec.StopRecording())

	require.Equal(t, rec.Encode(), rec.Encode())
}

func TestRecorderSaveFile(t *testing.T) {
	dir := t.TempDir()
	rec := newTestRecorder(nil)
	require.NoError(t, rec.StartRecording())
	rec.Receive([]byte{0x90, 0x3C, 0x64}, 0, 3, 42)
	require.NoError(t, rec.StopRecording())

	now := time.Date(2026, 10, 17, 9, 5, 7, 0, time.UTC)
	path, err := rec.SaveFile(dir, now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "rec-090507.mid"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, rec.Encode(), data)
}

func TestRecorderSaveFileUnwritableDir(t *testing.T) {
	rec := newTestRecorder(nil)

	_, err := rec.SaveFile(filepath.Join(t.TempDir(), "missing", "dir"), time.Now())
	require.ErrorIs(t, err, ErrSaveFile)
}

func TestFileName(t *testing.T) {
	require.Equal(t, "rec-235959.mid", FileName(time.Date(2026, 1, 2, 23, 59, 59, 0, time.Local)))
}
