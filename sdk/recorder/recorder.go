// Package recorder captures live MIDI input into sessions and replays them.
package recorder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/midirecorder/sdk/contracts"
	"github.com/leandrodaf/midirecorder/sdk/smf"
)

var (
	// ErrAlreadyRecording is returned by StartRecording while a session is active.
	ErrAlreadyRecording = errors.New("recording already in progress")
	// ErrNotRecording is returned by StopRecording when no session is active.
	ErrNotRecording = errors.New("not recording")
	// ErrStartCapture is returned when the transport refuses to start capturing.
	ErrStartCapture = errors.New("error starting MIDI capture")
	// ErrSaveFile is returned when the recording cannot be written to disk.
	ErrSaveFile = errors.New("error saving MIDI file")
)

// Recorder owns one recording session at a time: it feeds transport batches through
// a Segmenter into an EventStore and encodes the store on demand.
type Recorder struct {
	logger    contracts.Logger
	client    contracts.ClientMIDI
	store     *EventStore
	segmenter *Segmenter

	mu        sync.Mutex   // Serializes StartRecording and StopRecording.
	session   sync.RWMutex // Held for reading while a batch is segmented.
	recording atomic.Bool
	hasInput  atomic.Bool
}

// NewRecorder creates a recorder capturing from client. A nil client is allowed;
// batches are then pushed through Receive by the caller.
func NewRecorder(client contracts.ClientMIDI, opts ...contracts.SessionOption) *Recorder {
	r := &Recorder{client: client, store: NewEventStore()}

	options := applySessionOptions(opts...)
	onInput := options.OnInputDetected
	options.OnInputDetected = func() {
		r.hasInput.Store(true)
		if onInput != nil {
			onInput()
		}
	}

	r.logger = options.Logger
	r.segmenter = newSegmenter(r.store, options)
	return r
}

// StartRecording discards the previous session and starts capturing a new one.
func (r *Recorder) StartRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording.Load() {
		return ErrAlreadyRecording
	}

	r.session.Lock()
	r.store.Clear()
	r.segmenter.Reset()
	r.hasInput.Store(false)
	r.recording.Store(true)
	r.session.Unlock()

	if r.client != nil {
		if err := r.client.StartCapture(r); err != nil {
			r.recording.Store(false)
			r.logger.Error(ErrStartCapture.Error(), r.logger.Field().Error("error", err))
			return fmt.Errorf("%w: %v", ErrStartCapture, err)
		}
	}

	r.logger.Info("Recording started")
	return nil
}

// StopRecording stops capturing. Batches delivered afterwards are ignored.
func (r *Recorder) StopRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording.Load() {
		return ErrNotRecording
	}
	r.session.Lock()
	r.recording.Store(false)
	r.session.Unlock()
	if r.client != nil {
		r.client.StopCapture()
	}

	r.logger.Info("Recording stopped", r.logger.Field().Int("events", r.store.Len()))
	return nil
}

// Receive implements contracts.Receiver; batches only count while recording.
// Transports must deliver batches one at a time.
func (r *Recorder) Receive(msg []byte, offset, count int, timestamp int64) {
	r.session.RLock()
	defer r.session.RUnlock()
	if !r.recording.Load() {
		return
	}
	r.segmenter.Receive(msg, offset, count, timestamp)
}

// IsRecording reports whether a session is being captured.
func (r *Recorder) IsRecording() bool {
	return r.recording.Load()
}

// HasInput reports whether the current session has recorded at least one event.
func (r *Recorder) HasInput() bool {
	return r.hasInput.Load()
}

// HasData reports whether there is anything to save or play back.
func (r *Recorder) HasData() bool {
	return !r.store.IsEmpty()
}

// Events returns a snapshot of the session in capture order.
func (r *Recorder) Events() []contracts.MidiEvent {
	return r.store.Snapshot()
}

// Encode returns the session as a Standard MIDI File.
func (r *Recorder) Encode() []byte {
	return smf.Encode(r.store.Snapshot())
}

// Save writes the session as a Standard MIDI File to w.
func (r *Recorder) Save(w io.Writer) error {
	_, err := smf.WriteTo(w, r.store.Snapshot())
	return err
}

// FileName returns the default file name for a recording saved at now.
func FileName(now time.Time) string {
	return "rec-" + now.Format("150405") + ".mid"
}

// SaveFile writes the session into dir under FileName(now) and returns the path.
func (r *Recorder) SaveFile(dir string, now time.Time) (string, error) {
	path := filepath.Join(dir, FileName(now))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSaveFile, err)
	}
	if err := r.Save(f); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("%w: %v", ErrSaveFile, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSaveFile, err)
	}

	r.logger.Info("MIDI file saved", r.logger.Field().String("path", path))
	return path, nil
}
