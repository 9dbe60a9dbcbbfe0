package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leandrodaf/midirecorder/sdk/contracts"
	"github.com/leandrodaf/midirecorder/sdk/smf"
	gomidi "gitlab.com/gomidi/midi/v2"
	"go.uber.org/multierr"
)

var (
	// ErrNothingToPlay is returned when a session without events is played.
	ErrNothingToPlay = errors.New("nothing to play back")
	// ErrAlreadyPlaying is returned by Start while a playback is running.
	ErrAlreadyPlaying = errors.New("playback already in progress")
	// ErrSendFailed is returned when the output rejects a message.
	ErrSendFailed = errors.New("error sending MIDI message")
)

// allNotesOff is the controller number of the All Notes Off channel mode message.
const allNotesOff = 123

// Player replays sessions on an output with the timing they were captured with:
// each event is sent once the time elapsed since playback start reaches its offset.
type Player struct {
	logger   contracts.Logger
	preamble [][]byte
	tail     time.Duration
	now      func() int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPlayer creates a player.
func NewPlayer(opts ...contracts.SessionOption) *Player {
	options := applySessionOptions(opts...)
	return &Player{
		logger:   options.Logger,
		preamble: options.PlaybackPreamble,
		tail:     options.PlaybackTail,
		now:      options.Clock,
	}
}

// Play replays events on out and blocks until the last event has been sent and the
// tail has elapsed, or until ctx is done. Whatever the outcome, every channel
// receives All Notes Off before Play returns.
func (p *Player) Play(ctx context.Context, events []contracts.MidiEvent, out contracts.Output) (err error) {
	if len(events) == 0 {
		return ErrNothingToPlay
	}
	defer func() {
		err = multierr.Append(err, p.silence(out))
	}()

	for _, msg := range p.preamble {
		if err := send(out, msg); err != nil {
			return err
		}
	}

	start := p.now()
	for _, ev := range smf.Sorted(events) {
		wait := time.Duration(start + ev.TimestampOffset - p.now())
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		if err := send(out, ev.Data); err != nil {
			p.logger.Error(ErrSendFailed.Error(),
				p.logger.Field().String("message", gomidi.Message(ev.Data).String()),
				p.logger.Field().Error("error", err))
			return err
		}
		p.logger.Debug("Played MIDI event",
			p.logger.Field().String("message", gomidi.Message(ev.Data).String()),
			p.logger.Field().Int64("offset", ev.TimestampOffset))
	}

	return sleep(ctx, p.tail)
}

// Start runs Play in the background. onDone, when not nil, receives Play's result;
// a playback ended by Stop reports context.Canceled.
func (p *Player) Start(events []contracts.MidiEvent, out contracts.Output, onDone func(error)) error {
	if len(events) == 0 {
		return ErrNothingToPlay
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return ErrAlreadyPlaying
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	snapshot := append([]contracts.MidiEvent(nil), events...)
	go func() {
		err := p.Play(ctx, snapshot, out)
		cancel()

		p.mu.Lock()
		if p.done == done {
			p.done = nil
			p.cancel = nil
		}
		p.mu.Unlock()
		close(done)

		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error("Playback failed", p.logger.Field().Error("error", err))
		} else {
			p.logger.Info("Playback finished")
		}
		if onDone != nil {
			onDone(err)
		}
	}()

	p.logger.Info("Playback started", p.logger.Field().Int("events", len(snapshot)))
	return nil
}

// Stop cancels a running playback and waits until the output has been silenced.
func (p *Player) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// IsPlaying reports whether a background playback is running.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil
}

// silence sends All Notes Off on all 16 channels.
func (p *Player) silence(out contracts.Output) error {
	var err error
	for ch := uint8(0); ch < 16; ch++ {
		err = multierr.Append(err, send(out, gomidi.ControlChange(ch, allNotesOff, 0)))
	}
	return err
}

func send(out contracts.Output, msg []byte) error {
	if err := out.Send(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// sleep waits for d or until ctx is done. Non-positive durations only check ctx.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
