package dispatch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leandrodaf/midirecorder/sdk/contracts"
)

func TestDispatcherDeliversToReceiver(t *testing.T) {
	var d Dispatcher
	require.False(t, d.Active())
	require.False(t, d.Deliver([]byte{0x90, 0x3C, 0x64}, 0, 3, 1))

	var got []byte
	d.Set(contracts.ReceiverFunc(func(msg []byte, offset, count int, _ int64) {
		got = append(got, msg[offset:offset+count]...)
	}))
	require.True(t, d.Active())
	require.True(t, d.Deliver([]byte{0x90, 0x3C, 0x64}, 0, 3, 1))
	require.False(t, d.Deliver([]byte{0x90}, 0, 0, 2))
	require.Equal(t, []byte{0x90, 0x3C, 0x64}, got)

	d.Clear()
	require.False(t, d.Active())
	require.False(t, d.Deliver([]byte{0x80, 0x3C, 0x00}, 0, 3, 3))
	require.Equal(t, []byte{0x90, 0x3C, 0x64}, got)
}

func TestDispatcherClearWaitsForInFlightDelivery(t *testing.T) {
	var d Dispatcher
	entered := make(chan struct{})
	release := make(chan struct{})
	d.Set(contracts.ReceiverFunc(func([]byte, int, int, int64) {
		close(entered)
		<-release
	}))

	go d.Deliver([]byte{0xF8}, 0, 1, 0)
	<-entered

	cleared := make(chan struct{})
	go func() {
		d.Clear()
		close(cleared)
	}()

	select {
	case <-cleared:
		t.Fatal("Clear returned while a delivery was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-cleared:
	case <-time.After(2 * time.Second):
		t.Fatal("Clear did not return")
	}
}

func TestDispatcherNoDeliveryAfterClear(t *testing.T) {
	var d Dispatcher
	var cleared atomic.Bool
	var late atomic.Int64
	d.Set(contracts.ReceiverFunc(func([]byte, int, int, int64) {
		if cleared.Load() {
			late.Add(1)
		}
	}))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					d.Deliver([]byte{0xF8}, 0, 1, 0)
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	d.Clear()
	cleared.Store(true)
	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()

	require.Zero(t, late.Load())
}
