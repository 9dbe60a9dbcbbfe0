// Package dispatch hands transport batches from driver threads to the active
// contracts.Receiver.
package dispatch

import (
	"sync"

	"github.com/leandrodaf/midirecorder/sdk/contracts"
)

// Dispatcher guards the active receiver of a native transport. Deliver runs on the
// driver's callback thread; Clear blocks until deliveries in flight have returned, so
// no batch reaches a receiver after Clear.
type Dispatcher struct {
	mu       sync.RWMutex
	receiver contracts.Receiver
}

// Set makes receiver the target of subsequent deliveries.
func (d *Dispatcher) Set(receiver contracts.Receiver) {
	d.mu.Lock()
	d.receiver = receiver
	d.mu.Unlock()
}

// Clear detaches the receiver and waits for in-flight deliveries.
// It must not be called from inside Receive.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	d.receiver = nil
	d.mu.Unlock()
}

// Active reports whether a receiver is attached.
func (d *Dispatcher) Active() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.receiver != nil
}

// Deliver passes msg[offset:offset+count] to the receiver and reports whether one
// was attached.
func (d *Dispatcher) Deliver(msg []byte, offset, count int, timestamp int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.receiver == nil || count <= 0 {
		return false
	}
	d.receiver.Receive(msg, offset, count, timestamp)
	return true
}
