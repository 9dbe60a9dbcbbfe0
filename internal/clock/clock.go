// Package clock provides the monotonic nanosecond timestamps stamped on captured
// MIDI batches and used to pace playback.
package clock

import "time"

var epoch = time.Now()

// sinceEpoch reads Go's monotonic clock reading relative to package start.
func sinceEpoch() int64 {
	return int64(time.Since(epoch))
}
