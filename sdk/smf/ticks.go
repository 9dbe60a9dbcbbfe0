package smf

const (
	// PPQ is the file resolution in ticks per quarter note.
	PPQ = 480
	// MicrosPerQuarterNote is the fixed tempo of every encoded file (120 BPM).
	MicrosPerQuarterNote = 500000
)

// Ticks converts a real-time delta in nanoseconds to whole ticks.
//
// The multiplication happens before the division; dividing first loses most of the
// precision for short deltas. Deltas at or below zero map to zero ticks.
func Ticks(deltaNanos int64, ppq int, microsPerQuarterNote int) int64 {
	if deltaNanos <= 0 {
		return 0
	}
	return deltaNanos * int64(ppq) / (int64(microsPerQuarterNote) * 1000)
}

// Nanos converts a tick count back to nanoseconds under the same tempo and resolution.
func Nanos(ticks int64, ppq int, microsPerQuarterNote int) int64 {
	if ticks <= 0 || ppq <= 0 {
		return 0
	}
	return ticks * int64(microsPerQuarterNote) * 1000 / int64(ppq)
}
