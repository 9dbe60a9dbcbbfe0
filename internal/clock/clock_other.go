//go:build !(linux || darwin || freebsd)

package clock

// Now returns monotonic nanoseconds since the process started.
func Now() int64 {
	return sinceEpoch()
}
