//go:build linux || darwin || freebsd

package hal

import "golang.org/x/sys/unix"

func monotonicMicros() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return fallbackMicros()
	}
	return unix.TimespecToNsec(ts) / 1_000
}
