//go:build !(linux || darwin || freebsd)

package hal

func monotonicMicros() int64 {
	return fallbackMicros()
}
