package hal

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic microsecond time source.
type Clock interface {
	Now() int64
}

// VirtualClock only moves when told to. Simulated work (Host.Compute) and
// idle waits (Host.WaitInt) advance it, which makes scheduling deterministic.
type VirtualClock struct {
	us atomic.Int64
}

// NewVirtualClock returns a virtual clock starting at zero.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

func (c *VirtualClock) Now() int64 { return c.us.Load() }

// Advance moves the clock forward by d.
func (c *VirtualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.us.Add(d.Microseconds())
}

// Set moves the clock to us if that is in the future.
func (c *VirtualClock) Set(us int64) {
	for {
		cur := c.us.Load()
		if us <= cur {
			return
		}
		if c.us.CompareAndSwap(cur, us) {
			return
		}
	}
}

// MonotonicClock reads the host monotonic clock, relative to its creation.
type MonotonicClock struct {
	base int64
}

// NewMonotonicClock returns a clock that reads zero now.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{base: monotonicMicros()}
}

func (c *MonotonicClock) Now() int64 {
	return monotonicMicros() - c.base
}

var processStart = time.Now()

func fallbackMicros() int64 {
	return time.Since(processStart).Microseconds()
}
