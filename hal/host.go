package hal

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"
)

// DefaultTick is the clock interrupt period.
const DefaultTick = 20 * time.Millisecond

// HostConfig configures a host machine.
type HostConfig struct {
	// Console receives console lines. Defaults to os.Stdout.
	Console io.Writer
	// Clock defaults to a MonotonicClock.
	Clock Clock
	// Tick is the clock interrupt period. Defaults to DefaultTick.
	Tick time.Duration
}

// Host is a Machine whose contexts are goroutines passing a single baton.
type Host struct {
	logger *hostLogger
	clock  Clock
	tick   int64

	// Owned by the running context.
	psr      uint32
	nextTick int64
	handlers [numIRQ]Handler

	// Raised interrupts; written by device goroutines.
	mu      sync.Mutex
	pending [numIRQ]uint32
	status  [numIRQ][maxUnits]int
	wake    chan struct{}

	haltOnce sync.Once
	done     chan struct{}
	code     int
}

var _ Machine = (*Host)(nil)

// NewHost returns a host machine in kernel mode with interrupts disabled.
func NewHost(cfg HostConfig) *Host {
	w := cfg.Console
	if w == nil {
		w = os.Stdout
	}
	clock := cfg.Clock
	if clock == nil {
		clock = NewMonotonicClock()
	}
	tick := cfg.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	h := &Host{
		logger: &hostLogger{w: w},
		clock:  clock,
		tick:   tick.Microseconds(),
		psr:    PSRKernel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	h.nextTick = clock.Now() + h.tick
	return h
}

func (h *Host) Console() Logger { return h.logger }
func (h *Host) Now() int64      { return h.clock.Now() }
func (h *Host) PSR() uint32     { return h.psr }

// Clock returns the machine time source.
func (h *Host) Clock() Clock { return h.clock }

// SetPSR installs a new status register. Enabling interrupts delivers any
// that are pending.
func (h *Host) SetPSR(psr uint32) error {
	if !ValidPSR(psr) {
		return fmt.Errorf("%w: %#x", ErrInvalidPSR, psr)
	}
	h.psr = psr
	if psr&PSRInterrupts != 0 {
		h.deliver()
	}
	return nil
}

func (h *Host) InitContext(c *Context, stackSize int, entry func()) {
	c.init(stackSize, entry)
}

func (h *Host) SwitchContext(from, to *Context) {
	if from != nil {
		from.psr = h.psr
	}
	h.handOff(to)
	if from == nil {
		park()
	}
	<-from.resume
}

func (h *Host) ExitContext(to *Context) {
	h.handOff(to)
	runtime.Goexit()
}

// handOff gives the baton to c.
func (h *Host) handOff(c *Context) {
	h.psr = c.psr
	if !c.started {
		c.started = true
		go h.launch(c)
		return
	}
	c.resume <- struct{}{}
}

func (h *Host) launch(c *Context) {
	c.entry()
	h.logger.WriteLineString("hal: context entry returned")
	h.Halt(1)
}

func (h *Host) SetHandler(irq IRQ, fn Handler) {
	if irq >= numIRQ {
		return
	}
	h.handlers[irq] = fn
}

func (h *Host) DeviceInput(irq IRQ, unit int) (int, error) {
	if irq >= numIRQ || unit < 0 || unit >= irq.Units() {
		return 0, fmt.Errorf("%w: %s unit %d", ErrInvalidUnit, irq, unit)
	}
	if irq == IRQClock {
		return int(h.clock.Now()), nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status[irq][unit], nil
}

// Raise marks an interrupt pending and latches the unit status. It may be
// called from any goroutine.
func (h *Host) Raise(irq IRQ, unit int, status int) error {
	if irq >= numIRQ || unit < 0 || unit >= irq.Units() {
		return fmt.Errorf("%w: %s unit %d", ErrInvalidUnit, irq, unit)
	}
	h.mu.Lock()
	h.status[irq][unit] = status
	h.pending[irq] |= 1 << unit
	h.mu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
	return nil
}

// Poll is an instruction boundary: the clock is sampled and pending
// interrupts are delivered if enabled.
func (h *Host) Poll() {
	h.sampleClock()
	if h.psr&PSRInterrupts != 0 {
		h.deliver()
	}
}

// Compute simulates d of CPU work on the running context. A virtual clock is
// advanced tick by tick; a real clock is waited out.
func (h *Host) Compute(d time.Duration) {
	us := d.Microseconds()
	if vc, ok := h.clock.(*VirtualClock); ok {
		for us > 0 {
			step := h.nextTick - vc.Now()
			if step <= 0 || step > us {
				step = min(us, max(step, 1))
			}
			vc.Advance(time.Duration(step) * time.Microsecond)
			us -= step
			h.Poll()
		}
		return
	}
	deadline := h.clock.Now() + us
	for {
		h.Poll()
		left := deadline - h.clock.Now()
		if left <= 0 {
			return
		}
		time.Sleep(time.Duration(min(left, 1000)) * time.Microsecond)
	}
}

func (h *Host) WaitInt() {
	if !h.hasPending() {
		if vc, ok := h.clock.(*VirtualClock); ok {
			vc.Set(h.nextTick)
		} else if wait := h.nextTick - h.clock.Now(); wait > 0 {
			t := time.NewTimer(time.Duration(wait) * time.Microsecond)
			select {
			case <-h.wake:
			case <-t.C:
			case <-h.done:
			}
			t.Stop()
		}
	}
	h.Poll()
}

func (h *Host) Halt(code int) {
	h.haltOnce.Do(func() {
		h.code = code
		close(h.done)
	})
	park()
}

// Done is closed once the machine halts.
func (h *Host) Done() <-chan struct{} { return h.done }

// Run starts boot on a fresh goroutine and waits for the machine to halt.
// boot is expected to switch into the first context and never return.
func (h *Host) Run(ctx context.Context, boot func()) (int, error) {
	go boot()
	select {
	case <-h.done:
		return h.code, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (h *Host) sampleClock() {
	now := h.clock.Now()
	if now < h.nextTick {
		return
	}
	h.nextTick += h.tick * ((now-h.nextTick)/h.tick + 1)
	h.mu.Lock()
	h.pending[IRQClock] |= 1
	h.mu.Unlock()
}

func (h *Host) hasPending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.pending {
		if p != 0 {
			return true
		}
	}
	return false
}

func (h *Host) takePending() (IRQ, int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for irq := IRQ(0); irq < numIRQ; irq++ {
		p := h.pending[irq]
		if p == 0 {
			continue
		}
		for unit := 0; unit < maxUnits; unit++ {
			if p&(1<<unit) != 0 {
				h.pending[irq] &^= 1 << unit
				return irq, unit, true
			}
		}
	}
	return 0, 0, false
}

// deliver runs pending handlers while interrupts stay enabled. A handler may
// switch contexts; the interrupted context resumes it where it left off.
func (h *Host) deliver() {
	for h.psr&PSRInterrupts != 0 {
		irq, unit, ok := h.takePending()
		if !ok {
			return
		}
		fn := h.handlers[irq]
		if fn == nil {
			continue
		}
		saved := h.psr
		h.psr = interruptPSR(saved)
		fn(unit)
		h.psr = saved
	}
}

type hostLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

func (h *Host) unitPending(irq IRQ, unit int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending[irq]&(1<<unit) != 0
}
