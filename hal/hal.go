package hal

import "errors"

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var (
	ErrInvalidPSR  = errors.New("invalid psr value")
	ErrInvalidUnit = errors.New("invalid device unit")
)

// IRQ identifies an interrupt source.
type IRQ uint8

const (
	IRQClock IRQ = iota
	IRQDisk
	IRQTerm

	numIRQ
)

// Units per interrupt source.
const (
	ClockUnits = 1
	DiskUnits  = 2
	TermUnits  = 4

	maxUnits = TermUnits
)

func (q IRQ) String() string {
	switch q {
	case IRQClock:
		return "clock"
	case IRQDisk:
		return "disk"
	case IRQTerm:
		return "term"
	default:
		return "unknown"
	}
}

// Units returns the number of device units behind the interrupt source.
func (q IRQ) Units() int {
	switch q {
	case IRQClock:
		return ClockUnits
	case IRQDisk:
		return DiskUnits
	case IRQTerm:
		return TermUnits
	default:
		return 0
	}
}

// Handler is an interrupt handler. It runs on the interrupted context with
// interrupts disabled.
type Handler func(unit int)

// Machine is the only contact point between the kernel and the simulated CPU.
//
// Exactly one context executes at a time. Everything except Raise must be
// called from the running context.
type Machine interface {
	Console() Logger

	// Now returns the monotonic machine time in microseconds.
	Now() int64

	PSR() uint32
	SetPSR(psr uint32) error

	// InitContext prepares c so that the first switch into it runs entry.
	InitContext(c *Context, stackSize int, entry func())
	// SwitchContext saves the running context into from and resumes to.
	// A nil from discards the running context: the caller never resumes.
	SwitchContext(from, to *Context)
	// ExitContext resumes to and ends the running context's goroutine.
	// Deferred calls still pending on the caller's stack run after to holds
	// the baton, so there must be none that touch the machine.
	ExitContext(to *Context)

	SetHandler(irq IRQ, h Handler)
	DeviceInput(irq IRQ, unit int) (int, error)

	// WaitInt idles the CPU until an interrupt is pending, then delivers it.
	WaitInt()

	// Halt stops the machine with the given exit code. It does not return.
	Halt(code int)
}
