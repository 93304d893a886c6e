package kernel

import (
	"io"
	"log/slog"
	"time"
)

// Config sizes the kernel tables. Zero fields take the DefaultConfig value.
type Config struct {
	MaxProc  int // process table slots
	MaxName  int // bytes in a process name
	MaxArg   int // bytes in a process argument
	MinStack int // smallest stack Fork accepts

	MaxMailboxes int
	MaxSlots     int // global message slot pool
	MaxMessage   int // largest slotSize CreateMailbox accepts

	// Quantum is the time slice before round robin among equal priorities.
	Quantum time.Duration
	// ClockDivisor is how many clock ticks pass between clock mailbox readings.
	ClockDivisor int

	// MMU receives process lifecycle hooks.
	MMU MMU

	// Services runs inside init before the sentinel and main are forked.
	// It is the place to fork driver processes.
	Services func(k *Kernel)

	// Trace receives debug events. Discarded when nil.
	Trace *slog.Logger

	// OnHalt is called at most once, on the first fatal kernel error.
	OnHalt func(HaltInfo)
}

// DefaultConfig returns the stock table sizes.
func DefaultConfig() Config {
	return Config{
		MaxProc:      50,
		MaxName:      50,
		MaxArg:       100,
		MinStack:     80 * 1024,
		MaxMailboxes: 2000,
		MaxSlots:     2500,
		MaxMessage:   150,
		Quantum:      80 * time.Millisecond,
		ClockDivisor: 5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxProc <= 0 {
		c.MaxProc = d.MaxProc
	}
	if c.MaxName <= 0 {
		c.MaxName = d.MaxName
	}
	if c.MaxArg <= 0 {
		c.MaxArg = d.MaxArg
	}
	if c.MinStack <= 0 {
		c.MinStack = d.MinStack
	}
	if c.MaxMailboxes <= 0 {
		c.MaxMailboxes = d.MaxMailboxes
	}
	if c.MaxSlots <= 0 {
		c.MaxSlots = d.MaxSlots
	}
	if c.MaxMessage <= 0 {
		c.MaxMessage = d.MaxMessage
	}
	if c.Quantum <= 0 {
		c.Quantum = d.Quantum
	}
	if c.ClockDivisor <= 0 {
		c.ClockDivisor = d.ClockDivisor
	}
	if c.MMU == nil {
		c.MMU = nopMMU{}
	}
	if c.Trace == nil {
		c.Trace = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// MMU is the memory management unit's view of process lifecycle.
type MMU interface {
	InitProc(pid PID)
	Quit(pid PID)
	Switch(old, new PID)
}

type nopMMU struct{}

func (nopMMU) InitProc(PID)    {}
func (nopMMU) Quit(PID)        {}
func (nopMMU) Switch(PID, PID) {}
