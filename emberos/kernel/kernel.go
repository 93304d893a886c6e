package kernel

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"ember/hal"
)

// Kernel owns every kernel table. All methods must be called from a process
// (or an interrupt handler) running on the kernel's machine.
type Kernel struct {
	m     hal.Machine
	cfg   Config
	trace *slog.Logger

	procs     []pcb
	procCount int
	nextPID   PID
	current   int

	readyHead [numPriorities + 1]int
	readyTail [numPriorities + 1]int

	mailboxes []mailbox
	pool      slotPool

	clockBox  MailboxID
	diskBoxes [hal.DiskUnits]MailboxID
	termBoxes [hal.TermUnits]MailboxID
	ticks     int
	ioWaiters int

	main     Entry
	haltOnce sync.Once
}

// New builds a kernel on m. Call Start to run it.
func New(m hal.Machine, cfg Config) *Kernel {
	cfg = cfg.withDefaults()
	k := &Kernel{
		m:         m,
		cfg:       cfg,
		trace:     cfg.Trace,
		procs:     make([]pcb, cfg.MaxProc),
		nextPID:   1,
		current:   noSlot,
		mailboxes: make([]mailbox, cfg.MaxMailboxes),
		pool:      newSlotPool(cfg.MaxSlots),
	}
	for i := range k.procs {
		k.procs[i].reset()
	}
	for i := range k.readyHead {
		k.readyHead[i], k.readyTail[i] = noSlot, noSlot
	}
	k.initDevices()
	return k
}

// Config returns the effective configuration.
func (k *Kernel) Config() Config { return k.cfg }

// Machine returns the machine the kernel runs on.
func (k *Kernel) Machine() hal.Machine { return k.m }

// Start forks init and switches into it. main runs as a child of init at
// priority LowestPriority; its return value halts the machine. Start does
// not return.
func (k *Kernel) Start(main Entry) {
	k.requireKernel("start")
	k.disableInterrupts()
	k.main = main

	if _, err := k.fork("init", initProc, "", k.cfg.MinStack, initPriority, initPriority); err != nil {
		k.halt("start: cannot create init: %v", err)
		return
	}
	next := k.dequeueFrom(HighestPriority)
	p := &k.procs[next]
	p.state = StateRunning
	p.sliceStart = k.m.Now()
	k.current = next
	k.cfg.MMU.Switch(0, p.pid)
	k.m.SwitchContext(nil, &p.ctx)
}

// initProc is pid 1. It starts the services, the sentinel and main, then
// reaps orphans forever.
func initProc(k *Kernel, _ string) int {
	if k.cfg.Services != nil {
		k.cfg.Services(k)
	}
	psr := k.disableInterrupts()
	if _, err := k.fork("sentinel", sentinelProc, "", k.cfg.MinStack, sentinelPriority, sentinelPriority); err != nil {
		k.halt("init: cannot create sentinel: %v", err)
	}
	if _, err := k.fork("main", mainProc, "", k.cfg.MinStack, LowestPriority, LowestPriority); err != nil {
		k.halt("init: cannot create main: %v", err)
	}
	k.dispatch()
	k.restore(psr)

	for {
		pid, status, err := k.Join()
		if errors.Is(err, ErrNoChildren) {
			k.halt("init: no children left")
			return 1
		}
		k.trace.Debug("init reaped", "pid", pid, "status", status)
	}
}

// sentinelProc runs only when nothing else can. If no process is waiting on
// a device nothing will ever wake the others.
func sentinelProc(k *Kernel, _ string) int {
	for {
		if k.CheckIO() == 0 {
			k.halt("DEADLOCK DETECTED!  All of the processes have blocked, but I/O is not ongoing.")
			return 1
		}
		k.m.WaitInt()
	}
}

func mainProc(k *Kernel, arg string) int {
	status := k.main(k, arg)
	if status != 0 {
		k.trace.Warn("main returned an error status", "status", status)
	}
	k.m.Halt(status)
	return status
}

// requireKernel halts if the caller is in user mode.
func (k *Kernel) requireKernel(op string) {
	if k.m.PSR()&hal.PSRKernel == 0 {
		k.halt("ERROR: Someone attempted to call %s while in user mode!", op)
	}
}

func (k *Kernel) disableInterrupts() uint32 {
	psr := k.m.PSR()
	k.setPSR(psr &^ hal.PSRInterrupts)
	return psr
}

func (k *Kernel) restore(psr uint32) { k.setPSR(psr) }

func (k *Kernel) setPSR(psr uint32) {
	if err := k.m.SetPSR(psr); err != nil {
		k.halt("psr: %v", err)
	}
}

// ReadTime returns the machine clock in microseconds.
func (k *Kernel) ReadTime() int64 {
	k.requireKernel("readtime")
	return k.m.Now()
}

// CurrentTime is ReadTime as a duration since the machine started.
func (k *Kernel) CurrentTime() time.Duration {
	return time.Duration(k.ReadTime()) * time.Microsecond
}

// ReadCurStartTime returns when the current time slice began.
func (k *Kernel) ReadCurStartTime() int64 {
	k.requireKernel("readCurStartTime")
	return k.procs[k.current].sliceStart
}

// CPUTime returns the CPU time used by the caller, including the current
// slice, in microseconds.
func (k *Kernel) CPUTime() int64 {
	k.requireKernel("cputime")
	p := &k.procs[k.current]
	return p.cpu + k.m.Now() - p.sliceStart
}
