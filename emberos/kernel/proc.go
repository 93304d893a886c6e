package kernel

import (
	"fmt"

	"ember/hal"
)

// PID identifies a process. PIDs grow monotonically; the table slot is
// pid mod MaxProc.
type PID int

// Entry is a process body. Its return value becomes the quit status.
type Entry func(k *Kernel, arg string) int

// Priorities. 1 is the highest user priority.
const (
	HighestPriority = 1
	LowestPriority  = 5

	initPriority     = 6
	sentinelPriority = 7
	numPriorities    = sentinelPriority
)

// Reason tells why a process is blocked. Values up to ReservedReason are
// reserved and rejected by BlockMe.
type Reason int

const (
	ReservedReason Reason = 10

	ReasonSend    Reason = 15
	ReasonReceive Reason = 16
	ReasonJoin    Reason = 20
	ReasonZap     Reason = 21
)

// ProcState is the lifecycle state of a process table slot.
type ProcState uint8

const (
	StateEmpty ProcState = iota
	StateReady
	StateRunning
	StateBlocked
	StateDying
	StateDead
)

func (s ProcState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateDying:
		return "dying"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

const noSlot = -1

// waitRecord is per-process mailbox scratch. msg holds the outgoing payload
// while queued as a producer, or the payload handed over directly while
// queued as a consumer.
type waitRecord struct {
	blocked  bool
	fed      bool
	released bool
	msg      []byte
}

type pcb struct {
	pid       PID
	name      string
	priority  int
	entry     Entry
	arg       string
	stackSize int

	state  ProcState
	reason Reason

	parent     int
	firstChild int
	lastChild  int
	older      int
	younger    int
	children   int

	cpu        int64
	sliceStart int64
	status     int
	reaped     bool
	exited     bool // returned from its entry; nothing of it is left on the stack

	zapped  bool
	zappers []int

	nextReady int
	queued    bool

	wait waitRecord
	ctx  hal.Context
}

func (p *pcb) reset() {
	*p = pcb{
		parent:     noSlot,
		firstChild: noSlot,
		lastChild:  noSlot,
		older:      noSlot,
		younger:    noSlot,
		nextReady:  noSlot,
	}
}

func (k *Kernel) slotOf(pid PID) int { return int(pid) % len(k.procs) }

// lookup returns the slot holding pid, or noSlot.
func (k *Kernel) lookup(pid PID) int {
	if pid <= 0 {
		return noSlot
	}
	slot := k.slotOf(pid)
	p := &k.procs[slot]
	if p.state == StateEmpty || p.pid != pid {
		return noSlot
	}
	return slot
}

// Fork creates a child of the calling process. The new process is READY on
// return; if it outranks the caller it has already run.
func (k *Kernel) Fork(name string, entry Entry, arg string, stackSize, priority int) (PID, error) {
	k.requireKernel("fork")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	pid, err := k.fork(name, entry, arg, stackSize, priority, LowestPriority)
	if err != nil {
		return 0, err
	}
	k.dispatch()
	return pid, nil
}

// fork validates and installs a process without dispatching. lowest is the
// lowest priority allowed; init and the sentinel pass their own.
func (k *Kernel) fork(name string, entry Entry, arg string, stackSize, priority, lowest int) (PID, error) {
	switch {
	case stackSize < k.cfg.MinStack:
		return 0, fmt.Errorf("%w: %d < %d", ErrStackTooSmall, stackSize, k.cfg.MinStack)
	case priority < HighestPriority || priority > lowest:
		return 0, fmt.Errorf("%w: priority %d outside [%d,%d]", ErrInvalidArgument, priority, HighestPriority, lowest)
	case name == "":
		return 0, fmt.Errorf("%w: empty name", ErrInvalidArgument)
	case len(name) > k.cfg.MaxName:
		return 0, fmt.Errorf("%w: name longer than %d bytes", ErrInvalidArgument, k.cfg.MaxName)
	case len(arg) > k.cfg.MaxArg:
		return 0, fmt.Errorf("%w: argument longer than %d bytes", ErrInvalidArgument, k.cfg.MaxArg)
	case entry == nil:
		return 0, fmt.Errorf("%w: nil entry", ErrInvalidArgument)
	case k.procCount >= len(k.procs):
		return 0, ErrProcTableFull
	}

	slot := noSlot
	var pid PID
	for i := 0; i < len(k.procs); i++ {
		cand := k.nextPID
		k.nextPID++
		if k.procs[k.slotOf(cand)].state == StateEmpty {
			slot, pid = k.slotOf(cand), cand
			break
		}
	}
	// Unreachable while procCount tracks the non-empty slots; kept so a
	// bookkeeping bug fails the fork instead of overwriting a live process.
	if slot == noSlot {
		return 0, ErrOutOfSlots
	}

	p := &k.procs[slot]
	p.reset()
	p.pid = pid
	p.name = name
	p.priority = priority
	p.entry = entry
	p.arg = arg
	p.stackSize = stackSize
	p.parent = k.current
	k.procCount++

	if k.current != noSlot {
		k.linkChild(k.current, slot)
	}

	k.m.InitContext(&p.ctx, stackSize, func() { k.launch(slot) })
	k.cfg.MMU.InitProc(pid)
	k.makeReady(slot)

	k.trace.Debug("fork", "pid", pid, "name", name, "priority", priority, "parent", k.pidAt(k.current))
	return pid, nil
}

// linkChild appends child as the youngest child of parent.
func (k *Kernel) linkChild(parent, child int) {
	pp := &k.procs[parent]
	c := &k.procs[child]
	c.parent = parent
	c.older = pp.lastChild
	c.younger = noSlot
	if pp.lastChild != noSlot {
		k.procs[pp.lastChild].younger = child
	} else {
		pp.firstChild = child
	}
	pp.lastChild = child
	pp.children++
}

// deleteProc unlinks slot from its parent and clears it once it is dead and
// reaped.
func (k *Kernel) deleteProc(slot int) {
	p := &k.procs[slot]
	if p.parent != noSlot {
		pp := &k.procs[p.parent]
		switch {
		case pp.firstChild == slot && pp.lastChild == slot:
			pp.firstChild, pp.lastChild = noSlot, noSlot
		case pp.firstChild == slot:
			pp.firstChild = p.younger
			k.procs[p.younger].older = noSlot
		case pp.lastChild == slot:
			pp.lastChild = p.older
			k.procs[p.older].younger = noSlot
		default:
			k.procs[p.older].younger = p.younger
			k.procs[p.younger].older = p.older
		}
		pp.children--
		p.parent, p.older, p.younger = noSlot, noSlot, noSlot
	}
	if p.state == StateDead && p.reaped {
		k.clearSlot(slot)
	}
}

func (k *Kernel) clearSlot(slot int) {
	k.procs[slot].reset()
	k.procCount--
}

// launch is the first code a new process runs.
func (k *Kernel) launch(slot int) {
	p := &k.procs[slot]
	entry, arg := p.entry, p.arg
	k.restore(hal.PSRKernel | hal.PSRInterrupts)
	status := entry(k, arg)
	k.procs[slot].exited = true
	k.Quit(status)
}

func (k *Kernel) pidAt(slot int) PID {
	if slot == noSlot {
		return 0
	}
	return k.procs[slot].pid
}

// GetPID returns the pid of the calling process.
func (k *Kernel) GetPID() PID {
	k.requireKernel("getpid")
	return k.pidAt(k.current)
}
