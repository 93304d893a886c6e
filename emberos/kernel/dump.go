package kernel

import "fmt"

// ProcInfo is a snapshot of one process table entry.
type ProcInfo struct {
	PID      PID
	PPID     PID
	Name     string
	Priority int
	State    ProcState
	Reason   Reason
	Status   int
	Children int
	CPUTime  int64
	Zapped   bool
}

func (pi ProcInfo) stateString() string {
	switch pi.State {
	case StateRunning:
		return "Running"
	case StateReady:
		return "Runnable"
	case StateDying, StateDead:
		return fmt.Sprintf("Terminated(%d)", pi.Status)
	case StateBlocked:
		switch pi.Reason {
		case ReasonJoin:
			return "Blocked(waiting for child to quit)"
		case ReasonZap:
			return "Blocked(waiting for zap target to quit)"
		default:
			return fmt.Sprintf("Blocked(%d)", pi.Reason)
		}
	default:
		return pi.State.String()
	}
}

// Processes returns every non-empty process table entry in slot order.
func (k *Kernel) Processes() []ProcInfo {
	k.requireKernel("processes")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	var out []ProcInfo
	for slot := range k.procs {
		p := &k.procs[slot]
		if p.state == StateEmpty {
			continue
		}
		cpu := p.cpu
		if slot == k.current {
			cpu += k.m.Now() - p.sliceStart
		}
		out = append(out, ProcInfo{
			PID:      p.pid,
			PPID:     k.pidAt(p.parent),
			Name:     p.name,
			Priority: p.priority,
			State:    p.state,
			Reason:   p.reason,
			Status:   p.status,
			Children: p.children,
			CPUTime:  cpu,
			Zapped:   p.zapped,
		})
	}
	return out
}

// DumpProcesses prints the process table on the console.
func (k *Kernel) DumpProcesses() {
	k.requireKernel("dumpProcesses")
	con := k.m.Console()
	con.WriteLineString(" PID  PPID  NAME              PRIORITY  STATE")
	for _, pi := range k.Processes() {
		con.WriteLineString(fmt.Sprintf("%4d  %4d  %-17s %-10d%s", pi.PID, pi.PPID, pi.Name, pi.Priority, pi.stateString()))
	}
}
