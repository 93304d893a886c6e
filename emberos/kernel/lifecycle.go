package kernel

// Quit terminates the caller with status. The caller must have reaped all of
// its children. Quit does not return.
func (k *Kernel) Quit(status int) {
	k.requireKernel("quit")
	k.disableInterrupts()

	slot := k.current
	p := &k.procs[slot]
	if p.children > 0 {
		k.halt("ERROR: Process pid %d called quit() while it still had children.", p.pid)
		return
	}

	p.status = status
	p.state = StateDying
	k.cfg.MMU.Quit(p.pid)

	if p.parent != noSlot {
		pp := &k.procs[p.parent]
		if pp.state == StateBlocked && pp.reason == ReasonJoin {
			k.makeReady(p.parent)
		}
	}
	for _, z := range p.zappers {
		zp := &k.procs[z]
		if zp.state == StateBlocked && zp.reason == ReasonZap {
			k.makeReady(z)
		}
	}
	p.zappers = nil

	k.trace.Debug("quit", "pid", p.pid, "status", status)
	p.state = StateDead
	k.dispatch()
}

// Join reaps a terminated child, youngest first, and returns its pid and
// quit status. It blocks while all children are alive and returns
// ErrNoChildren when there are none.
func (k *Kernel) Join() (PID, int, error) {
	k.requireKernel("join")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	p := &k.procs[k.current]
	for {
		if p.children == 0 {
			return 0, 0, ErrNoChildren
		}
		for c := p.lastChild; c != noSlot; c = k.procs[c].older {
			cp := &k.procs[c]
			if cp.state != StateDying && cp.state != StateDead {
				continue
			}
			pid, status := cp.pid, cp.status
			cp.reaped = true
			k.deleteProc(c)
			k.trace.Debug("join", "parent", p.pid, "child", pid, "status", status)
			return pid, status, nil
		}
		k.block(ReasonJoin)
	}
}

// Zap marks pid as zapped and blocks until it has quit. Zapping init, the
// caller, or a process that does not exist or is already dying is fatal.
func (k *Kernel) Zap(pid PID) {
	k.requireKernel("zap")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	self := &k.procs[k.current]
	switch {
	case pid <= 0:
		k.halt("ERROR: Attempt to zap() a PID which is <=0.  other_pid = %d", pid)
		return
	case pid == 1:
		k.halt("ERROR: Attempt to zap() init.")
		return
	case pid == self.pid:
		k.halt("ERROR: Attempt to zap() itself.")
		return
	}
	slot := k.lookup(pid)
	if slot == noSlot {
		k.halt("ERROR: Attempt to zap() a non-existent process.")
		return
	}
	t := &k.procs[slot]
	if t.state == StateDying || t.state == StateDead {
		k.halt("ERROR: Attempt to zap() a process that is already in the process of dying.")
		return
	}

	t.zapped = true
	at := len(t.zappers)
	for i, z := range t.zappers {
		if k.procs[z].priority > self.priority {
			at = i
			break
		}
	}
	t.zappers = append(t.zappers, 0)
	copy(t.zappers[at+1:], t.zappers[at:])
	t.zappers[at] = k.current
	k.trace.Debug("zap", "by", self.pid, "target", pid)

	for k.procs[slot].pid == pid && k.procs[slot].state != StateDead && k.procs[slot].state != StateEmpty {
		k.block(ReasonZap)
	}
}

// IsZapped reports whether another process is waiting for the caller to quit.
func (k *Kernel) IsZapped() bool {
	k.requireKernel("isZapped")
	return k.procs[k.current].zapped
}
