package kernel

// BlockMe blocks the caller until another process calls UnblockProc on it.
// Reasons up to ReservedReason are fatal.
func (k *Kernel) BlockMe(reason Reason) {
	k.requireKernel("blockMe")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	if reason <= ReservedReason {
		k.halt("ERROR: blockMe(): reason %d is reserved", reason)
		return
	}
	k.block(reason)
}

// UnblockProc makes a process blocked by BlockMe ready again. Unblocking a
// process that is not blocked is fatal.
func (k *Kernel) UnblockProc(pid PID) {
	k.requireKernel("unblockProc")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	slot := k.lookup(pid)
	if slot == noSlot {
		k.halt("ERROR: unblockProc(): pid %d does not exist", pid)
		return
	}
	p := &k.procs[slot]
	if p.state != StateBlocked {
		k.halt("ERROR: unblockProc(): pid %d is %s, not blocked", pid, p.state)
		return
	}
	if p.reason <= ReservedReason {
		k.halt("ERROR: unblockProc(): pid %d is blocked with reserved reason %d", pid, p.reason)
		return
	}
	k.makeReady(slot)
	k.dispatch()
}

// block parks the current process. Interrupts must be disabled.
func (k *Kernel) block(reason Reason) {
	p := &k.procs[k.current]
	p.state = StateBlocked
	p.reason = reason
	k.dispatch()
}

// BlockedOn reports the reason pid is blocked, or false if it is not blocked.
func (k *Kernel) BlockedOn(pid PID) (Reason, bool) {
	k.requireKernel("blockedOn")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	slot := k.lookup(pid)
	if slot == noSlot || k.procs[slot].state != StateBlocked {
		return 0, false
	}
	return k.procs[slot].reason, true
}
