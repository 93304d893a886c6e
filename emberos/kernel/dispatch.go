package kernel

import "time"

func (k *Kernel) enqueue(slot int) {
	p := &k.procs[slot]
	if p.queued {
		k.halt("dispatcher: pid %d queued twice", p.pid)
		return
	}
	p.queued = true
	p.nextReady = noSlot
	prio := p.priority
	if k.readyTail[prio] == noSlot {
		k.readyHead[prio] = slot
	} else {
		k.procs[k.readyTail[prio]].nextReady = slot
	}
	k.readyTail[prio] = slot
}

func (k *Kernel) dequeue(prio int) int {
	slot := k.readyHead[prio]
	if slot == noSlot {
		return noSlot
	}
	p := &k.procs[slot]
	k.readyHead[prio] = p.nextReady
	if k.readyHead[prio] == noSlot {
		k.readyTail[prio] = noSlot
	}
	p.nextReady = noSlot
	p.queued = false
	return slot
}

// dequeueFrom takes the head of the first non-empty bucket at or below prio.
func (k *Kernel) dequeueFrom(prio int) int {
	for ; prio <= numPriorities; prio++ {
		if slot := k.dequeue(prio); slot != noSlot {
			return slot
		}
	}
	return noSlot
}

func (k *Kernel) makeReady(slot int) {
	p := &k.procs[slot]
	p.state = StateReady
	p.reason = 0
	k.enqueue(slot)
}

// dispatch picks the next process after any state change. Interrupts must be
// disabled.
func (k *Kernel) dispatch() {
	cur := &k.procs[k.current]
	if cur.state == StateDying {
		return
	}

	for prio := HighestPriority; prio < cur.priority; prio++ {
		if next := k.dequeue(prio); next != noSlot {
			k.switchTo(next)
			return
		}
	}

	if cur.state == StateBlocked || cur.state == StateDead {
		next := k.dequeueFrom(cur.priority)
		if next == noSlot {
			k.halt("dispatcher: no runnable process")
			return
		}
		k.switchTo(next)
		return
	}

	now := k.m.Now()
	if time.Duration(now-cur.sliceStart)*time.Microsecond < k.cfg.Quantum {
		return
	}
	if next := k.dequeue(cur.priority); next != noSlot {
		k.switchTo(next)
		return
	}
	cur.cpu += now - cur.sliceStart
	cur.sliceStart = now
}

func (k *Kernel) switchTo(next int) {
	now := k.m.Now()
	prev := k.current
	op := &k.procs[prev]
	np := &k.procs[next]

	op.cpu += now - op.sliceStart
	if op.state == StateRunning {
		k.makeReady(prev)
	}
	np.state = StateRunning
	np.sliceStart = now
	k.current = next

	k.cfg.MMU.Switch(op.pid, np.pid)
	k.trace.Debug("switch", "from", op.pid, "to", np.pid, "state", op.state)

	if op.state == StateDead {
		exited := op.exited
		if op.reaped {
			k.clearSlot(prev)
		}
		if exited {
			k.m.ExitContext(&np.ctx)
		}
		k.m.SwitchContext(nil, &np.ctx)
		return
	}
	k.m.SwitchContext(&op.ctx, &np.ctx)
}

// TimeSlice runs the dispatcher's quantum check. The clock interrupt calls it
// on every tick.
func (k *Kernel) TimeSlice() {
	k.requireKernel("timeSlice")
	psr := k.disableInterrupts()
	defer k.restore(psr)
	k.dispatch()
}
