package kernel

// slotPool is the global message buffer pool shared by all mailboxes. Each
// slot keeps its buffer between uses.
type slotPool struct {
	slots []msgSlot
	inUse int
	next  int
}

type msgSlot struct {
	used bool
	data []byte
}

func newSlotPool(n int) slotPool {
	return slotPool{slots: make([]msgSlot, n)}
}

// alloc copies msg into a free slot, scanning forward from the most
// recently freed one.
func (sp *slotPool) alloc(msg []byte) (int, bool) {
	n := len(sp.slots)
	if sp.inUse >= n {
		return 0, false
	}
	for i := 0; i < n; i++ {
		idx := (sp.next + i) % n
		s := &sp.slots[idx]
		if s.used {
			continue
		}
		s.used = true
		s.data = append(s.data[:0], msg...)
		sp.inUse++
		sp.next = (idx + 1) % n
		return idx, true
	}
	return 0, false
}

func (sp *slotPool) bytes(idx int) []byte { return sp.slots[idx].data }

func (sp *slotPool) free(idx int) {
	s := &sp.slots[idx]
	if !s.used {
		return
	}
	s.used = false
	s.data = s.data[:0]
	sp.inUse--
	sp.next = idx
}

// SlotsInUse returns the number of message slots currently holding a
// buffered message.
func (k *Kernel) SlotsInUse() int {
	k.requireKernel("slotsInUse")
	return k.pool.inUse
}
