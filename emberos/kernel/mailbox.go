package kernel

import "fmt"

// MailboxID is a handle returned by CreateMailbox.
type MailboxID int

type mailboxStatus uint8

const (
	mailboxEmpty mailboxStatus = iota
	mailboxOccupied
	mailboxDestroyed
)

type mailbox struct {
	status   mailboxStatus
	capacity int
	maxSize  int

	msgs      ring[int] // pool slot indices
	producers ring[int] // process slots
	consumers ring[int]

	// draining counts released waiters that have not yet returned.
	draining int
}

// CreateMailbox allocates a mailbox holding up to slots messages of at most
// slotSize bytes. Zero slots makes a rendezvous mailbox.
func (k *Kernel) CreateMailbox(slots, slotSize int) (MailboxID, error) {
	k.requireKernel("createMailbox")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	switch {
	case slots < 0 || slotSize < 0:
		return -1, fmt.Errorf("%w: slots=%d slotSize=%d", ErrInvalidArgument, slots, slotSize)
	case slotSize > k.cfg.MaxMessage:
		return -1, fmt.Errorf("%w: slotSize %d exceeds %d", ErrInvalidArgument, slotSize, k.cfg.MaxMessage)
	}
	for i := range k.mailboxes {
		mb := &k.mailboxes[i]
		if mb.status != mailboxEmpty {
			continue
		}
		*mb = mailbox{
			status:    mailboxOccupied,
			capacity:  slots,
			maxSize:   slotSize,
			msgs:      newRing[int](slots),
			producers: newRing[int](len(k.procs)),
			consumers: newRing[int](len(k.procs)),
		}
		k.trace.Debug("mailbox create", "id", i, "slots", slots, "slotSize", slotSize)
		return MailboxID(i), nil
	}
	return -1, ErrOutOfMailboxes
}

// ReleaseMailbox destroys a mailbox. Every process waiting on it returns
// ErrReleased. Buffered messages are discarded and both wait queues are empty
// when ReleaseMailbox returns; the handle becomes reusable once the last
// waiter has returned.
func (k *Kernel) ReleaseMailbox(id MailboxID) error {
	k.requireKernel("releaseMailbox")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	if id < 0 || int(id) >= len(k.mailboxes) || k.mailboxes[id].status != mailboxOccupied {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, id)
	}
	mb := &k.mailboxes[id]
	mb.status = mailboxDestroyed

	notify := func(slot int) {
		p := &k.procs[slot]
		p.wait.released = true
		mb.draining++
		k.wake(slot)
	}
	mb.producers.each(notify)
	mb.consumers.each(notify)
	mb.producers.reset()
	mb.consumers.reset()
	for {
		idx, ok := mb.msgs.pop()
		if !ok {
			break
		}
		k.pool.free(idx)
	}

	k.trace.Debug("mailbox release", "id", id, "waiters", mb.draining)
	if mb.draining == 0 {
		*mb = mailbox{}
	}
	k.dispatch()
	return nil
}

// Send delivers msg, blocking while the mailbox is full or, for a rendezvous
// mailbox, until a receiver arrives. Senders are served in arrival order.
func (k *Kernel) Send(id MailboxID, msg []byte) error {
	k.requireKernel("send")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	mb, err := k.mailbox(id, len(msg))
	if err != nil {
		return err
	}
	slot := k.current
	p := &k.procs[slot]
	p.wait = waitRecord{msg: msg}
	mb.producers.push(slot)

	for {
		if p.wait.released {
			return k.observeRelease(id)
		}
		if p.wait.fed {
			// Taken directly by a rendezvous receiver.
			p.wait = waitRecord{}
			return nil
		}
		if k.producerReady(mb, slot) {
			break
		}
		k.waitOn(ReasonSend)
	}
	mb.producers.pop()
	p.wait = waitRecord{}

	if c, ok := mb.consumers.peek(); ok && mb.msgs.len() == 0 {
		k.feed(mb, c, msg)
	} else {
		idx, ok := k.pool.alloc(msg)
		if !ok {
			k.halt("Error: all available system mail slots are in use, halt simulation")
			return ErrSlotsExhausted
		}
		mb.msgs.push(idx)
	}
	k.wakeNext(mb)
	k.dispatch()
	return nil
}

// Receive copies the next message into buf and returns its size. A message
// larger than buf is consumed and reported as ErrMessageTooLarge.
func (k *Kernel) Receive(id MailboxID, buf []byte) (int, error) {
	k.requireKernel("receive")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	mb, err := k.mailbox(id, 0)
	if err != nil {
		return 0, err
	}
	slot := k.current
	p := &k.procs[slot]
	p.wait = waitRecord{}
	mb.consumers.push(slot)

	for {
		if p.wait.released {
			return 0, k.observeRelease(id)
		}
		if p.wait.fed || k.consumerReady(mb, slot) {
			break
		}
		k.waitOn(ReasonReceive)
	}

	var n int
	if p.wait.fed {
		n, err = copyMessage(buf, p.wait.msg)
		p.wait = waitRecord{}
	} else {
		mb.consumers.pop()
		n, err = k.take(mb, buf)
	}
	k.wakeNext(mb)
	k.dispatch()
	return n, err
}

// CondSend is Send without blocking: ErrWouldBlock if it would have to wait,
// ErrSlotsExhausted if the pool is full.
func (k *Kernel) CondSend(id MailboxID, msg []byte) error {
	k.requireKernel("condSend")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	mb, err := k.mailbox(id, len(msg))
	if err != nil {
		return err
	}
	if mb.producers.len() > 0 {
		return ErrWouldBlock
	}
	if c, ok := mb.consumers.peek(); ok && mb.msgs.len() == 0 {
		k.feed(mb, c, msg)
		k.dispatch()
		return nil
	}
	if mb.msgs.len() >= mb.capacity {
		return ErrWouldBlock
	}
	idx, ok := k.pool.alloc(msg)
	if !ok {
		return ErrSlotsExhausted
	}
	mb.msgs.push(idx)
	k.wakeNext(mb)
	k.dispatch()
	return nil
}

// CondReceive is Receive without blocking.
func (k *Kernel) CondReceive(id MailboxID, buf []byte) (int, error) {
	k.requireKernel("condReceive")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	mb, err := k.mailbox(id, 0)
	if err != nil {
		return 0, err
	}
	if mb.consumers.len() > 0 {
		return 0, ErrWouldBlock
	}
	if mb.msgs.len() == 0 && !(mb.capacity == 0 && mb.producers.len() > 0) {
		return 0, ErrWouldBlock
	}
	n, err := k.take(mb, buf)
	k.wakeNext(mb)
	k.dispatch()
	return n, err
}

// MessageCount returns the number of buffered messages in a mailbox.
func (k *Kernel) MessageCount(id MailboxID) (int, error) {
	k.requireKernel("messageCount")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	mb, err := k.mailbox(id, 0)
	if err != nil {
		return 0, err
	}
	return mb.msgs.len(), nil
}

// mailbox resolves a handle for an operation carrying size bytes.
func (k *Kernel) mailbox(id MailboxID, size int) (*mailbox, error) {
	if id < 0 || int(id) >= len(k.mailboxes) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, id)
	}
	mb := &k.mailboxes[id]
	switch mb.status {
	case mailboxEmpty:
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, id)
	case mailboxDestroyed:
		return nil, ErrReleased
	}
	if size > mb.maxSize {
		return nil, fmt.Errorf("%w: %d bytes, mailbox %d takes %d", ErrMessageTooLarge, size, id, mb.maxSize)
	}
	return mb, nil
}

func (k *Kernel) producerReady(mb *mailbox, slot int) bool {
	if head, ok := mb.producers.peek(); !ok || head != slot {
		return false
	}
	if mb.capacity == 0 {
		return mb.consumers.len() > 0
	}
	return mb.msgs.len() < mb.capacity
}

func (k *Kernel) consumerReady(mb *mailbox, slot int) bool {
	if head, ok := mb.consumers.peek(); !ok || head != slot {
		return false
	}
	return mb.msgs.len() > 0 || (mb.capacity == 0 && mb.producers.len() > 0)
}

// take removes the next message, from the buffer or straight from the head
// producer of a rendezvous mailbox, and copies it into buf.
func (k *Kernel) take(mb *mailbox, buf []byte) (int, error) {
	if idx, ok := mb.msgs.pop(); ok {
		n, err := copyMessage(buf, k.pool.bytes(idx))
		k.pool.free(idx)
		return n, err
	}
	prod, _ := mb.producers.pop()
	pp := &k.procs[prod]
	n, err := copyMessage(buf, pp.wait.msg)
	pp.wait.fed = true
	pp.wait.msg = nil
	k.wake(prod)
	return n, err
}

// feed hands msg to the waiting consumer c without using the slot pool.
func (k *Kernel) feed(mb *mailbox, c int, msg []byte) {
	mb.consumers.remove(c)
	cp := &k.procs[c]
	cp.wait.fed = true
	cp.wait.msg = append([]byte(nil), msg...)
	k.wake(c)
}

// wakeNext wakes the head producer and head consumer if they can now make
// progress.
func (k *Kernel) wakeNext(mb *mailbox) {
	if h, ok := mb.producers.peek(); ok && k.producerReady(mb, h) {
		k.wake(h)
	}
	if h, ok := mb.consumers.peek(); ok && k.consumerReady(mb, h) {
		k.wake(h)
	}
}

// waitOn blocks the caller inside a mailbox operation.
func (k *Kernel) waitOn(reason Reason) {
	p := &k.procs[k.current]
	p.wait.blocked = true
	k.block(reason)
	p.wait.blocked = false
}

// wake readies a process blocked in waitOn. It does not dispatch.
func (k *Kernel) wake(slot int) {
	p := &k.procs[slot]
	if !p.wait.blocked {
		return
	}
	p.wait.blocked = false
	k.makeReady(slot)
}

// observeRelease is the last touch a released waiter has on the mailbox.
func (k *Kernel) observeRelease(id MailboxID) error {
	k.procs[k.current].wait = waitRecord{}
	mb := &k.mailboxes[id]
	mb.draining--
	if mb.draining == 0 {
		*mb = mailbox{}
	}
	return ErrReleased
}

func copyMessage(dst, msg []byte) (int, error) {
	if len(msg) > len(dst) {
		return 0, fmt.Errorf("%w: %d bytes into a %d byte buffer", ErrMessageTooLarge, len(msg), len(dst))
	}
	return copy(dst, msg), nil
}
