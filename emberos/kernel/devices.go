package kernel

import (
	"encoding/binary"

	"ember/hal"
)

// statusSize is the size of a device status message: a little-endian int64.
const statusSize = 8

func (k *Kernel) initDevices() {
	mustBox := func() MailboxID {
		id, err := k.CreateMailbox(1, statusSize)
		if err != nil {
			k.halt("devices: %v", err)
		}
		return id
	}
	k.clockBox = mustBox()
	for i := range k.diskBoxes {
		k.diskBoxes[i] = mustBox()
	}
	for i := range k.termBoxes {
		k.termBoxes[i] = mustBox()
	}

	k.m.SetHandler(hal.IRQClock, k.clockHandler)
	k.m.SetHandler(hal.IRQDisk, func(unit int) { k.deviceHandler(hal.IRQDisk, unit) })
	k.m.SetHandler(hal.IRQTerm, func(unit int) { k.deviceHandler(hal.IRQTerm, unit) })
}

func (k *Kernel) deviceBox(irq hal.IRQ, unit int) (MailboxID, bool) {
	switch irq {
	case hal.IRQClock:
		return k.clockBox, unit == 0
	case hal.IRQDisk:
		if unit >= 0 && unit < len(k.diskBoxes) {
			return k.diskBoxes[unit], true
		}
	case hal.IRQTerm:
		if unit >= 0 && unit < len(k.termBoxes) {
			return k.termBoxes[unit], true
		}
	}
	return -1, false
}

// clockHandler posts the time to the clock mailbox every ClockDivisor ticks,
// then lets the dispatcher check the quantum. The reading goes out first so a
// sleeper woken by it competes in the same dispatch.
func (k *Kernel) clockHandler(int) {
	k.ticks++
	if k.ticks%k.cfg.ClockDivisor == 0 {
		now, err := k.m.DeviceInput(hal.IRQClock, 0)
		if err != nil {
			k.halt("Error: fail DeviceInput on clock: %v", err)
			return
		}
		k.post(k.clockBox, now)
	}
	k.TimeSlice()
}

func (k *Kernel) deviceHandler(irq hal.IRQ, unit int) {
	box, ok := k.deviceBox(irq, unit)
	if !ok {
		k.halt("Error: %s interrupt for invalid unit %d", irq, unit)
		return
	}
	status, err := k.m.DeviceInput(irq, unit)
	if err != nil {
		k.halt("Error: fail DeviceInput on %s unit %d: %v", irq, unit, err)
		return
	}
	k.post(box, status)
}

// post drops the status if the previous one has not been collected.
func (k *Kernel) post(box MailboxID, status int) {
	var buf [statusSize]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(int64(status)))
	if err := k.CondSend(box, buf[:]); err != nil {
		k.trace.Debug("device status dropped", "mailbox", box, "err", err)
	}
}

// DeviceWait blocks until the device raises an interrupt and returns its
// status. For the clock the status is the time in microseconds. An invalid
// unit is fatal.
func (k *Kernel) DeviceWait(irq hal.IRQ, unit int) int {
	k.requireKernel("waitDevice")
	psr := k.disableInterrupts()
	defer k.restore(psr)

	box, ok := k.deviceBox(irq, unit)
	if !ok {
		k.halt("Error: type is %s but unit is %d, halt simulation", irq, unit)
		return 0
	}
	var buf [statusSize]byte
	k.ioWaiters++
	n, err := k.Receive(box, buf[:])
	k.ioWaiters--
	if err != nil || n != statusSize {
		k.halt("Error: device mailbox for %s unit %d: %v", irq, unit, err)
		return 0
	}
	return int(int64(binary.LittleEndian.Uint64(buf[:])))
}

// CheckIO returns the number of processes waiting in DeviceWait.
func (k *Kernel) CheckIO() int {
	k.requireKernel("checkIO")
	psr := k.disableInterrupts()
	defer k.restore(psr)
	return k.ioWaiters
}
