package clocksvc

import (
	"errors"
	"slices"
	"time"

	"ember/emberos/kernel"
	"ember/emberos/proto"
	"ember/hal"
)

// ReasonSleep is the block reason of a process inside Sleep.
const ReasonSleep kernel.Reason = 30

// requestSize is a framed MsgSleep request.
const requestSize = proto.HeaderSize + 12

type sleeper struct {
	pid kernel.PID
	due int64
}

// Service is the clock driver. It waits on the clock device and wakes
// sleeping processes once their wake time has passed.
type Service struct {
	k   *kernel.Kernel
	box kernel.MailboxID
	pid kernel.PID

	now      int64
	sleepers []sleeper // sorted by due, then arrival
}

// Start creates the request mailbox and forks the driver process.
func Start(k *kernel.Kernel, priority int) (*Service, error) {
	cfg := k.Config()
	box, err := k.CreateMailbox(cfg.MaxProc, requestSize)
	if err != nil {
		return nil, err
	}
	s := &Service{k: k, box: box, sleepers: make([]sleeper, 0, cfg.MaxProc)}
	s.pid, err = k.Fork("clock", s.run, "", cfg.MinStack, priority)
	if err != nil {
		_ = k.ReleaseMailbox(box)
		return nil, err
	}
	return s, nil
}

// PID returns the driver process id.
func (s *Service) PID() kernel.PID { return s.pid }

// Sleep blocks the caller for at least d. The driver runs on clock readings,
// so the wake-up is rounded up to the next one.
func (s *Service) Sleep(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	due := s.k.ReadTime() + d.Microseconds()
	pid := s.k.GetPID()
	if err := s.k.Send(s.box, proto.SleepPayload(uint32(pid), due)); err != nil {
		return err
	}
	s.k.BlockMe(ReasonSleep)
	return nil
}

// Stop releases the request mailbox. The driver wakes every sleeper and
// quits on its next clock reading.
func (s *Service) Stop() error {
	return s.k.ReleaseMailbox(s.box)
}

func (s *Service) run(k *kernel.Kernel, _ string) int {
	for {
		s.now = int64(k.DeviceWait(hal.IRQClock, 0))
		if !s.drainRequests() {
			s.wakeAll()
			return 0
		}
		s.wakeReady()
	}
}

// drainRequests reports false once the request mailbox is gone.
func (s *Service) drainRequests() bool {
	var buf [requestSize]byte
	for {
		n, err := s.k.CondReceive(s.box, buf[:])
		switch {
		case errors.Is(err, kernel.ErrWouldBlock):
			return true
		case errors.Is(err, kernel.ErrReleased), errors.Is(err, kernel.ErrInvalidHandle):
			return false
		case err != nil:
			continue
		}
		kind, body, ok := proto.Decode(buf[:n])
		if !ok || kind != proto.MsgSleep {
			continue
		}
		pid, due, ok := proto.DecodeSleepPayload(body)
		if !ok {
			continue
		}
		s.schedule(kernel.PID(pid), due)
	}
}

func (s *Service) schedule(pid kernel.PID, due int64) {
	i, _ := slices.BinarySearchFunc(s.sleepers, due, func(sl sleeper, due int64) int {
		if sl.due <= due {
			return -1
		}
		return 1
	})
	s.sleepers = slices.Insert(s.sleepers, i, sleeper{pid: pid, due: due})
}

// wakeReady unblocks due sleepers in order. A sleeper that has not reached
// BlockMe yet stays queued for the next reading.
func (s *Service) wakeReady() {
	kept := s.sleepers[:0]
	for _, sl := range s.sleepers {
		if sl.due <= s.now && s.asleep(sl.pid) {
			s.k.UnblockProc(sl.pid)
			continue
		}
		kept = append(kept, sl)
	}
	s.sleepers = kept
}

func (s *Service) wakeAll() {
	for _, sl := range s.sleepers {
		if s.asleep(sl.pid) {
			s.k.UnblockProc(sl.pid)
		}
	}
	s.sleepers = s.sleepers[:0]
}

func (s *Service) asleep(pid kernel.PID) bool {
	reason, ok := s.k.BlockedOn(pid)
	return ok && reason == ReasonSleep
}
