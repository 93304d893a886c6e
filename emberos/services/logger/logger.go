package logger

import (
	"errors"
	"fmt"

	"ember/emberos/kernel"
	"ember/emberos/proto"
	"ember/hal"
)

const queueDepth = 16

// Service is a process that prints every line sent to its mailbox.
type Service struct {
	k   *kernel.Kernel
	log hal.Logger
	box kernel.MailboxID
	max int
	pid kernel.PID
}

// Start creates the logger mailbox and forks the logger process. It must be
// called from a process.
func Start(k *kernel.Kernel, log hal.Logger, priority int) (*Service, error) {
	cfg := k.Config()
	box, err := k.CreateMailbox(queueDepth, cfg.MaxMessage)
	if err != nil {
		return nil, err
	}
	s := &Service{k: k, log: log, box: box, max: cfg.MaxMessage}
	s.pid, err = k.Fork("logger", s.run, "", cfg.MinStack, priority)
	if err != nil {
		_ = k.ReleaseMailbox(box)
		return nil, err
	}
	return s, nil
}

// PID returns the logger process id.
func (s *Service) PID() kernel.PID { return s.pid }

func (s *Service) run(k *kernel.Kernel, _ string) int {
	buf := make([]byte, s.max)
	for {
		n, err := k.Receive(s.box, buf)
		if errors.Is(err, kernel.ErrReleased) {
			return 0
		}
		if err != nil {
			continue
		}
		kind, body, ok := proto.Decode(buf[:n])
		if !ok || kind != proto.MsgLogLine {
			continue
		}
		s.log.WriteLineBytes(body)
	}
}

// Println queues a line, blocking while the queue is full.
func (s *Service) Println(line string) error {
	return s.k.Send(s.box, proto.LogLinePayload([]byte(line), s.max))
}

func (s *Service) Printf(format string, args ...any) error {
	return s.Println(fmt.Sprintf(format, args...))
}

// Stop releases the mailbox. Queued lines are dropped and the logger
// process quits.
func (s *Service) Stop() error {
	return s.k.ReleaseMailbox(s.box)
}
