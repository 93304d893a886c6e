package app

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"time"

	"ember/emberos/kernel"
	"ember/hal"
)

// proc describes one spawned workload process.
type proc struct {
	name string
	prio int
	args []string
}

type workload struct {
	usage   string
	minArgs int
	maxArgs int
	run     func(s *system, k *kernel.Kernel, p proc) int
}

var workloads = map[string]workload{
	"spin":     {usage: "spin DURATION", minArgs: 1, maxArgs: 1, run: spin},
	"exit":     {usage: "exit STATUS", minArgs: 1, maxArgs: 1, run: exit},
	"sleep":    {usage: "sleep DURATION", minArgs: 1, maxArgs: 1, run: sleep},
	"pingpong": {usage: "pingpong [ROUNDS]", maxArgs: 1, run: pingpong},
	"pipeline": {usage: "pipeline COUNT [SLOTS]", minArgs: 1, maxArgs: 2, run: pipeline},
	"echo":     {usage: "echo [UNIT]", maxArgs: 1, run: echo},
}

func workloadNames() []string {
	names := make([]string, 0, len(workloads))
	for name := range workloads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// computer is a machine that can burn simulated CPU time.
type computer interface {
	Compute(d time.Duration)
}

const spinStep = 10 * time.Millisecond

func spin(s *system, k *kernel.Kernel, p proc) int {
	d, err := time.ParseDuration(p.args[0])
	if err != nil {
		s.printf("%s: bad duration %q", p.name, p.args[0])
		return 2
	}
	c, ok := k.Machine().(computer)
	if !ok {
		s.printf("%s: machine cannot compute", p.name)
		return 2
	}
	for left := d; left > 0; left -= spinStep {
		c.Compute(min(left, spinStep))
	}
	s.printf("%s: spun %v, cpu %v", p.name, d, time.Duration(k.CPUTime())*time.Microsecond)
	return 0
}

func exit(s *system, _ *kernel.Kernel, p proc) int {
	status, err := strconv.Atoi(p.args[0])
	if err != nil {
		s.printf("%s: bad status %q", p.name, p.args[0])
		return 2
	}
	return status
}

func sleep(s *system, k *kernel.Kernel, p proc) int {
	d, err := time.ParseDuration(p.args[0])
	if err != nil {
		s.printf("%s: bad duration %q", p.name, p.args[0])
		return 2
	}
	if err := s.clock.Sleep(d); err != nil {
		s.printf("%s: %v", p.name, err)
		return 1
	}
	s.printf("%s: woke at %v", p.name, k.CurrentTime())
	return 0
}

// pingpong bounces messages with a child over two rendezvous mailboxes.
// An empty message ends the child.
func pingpong(s *system, k *kernel.Kernel, p proc) int {
	rounds := 3
	if len(p.args) > 0 {
		n, err := strconv.Atoi(p.args[0])
		if err != nil || n < 0 {
			s.printf("%s: bad round count %q", p.name, p.args[0])
			return 2
		}
		rounds = n
	}
	size := k.Config().MaxMessage
	ping, err := k.CreateMailbox(0, size)
	if err != nil {
		s.printf("%s: %v", p.name, err)
		return 1
	}
	defer k.ReleaseMailbox(ping)
	pong, err := k.CreateMailbox(0, size)
	if err != nil {
		s.printf("%s: %v", p.name, err)
		return 1
	}
	defer k.ReleaseMailbox(pong)

	ponger := func(k *kernel.Kernel, _ string) int {
		buf := make([]byte, size)
		for {
			n, err := k.Receive(ping, buf)
			if err != nil || n == 0 {
				return 0
			}
			reply := append([]byte("re: "), buf[:n]...)
			if len(reply) > size {
				reply = reply[:size]
			}
			if err := k.Send(pong, reply); err != nil {
				return 1
			}
		}
	}
	if _, err := k.Fork(p.name+".pong", ponger, "", k.Config().MinStack, p.prio); err != nil {
		s.printf("%s: %v", p.name, err)
		return 1
	}

	buf := make([]byte, size)
	for i := 0; i < rounds; i++ {
		if err := k.Send(ping, []byte(fmt.Sprintf("ping %d", i))); err != nil {
			s.printf("%s: %v", p.name, err)
			break
		}
		n, err := k.Receive(pong, buf)
		if err != nil {
			s.printf("%s: %v", p.name, err)
			break
		}
		s.printf("%s: %s", p.name, buf[:n])
	}
	_ = k.Send(ping, nil)
	_, status, _ := k.Join()
	s.printf("%s: %d round trips", p.name, rounds)
	return status
}

// pipeline streams COUNT integers from a child through a buffered mailbox
// and sums them.
func pipeline(s *system, k *kernel.Kernel, p proc) int {
	count, err := strconv.Atoi(p.args[0])
	if err != nil || count < 0 {
		s.printf("%s: bad count %q", p.name, p.args[0])
		return 2
	}
	slots := 3
	if len(p.args) > 1 {
		if slots, err = strconv.Atoi(p.args[1]); err != nil || slots < 0 {
			s.printf("%s: bad slot count %q", p.name, p.args[1])
			return 2
		}
	}
	box, err := k.CreateMailbox(slots, 8)
	if err != nil {
		s.printf("%s: %v", p.name, err)
		return 1
	}
	defer k.ReleaseMailbox(box)

	producer := func(k *kernel.Kernel, _ string) int {
		var msg [8]byte
		for i := 1; i <= count; i++ {
			binary.LittleEndian.PutUint64(msg[:], uint64(i))
			if err := k.Send(box, msg[:]); err != nil {
				return 1
			}
		}
		if err := k.Send(box, nil); err != nil {
			return 1
		}
		return 0
	}
	if _, err := k.Fork(p.name+".producer", producer, "", k.Config().MinStack, p.prio); err != nil {
		s.printf("%s: %v", p.name, err)
		return 1
	}

	var sum int64
	var buf [8]byte
	for {
		n, err := k.Receive(box, buf[:])
		if err != nil {
			s.printf("%s: %v", p.name, err)
			break
		}
		if n == 0 {
			break
		}
		sum += int64(binary.LittleEndian.Uint64(buf[:]))
	}
	_, status, _ := k.Join()
	s.printf("%s: sum %d", p.name, sum)
	return status
}

// echo reads one line from a terminal unit.
func echo(s *system, k *kernel.Kernel, p proc) int {
	unit := 0
	if len(p.args) > 0 {
		u, err := strconv.Atoi(p.args[0])
		if err != nil || u < 0 || u >= hal.TermUnits {
			s.printf("%s: bad terminal unit %q", p.name, p.args[0])
			return 2
		}
		unit = u
	}
	var line []byte
	for {
		ch, ok := hal.TermChar(k.DeviceWait(hal.IRQTerm, unit))
		if !ok || ch == '\r' {
			continue
		}
		if ch == '\n' || ch == eot {
			break
		}
		line = append(line, ch)
	}
	s.printf("%s: %q", p.name, line)
	return 0
}

const eot = 0x04
