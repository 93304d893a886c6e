package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"

	"ember/emberos/kernel"
	clocksvc "ember/emberos/services/clock"
	"ember/emberos/services/logger"
	"ember/hal"
)

const (
	clockPriority  = kernel.HighestPriority
	loggerPriority = kernel.HighestPriority + 1
)

var errNoServices = errors.New("services did not start")

// Config configures an ember system.
type Config struct {
	Kernel kernel.Config

	// Script is the boot script source. Empty runs DefaultScript.
	Script string

	// Stacks prints the Go stack of the halting process.
	Stacks bool
}

type system struct {
	console hal.Logger
	script  []Command

	log   *logger.Service
	clock *clocksvc.Service
	err   error

	names map[kernel.PID]string
}

// New parses the boot script and builds a kernel on m. The returned function
// boots the system and never returns; hand it to Host.Run or RunHeadless.
func New(m hal.Machine, cfg Config) (func(), error) {
	src := cfg.Script
	if strings.TrimSpace(src) == "" {
		src = DefaultScript
	}
	script, err := ParseScript(strings.NewReader(src))
	if err != nil {
		return nil, err
	}

	s := &system{
		console: m.Console(),
		script:  script,
		names:   make(map[kernel.PID]string),
	}

	kcfg := cfg.Kernel
	services, onHalt := kcfg.Services, kcfg.OnHalt
	kcfg.Services = func(k *kernel.Kernel) {
		s.startServices(k)
		if services != nil {
			services(k)
		}
	}
	handler := haltHandler(m.Console(), cfg.Stacks)
	kcfg.OnHalt = func(info kernel.HaltInfo) {
		handler(info)
		if onHalt != nil {
			onHalt(info)
		}
	}

	k := kernel.New(m, kcfg)
	return func() { k.Start(s.run) }, nil
}

func (s *system) startServices(k *kernel.Kernel) {
	var err error
	if s.log, err = logger.Start(k, s.console, loggerPriority); err != nil {
		s.err = fmt.Errorf("logger: %w", err)
		return
	}
	if s.clock, err = clocksvc.Start(k, clockPriority); err != nil {
		s.err = fmt.Errorf("clock: %w", err)
	}
}

// printf goes through the logger service once it is up.
func (s *system) printf(format string, args ...any) {
	if s.log != nil && s.log.Printf(format, args...) == nil {
		return
	}
	s.console.WriteLineString(fmt.Sprintf(format, args...))
}

// run is the main process: it executes the boot script and reaps whatever
// is still running at the end.
func (s *system) run(k *kernel.Kernel, _ string) int {
	if s.err != nil {
		s.printf("ember: %v: %v", errNoServices, s.err)
		return 1
	}
	for _, cmd := range s.script {
		if err := s.exec(k, cmd); err != nil {
			s.printf("ember: line %d: %v", cmd.Line, err)
			return 1
		}
	}
	for len(s.names) > 0 {
		s.join(k)
	}
	return 0
}

func (s *system) exec(k *kernel.Kernel, cmd Command) error {
	switch cmd.Op {
	case OpSpawn:
		return s.spawn(k, cmd)
	case OpJoin:
		if !cmd.All {
			s.join(k)
			return nil
		}
		for len(s.names) > 0 {
			s.join(k)
		}
	case OpDump:
		k.DumpProcesses()
	case OpSleep:
		return s.clock.Sleep(cmd.Duration)
	case OpPrint:
		s.printf("%s", cmd.Text)
	}
	return nil
}

func (s *system) spawn(k *kernel.Kernel, cmd Command) error {
	w := workloads[cmd.Workload]
	entry := func(k *kernel.Kernel, arg string) int {
		args, err := shlex.Split(arg)
		if err != nil {
			s.printf("%s: %v", cmd.Name, err)
			return 2
		}
		return w.run(s, k, proc{name: cmd.Name, prio: cmd.Priority, args: args})
	}
	pid, err := k.Fork(cmd.Name, entry, quoteArgs(cmd.Args), k.Config().MinStack, cmd.Priority)
	if err != nil {
		return fmt.Errorf("spawn %s: %w", cmd.Workload, err)
	}
	s.names[pid] = cmd.Name
	return nil
}

func (s *system) join(k *kernel.Kernel) {
	if len(s.names) == 0 {
		s.printf("join: no children")
		return
	}
	pid, status, err := k.Join()
	if errors.Is(err, kernel.ErrNoChildren) {
		clear(s.names)
		return
	}
	s.printf("joined %s (pid %d) status %d", s.names[pid], pid, status)
	delete(s.names, pid)
}
