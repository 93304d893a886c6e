package app

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/shlex"

	"ember/emberos/kernel"
)

// ErrScript is returned for a malformed boot script.
var ErrScript = errors.New("boot script")

// DefaultScript runs one of every workload except echo.
const DefaultScript = `# ember default boot script
print "ember: booting workloads"
spawn spin -name spinA 200ms
spawn spin -name spinB 200ms
spawn pingpong 3
spawn pipeline -prio 3 10
spawn sleep -prio 2 150ms
dump
join all
spawn exit -name failing 7
join
print "ember: done"
`

// Op is a boot script verb.
type Op string

const (
	OpSpawn Op = "spawn"
	OpJoin  Op = "join"
	OpDump  Op = "dump"
	OpSleep Op = "sleep"
	OpPrint Op = "print"
)

// Command is one parsed script line.
type Command struct {
	Line int
	Op   Op

	// spawn
	Workload string
	Name     string
	Priority int
	Args     []string

	// join
	All bool

	// sleep
	Duration time.Duration

	// print
	Text string
}

// ParseScript parses a boot script. Lines are split like a POSIX shell; a
// '#' starts a comment.
//
//	spawn WORKLOAD [-prio N] [-name NAME] [ARG...]
//	join [all]
//	dump
//	sleep DURATION
//	print WORD...
func ParseScript(r io.Reader) ([]Command, error) {
	var cmds []Command
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		words, err := shlex.Split(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrScript, line, err)
		}
		if len(words) == 0 {
			continue
		}
		cmd, err := parseCommand(words)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrScript, line, err)
		}
		cmd.Line = line
		cmds = append(cmds, cmd)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScript, err)
	}
	return cmds, nil
}

func parseCommand(words []string) (Command, error) {
	cmd := Command{Op: Op(words[0])}
	args := words[1:]
	switch cmd.Op {
	case OpSpawn:
		return parseSpawn(cmd, args)
	case OpJoin:
		switch {
		case len(args) == 0:
		case len(args) == 1 && args[0] == "all":
			cmd.All = true
		default:
			return cmd, fmt.Errorf("usage: join [all]")
		}
	case OpDump:
		if len(args) != 0 {
			return cmd, fmt.Errorf("usage: dump")
		}
	case OpSleep:
		if len(args) != 1 {
			return cmd, fmt.Errorf("usage: sleep DURATION")
		}
		d, err := time.ParseDuration(args[0])
		if err != nil || d < 0 {
			return cmd, fmt.Errorf("sleep: bad duration %q", args[0])
		}
		cmd.Duration = d
	case OpPrint:
		cmd.Text = strings.Join(args, " ")
	default:
		return cmd, fmt.Errorf("unknown command %q", words[0])
	}
	return cmd, nil
}

func parseSpawn(cmd Command, args []string) (Command, error) {
	if len(args) == 0 {
		return cmd, fmt.Errorf("usage: spawn WORKLOAD [-prio N] [-name NAME] [ARG...]")
	}
	w, ok := workloads[args[0]]
	if !ok {
		return cmd, fmt.Errorf("spawn: unknown workload %q (have %s)", args[0], strings.Join(workloadNames(), ", "))
	}
	cmd.Workload = args[0]

	fs := flag.NewFlagSet("spawn "+args[0], flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&cmd.Priority, "prio", kernel.LowestPriority, "process priority")
	fs.StringVar(&cmd.Name, "name", args[0], "process name")
	if err := fs.Parse(args[1:]); err != nil {
		return cmd, fmt.Errorf("spawn %s: %v", args[0], err)
	}
	if cmd.Priority < kernel.HighestPriority || cmd.Priority > kernel.LowestPriority {
		return cmd, fmt.Errorf("spawn %s: priority %d out of range %d..%d",
			args[0], cmd.Priority, kernel.HighestPriority, kernel.LowestPriority)
	}
	cmd.Args = fs.Args()
	if len(cmd.Args) < w.minArgs || len(cmd.Args) > w.maxArgs {
		return cmd, fmt.Errorf("usage: spawn %s", w.usage)
	}
	return cmd, nil
}

// quoteArgs joins args so that shlex.Split gives them back.
func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		if a != "" && !strings.ContainsAny(a, " \t\n'\"\\#") {
			quoted[i] = a
			continue
		}
		quoted[i] = "'" + strings.ReplaceAll(a, "'", `'"'"'`) + "'"
	}
	return strings.Join(quoted, " ")
}
