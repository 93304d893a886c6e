package app

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/shlex"
)

func TestParseScript(t *testing.T) {
	src := `
# comment line
spawn spin -prio 3 -name "busy one" 20ms
spawn pipeline 5   # trailing comment
join
join all
dump
sleep 1.5s
print "hello   world" again
`
	cmds, err := ParseScript(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	want := []Command{
		{Line: 3, Op: OpSpawn, Workload: "spin", Name: "busy one", Priority: 3, Args: []string{"20ms"}},
		{Line: 4, Op: OpSpawn, Workload: "pipeline", Name: "pipeline", Priority: 5, Args: []string{"5"}},
		{Line: 5, Op: OpJoin},
		{Line: 6, Op: OpJoin, All: true},
		{Line: 7, Op: OpDump},
		{Line: 8, Op: OpSleep, Duration: 1500 * time.Millisecond},
		{Line: 9, Op: OpPrint, Text: "hello   world again"},
	}
	if !reflect.DeepEqual(cmds, want) {
		t.Fatalf("ParseScript =\n%+v\nwant\n%+v", cmds, want)
	}
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown command", "frobnicate", `unknown command "frobnicate"`},
		{"unknown workload", "spawn nope", `unknown workload "nope"`},
		{"missing workload", "spawn", "usage: spawn WORKLOAD"},
		{"bad priority", "spawn spin -prio 9 1s", "priority 9 out of range"},
		{"bad flag", "spawn spin -fast 1s", "spawn spin"},
		{"missing args", "spawn pipeline", "usage: spawn pipeline COUNT"},
		{"too many args", "spawn exit 1 2", "usage: spawn exit STATUS"},
		{"join extra", "join some", "usage: join [all]"},
		{"dump extra", "dump now", "usage: dump"},
		{"bad duration", "sleep forever", `bad duration "forever"`},
		{"unterminated quote", `print "open`, "line 1"},
		{"line number", "dump\n\nfrobnicate", "line 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript(strings.NewReader(tt.src))
			if !errors.Is(err, ErrScript) {
				t.Fatalf("err = %v, want ErrScript", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestQuoteArgsRoundTrip(t *testing.T) {
	args := []string{"plain", "two words", "it's", `say "hi"`, `back\slash`, "#hash"}
	got, err := shlex.Split(quoteArgs(args))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if !reflect.DeepEqual(got, args) {
		t.Fatalf("round trip = %q, want %q", got, args)
	}
}

func TestWorkloadNamesSorted(t *testing.T) {
	names := workloadNames()
	want := []string{"echo", "exit", "pingpong", "pipeline", "sleep", "spin"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("workloadNames = %v, want %v", names, want)
	}
}
