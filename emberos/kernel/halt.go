package kernel

import (
	"fmt"
	"runtime/debug"
)

// HaltInfo describes a fatal kernel error.
type HaltInfo struct {
	PID    PID
	Reason string
	Stack  []byte
}

// halt reports a contract violation on the console and stops the machine
// with status 1. The OnHalt hook sees only the first one.
func (k *Kernel) halt(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	k.m.Console().WriteLineString(msg)
	k.haltOnce.Do(func() {
		info := HaltInfo{PID: k.pidAt(k.current), Reason: msg, Stack: debug.Stack()}
		k.trace.Error("halt", "pid", info.PID, "reason", msg)
		if k.cfg.OnHalt != nil {
			k.cfg.OnHalt(info)
		}
	})
	k.m.Halt(1)
}
