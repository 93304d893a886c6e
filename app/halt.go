package app

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"ember/emberos/kernel"
	"ember/hal"
)

// stackColumns wraps stack lines on the console.
const stackColumns = 120

func haltHandler(l hal.Logger, stacks bool) func(kernel.HaltInfo) {
	return func(info kernel.HaltInfo) {
		if l == nil {
			return
		}
		l.WriteLineString(fmt.Sprintf("ember halt: pid=%d reason=%s", info.PID, info.Reason))
		if !stacks {
			return
		}
		if len(info.Stack) == 0 {
			l.WriteLineString("stack: unavailable")
			return
		}
		l.WriteLineString("stack:")
		for _, line := range strings.Split(string(info.Stack), "\n") {
			for line != "" {
				var chunk string
				chunk, line = takeRunes(line, stackColumns)
				l.WriteLineString(chunk)
			}
		}
	}
}

func takeRunes(s string, n int) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if len(s) <= n {
		return s, ""
	}
	i, count := 0, 0
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		count++
	}
	return s[:i], s[i:]
}
