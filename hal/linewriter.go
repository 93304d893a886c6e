package hal

import (
	"bytes"
	"io"
	"sync"
)

// LineWriter adapts a Logger to an io.Writer. Each complete line written is
// forwarded without its newline; a partial line is held until it completes.
func LineWriter(l Logger) io.Writer {
	return &lineWriter{l: l}
}

type lineWriter struct {
	mu  sync.Mutex
	l   Logger
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.l.WriteLineBytes(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) == 0 {
		w.buf = nil
	}
	return len(p), nil
}
