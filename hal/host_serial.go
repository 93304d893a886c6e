package hal

import (
	"bufio"
	"context"
	"errors"
	"io"
	"time"
)

// Terminal status register layout: the received character sits above the
// status bits.
const (
	TermRecvReady = 1 << iota
	TermXmitReady
)

// TermStatus encodes a received character as a terminal status word.
func TermStatus(ch byte) int {
	return int(ch)<<8 | TermRecvReady | TermXmitReady
}

// TermChar extracts the received character from a terminal status word.
func TermChar(status int) (byte, bool) {
	if status&TermRecvReady == 0 {
		return 0, false
	}
	return byte(status >> 8), true
}

// Serial feeds bytes from r into a terminal unit, one interrupt per byte.
type Serial struct {
	r    io.Reader
	unit int
	// Pace is the minimum gap between two characters.
	Pace time.Duration
}

// NewSerial returns a serial line bound to terminal unit.
func NewSerial(r io.Reader, unit int) *Serial {
	return &Serial{r: r, unit: unit, Pace: time.Millisecond}
}

// Feed raises IRQTerm for every byte read until r is exhausted, ctx is done
// or the machine halts. A character is not raised while the previous one is
// still pending on the unit.
func (s *Serial) Feed(ctx context.Context, h *Host) error {
	if s.unit < 0 || s.unit >= TermUnits {
		return ErrInvalidUnit
	}
	bytes := make(chan byte)
	readErr := make(chan error, 1)
	go func() {
		br := bufio.NewReader(s.r)
		for {
			b, err := br.ReadByte()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case bytes <- b:
			case <-ctx.Done():
				return
			case <-h.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case b := <-bytes:
			for h.unitPending(IRQTerm, s.unit) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-h.Done():
					return nil
				case <-time.After(s.Pace):
				}
			}
			if err := h.Raise(IRQTerm, s.unit, TermStatus(b)); err != nil {
				return err
			}
		}
	}
}
