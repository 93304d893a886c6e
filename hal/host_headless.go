package hal

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
)

// HeadlessConfig controls the terminal host runner.
type HeadlessConfig struct {
	Host HostConfig
	// Input, if set, is fed into terminal unit InputUnit.
	Input     io.Reader
	InputUnit int
	// Timeout stops the machine after the given wall time (0 = no limit).
	Timeout time.Duration
}

// ErrTimeout is returned when the machine outlives HeadlessConfig.Timeout.
var ErrTimeout = errors.New("machine timed out")

// RunHeadless creates a host machine, hands it to boot and runs it until it
// halts. boot must switch into the first context and never return.
func RunHeadless(ctx context.Context, cfg HeadlessConfig, boot func(*Host)) (int, error) {
	h := NewHost(cfg.Host)

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	code := -1
	g.Go(func() error {
		c, err := h.Run(gctx, func() { boot(h) })
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout
		}
		code = c
		return err
	})
	if cfg.Input != nil {
		serial := NewSerial(cfg.Input, cfg.InputUnit)
		g.Go(func() error {
			err := serial.Feed(gctx, h)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		})
	}
	err := g.Wait()
	return code, err
}
