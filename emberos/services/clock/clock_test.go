package clocksvc

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ember/emberos/kernel"
	"ember/hal"
)

func boot(t *testing.T, main kernel.Entry) string {
	t.Helper()
	var console bytes.Buffer
	h := hal.NewHost(hal.HostConfig{Console: &console, Clock: hal.NewVirtualClock()})
	k := kernel.New(h, kernel.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	code, err := h.Run(ctx, func() { k.Start(main) })
	if err != nil || code != 0 {
		t.Fatalf("Run = %d, %v (console: %q)", code, err, console.String())
	}
	return console.String()
}

func reapAll(k *kernel.Kernel) {
	for {
		if _, _, err := k.Join(); errors.Is(err, kernel.ErrNoChildren) {
			return
		}
	}
}

func TestSleepWaitsAtLeastDuration(t *testing.T) {
	var t0, t1 int64
	boot(t, func(k *kernel.Kernel, _ string) int {
		svc, err := Start(k, 2)
		if err != nil {
			t.Errorf("Start: %v", err)
			return 1
		}
		t0 = k.ReadTime()
		if err := svc.Sleep(250 * time.Millisecond); err != nil {
			t.Errorf("Sleep: %v", err)
		}
		t1 = k.ReadTime()
		_ = svc.Stop()
		reapAll(k)
		return 0
	})
	if slept := t1 - t0; slept < 250_000 || slept > 400_000 {
		t.Fatalf("slept %dus, want 250000..400000", slept)
	}
}

func TestSleepersWakeInDueOrder(t *testing.T) {
	var order []string
	boot(t, func(k *kernel.Kernel, _ string) int {
		svc, err := Start(k, 2)
		if err != nil {
			t.Errorf("Start: %v", err)
			return 1
		}
		sleepy := func(d time.Duration) kernel.Entry {
			return func(k *kernel.Kernel, name string) int {
				_ = svc.Sleep(d)
				order = append(order, name)
				return 0
			}
		}
		stack := k.Config().MinStack
		_, _ = k.Fork("slow", sleepy(300*time.Millisecond), "slow", stack, 3)
		_, _ = k.Fork("fast", sleepy(100*time.Millisecond), "fast", stack, 3)
		_, _, _ = k.Join()
		_, _, _ = k.Join()
		_ = svc.Stop()
		reapAll(k)
		return 0
	})
	if got := strings.Join(order, ","); got != "fast,slow" {
		t.Fatalf("wake order = %s, want fast,slow", got)
	}
}

func TestSleepZeroReturnsImmediately(t *testing.T) {
	boot(t, func(k *kernel.Kernel, _ string) int {
		svc, err := Start(k, 2)
		if err != nil {
			t.Errorf("Start: %v", err)
			return 1
		}
		before := k.ReadTime()
		_ = svc.Sleep(0)
		if after := k.ReadTime(); after != before {
			t.Errorf("Sleep(0) advanced time by %dus", after-before)
		}
		_ = svc.Stop()
		reapAll(k)
		return 0
	})
}

func TestSleepAfterStopFails(t *testing.T) {
	boot(t, func(k *kernel.Kernel, _ string) int {
		svc, err := Start(k, 2)
		if err != nil {
			t.Errorf("Start: %v", err)
			return 1
		}
		_ = svc.Stop()
		if err := svc.Sleep(time.Millisecond); err == nil {
			t.Errorf("Sleep after Stop succeeded")
		}
		reapAll(k)
		return 0
	})
}
