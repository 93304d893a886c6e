package kernel

import (
	"errors"
	"strings"
	"testing"

	"ember/hal"
)

func TestMailboxRoundTrip(t *testing.T) {
	var (
		n   int
		buf = make([]byte, 16)
	)
	runKernel(t, Config{}, func(k *Kernel, _ *hal.Host) int {
		id, err := k.CreateMailbox(5, 50)
		if err != nil {
			t.Errorf("CreateMailbox: %v", err)
			return 1
		}
		if err := k.Send(id, []byte("hello")); err != nil {
			t.Errorf("Send: %v", err)
		}
		n, err = k.Receive(id, buf)
		if err != nil {
			t.Errorf("Receive: %v", err)
		}
		return 0
	})
	if n != 5 || string(buf[:n]) != "hello" {
		t.Fatalf("Receive = %d %q, want 5 %q", n, buf[:n], "hello")
	}
}

func TestMailboxCapacityBound(t *testing.T) {
	const capacity = 2
	var (
		maxSeen  int
		received []string
		blocked  bool
	)
	runKernel(t, Config{}, func(k *Kernel, _ *hal.Host) int {
		id, _ := k.CreateMailbox(capacity, 8)
		producer := func(k *Kernel, _ string) int {
			for _, m := range []string{"a", "b", "c", "d", "e"} {
				if err := k.Send(id, []byte(m)); err != nil {
					t.Errorf("Send %s: %v", m, err)
				}
				if n, _ := k.MessageCount(id); n > maxSeen {
					maxSeen = n
				}
			}
			return 0
		}
		pid, _ := k.Fork("producer", producer, "", testStack, 4)
		for _, pi := range k.Processes() {
			if pi.PID == pid {
				blocked = pi.State == StateBlocked && pi.Reason == ReasonSend
			}
		}
		buf := make([]byte, 8)
		for i := 0; i < 5; i++ {
			n, err := k.Receive(id, buf)
			if err != nil {
				t.Errorf("Receive: %v", err)
				return 1
			}
			received = append(received, string(buf[:n]))
		}
		_, _, _ = k.Join()
		return 0
	})
	if !blocked {
		t.Fatal("producer was not blocked on a full mailbox")
	}
	if maxSeen > capacity {
		t.Fatalf("saw %d buffered messages, capacity %d", maxSeen, capacity)
	}
	if got := strings.Join(received, ""); got != "abcde" {
		t.Fatalf("received %s, want abcde", got)
	}
}

func TestRendezvousHandsOffWithoutSlots(t *testing.T) {
	var (
		consumerState ProcState
		producerState ProcState
		fromMain      string
		fromProducer  string
		slotsUsed     []int
	)
	runKernel(t, Config{}, func(k *Kernel, _ *hal.Host) int {
		id, _ := k.CreateMailbox(0, 16)
		stateOf := func(pid PID) ProcState {
			for _, pi := range k.Processes() {
				if pi.PID == pid {
					return pi.State
				}
			}
			return StateEmpty
		}

		consumer := func(k *Kernel, _ string) int {
			buf := make([]byte, 16)
			n, err := k.Receive(id, buf)
			if err != nil {
				t.Errorf("consumer Receive: %v", err)
			}
			fromMain = string(buf[:n])
			slotsUsed = append(slotsUsed, k.SlotsInUse())
			return 0
		}
		cpid, _ := k.Fork("consumer", consumer, "", testStack, 4)
		consumerState = stateOf(cpid)
		if err := k.Send(id, []byte("ping")); err != nil {
			t.Errorf("Send: %v", err)
		}

		producer := func(k *Kernel, _ string) int {
			if err := k.Send(id, []byte("pong")); err != nil {
				t.Errorf("producer Send: %v", err)
			}
			return 0
		}
		ppid, _ := k.Fork("producer", producer, "", testStack, 4)
		producerState = stateOf(ppid)
		buf := make([]byte, 16)
		n, err := k.Receive(id, buf)
		if err != nil {
			t.Errorf("Receive: %v", err)
		}
		fromProducer = string(buf[:n])
		slotsUsed = append(slotsUsed, k.SlotsInUse())
		for {
			if _, _, err := k.Join(); err != nil {
				return 0
			}
		}
	})
	if consumerState != StateBlocked || producerState != StateBlocked {
		t.Fatalf("consumer %s, producer %s before the partner arrived, want blocked", consumerState, producerState)
	}
	if fromMain != "ping" || fromProducer != "pong" {
		t.Fatalf("received %q and %q", fromMain, fromProducer)
	}
	for _, n := range slotsUsed {
		if n != 0 {
			t.Fatalf("slots in use = %v, want all 0", slotsUsed)
		}
	}
}

func TestProducersServedInArrivalOrder(t *testing.T) {
	var got []string
	runKernel(t, Config{}, func(k *Kernel, _ *hal.Host) int {
		id, _ := k.CreateMailbox(1, 8)
		if err := k.CondSend(id, []byte("m0")); err != nil {
			t.Errorf("CondSend: %v", err)
		}
		send := func(k *Kernel, arg string) int {
			if err := k.Send(id, []byte(arg)); err != nil {
				t.Errorf("Send %s: %v", arg, err)
			}
			return 0
		}
		// P3 outranks P1 and P2 but arrives last.
		_, _ = k.Fork("P1", send, "P1", testStack, 4)
		_, _ = k.Fork("P2", send, "P2", testStack, 4)
		_, _ = k.Fork("P3", send, "P3", testStack, 3)

		buf := make([]byte, 8)
		for i := 0; i < 4; i++ {
			n, err := k.Receive(id, buf)
			if err != nil {
				t.Errorf("Receive: %v", err)
				return 1
			}
			got = append(got, string(buf[:n]))
		}
		for {
			if _, _, err := k.Join(); err != nil {
				return 0
			}
		}
	})
	if s := strings.Join(got, ","); s != "m0,P1,P2,P3" {
		t.Fatalf("received %s, want m0,P1,P2,P3", s)
	}
}

func TestReleaseWakesBlockedConsumers(t *testing.T) {
	var (
		errs    []error
		reused  MailboxID
		origID  MailboxID
		sendErr error
	)
	runKernel(t, Config{}, func(k *Kernel, _ *hal.Host) int {
		id, _ := k.CreateMailbox(1, 8)
		origID = id
		consumer := func(k *Kernel, _ string) int {
			_, err := k.Receive(id, make([]byte, 8))
			errs = append(errs, err)
			return 0
		}
		_, _ = k.Fork("c1", consumer, "", testStack, 4)
		_, _ = k.Fork("c2", consumer, "", testStack, 4)
		if err := k.ReleaseMailbox(id); err != nil {
			t.Errorf("ReleaseMailbox: %v", err)
		}
		sendErr = k.Send(id, []byte("x"))
		reused, _ = k.CreateMailbox(1, 8)
		for {
			if _, _, err := k.Join(); err != nil {
				return 0
			}
		}
	})
	if len(errs) != 2 {
		t.Fatalf("%d consumers returned, want 2", len(errs))
	}
	for _, err := range errs {
		if !errors.Is(err, ErrReleased) {
			t.Fatalf("Receive err = %v, want ErrReleased", err)
		}
	}
	if !errors.Is(sendErr, ErrInvalidHandle) {
		t.Fatalf("Send after release err = %v, want ErrInvalidHandle", sendErr)
	}
	if reused != origID {
		t.Fatalf("CreateMailbox after release = %d, want reused handle %d", reused, origID)
	}
}

func TestReleaseDrainsQueuesBeforeReturning(t *testing.T) {
	var (
		pending   int
		slots     int
		errSend   error
		waitState []ProcState
	)
	runKernel(t, Config{}, func(k *Kernel, _ *hal.Host) int {
		id, _ := k.CreateMailbox(1, 8)
		_ = k.CondSend(id, []byte("queued"))
		producer := func(k *Kernel, _ string) int {
			errSend = k.Send(id, []byte("late"))
			return 0
		}
		_, _ = k.Fork("producer", producer, "", testStack, 4)
		if err := k.ReleaseMailbox(id); err != nil {
			t.Errorf("ReleaseMailbox: %v", err)
		}
		mb := &k.mailboxes[id]
		pending = mb.producers.len() + mb.consumers.len() + mb.msgs.len()
		slots = k.SlotsInUse()
		for _, pi := range k.Processes() {
			if pi.Name == "producer" {
				waitState = append(waitState, pi.State)
			}
		}
		_, _, _ = k.Join()
		return 0
	})
	if pending != 0 || slots != 0 {
		t.Fatalf("after release: %d queued entries, %d slots in use", pending, slots)
	}
	if !errors.Is(errSend, ErrReleased) {
		t.Fatalf("blocked Send err = %v, want ErrReleased", errSend)
	}
	if len(waitState) != 1 || waitState[0] != StateDead {
		t.Fatalf("producer state after release = %v, want dead", waitState)
	}
}

func TestCondSendOnFullMailbox(t *testing.T) {
	var (
		err1, err2 error
		count      int
	)
	runKernel(t, Config{}, func(k *Kernel, _ *hal.Host) int {
		id, _ := k.CreateMailbox(1, 8)
		err1 = k.CondSend(id, []byte("a"))
		err2 = k.CondSend(id, []byte("b"))
		count, _ = k.MessageCount(id)
		return 0
	})
	if err1 != nil {
		t.Fatalf("first CondSend: %v", err1)
	}
	if !errors.Is(err2, ErrWouldBlock) {
		t.Fatalf("second CondSend err = %v, want ErrWouldBlock", err2)
	}
	if count != 1 {
		t.Fatalf("MessageCount = %d, want 1", count)
	}
}

func TestCondReceive(t *testing.T) {
	var (
		emptyErr error
		n        int
		got      string
		rzErr    error
		rzGot    string
	)
	runKernel(t, Config{}, func(k *Kernel, _ *hal.Host) int {
		id, _ := k.CreateMailbox(2, 8)
		buf := make([]byte, 8)
		_, emptyErr = k.CondReceive(id, buf)
		_ = k.CondSend(id, []byte("xyz"))
		n, _ = k.CondReceive(id, buf)
		got = string(buf[:n])

		rz, _ := k.CreateMailbox(0, 8)
		producer := func(k *Kernel, _ string) int {
			_ = k.Send(rz, []byte("rz"))
			return 0
		}
		_, _ = k.Fork("producer", producer, "", testStack, 4)
		m, err := k.CondReceive(rz, buf)
		rzErr, rzGot = err, string(buf[:m])
		_, _, _ = k.Join()
		return 0
	})
	if !errors.Is(emptyErr, ErrWouldBlock) {
		t.Fatalf("CondReceive on empty err = %v, want ErrWouldBlock", emptyErr)
	}
	if got != "xyz" {
		t.Fatalf("CondReceive = %q, want xyz", got)
	}
	if rzErr != nil || rzGot != "rz" {
		t.Fatalf("CondReceive on rendezvous = %q, %v", rzGot, rzErr)
	}
}

func TestMailboxArgumentErrors(t *testing.T) {
	type result struct {
		name string
		err  error
		want error
	}
	var got []result
	var leftover int
	runKernel(t, Config{MaxMailboxes: 9}, func(k *Kernel, _ *hal.Host) int {
		check := func(name string, err, want error) { got = append(got, result{name, err, want}) }

		_, err := k.CreateMailbox(-1, 8)
		check("negative slots", err, ErrInvalidArgument)
		_, err = k.CreateMailbox(1, 151)
		check("slot size", err, ErrInvalidArgument)

		id, _ := k.CreateMailbox(1, 4)
		check("bad handle", k.Send(MailboxID(-3), nil), ErrInvalidHandle)
		check("unused handle", k.Send(MailboxID(8), nil), ErrInvalidHandle)
		check("oversized send", k.Send(id, []byte("12345")), ErrMessageTooLarge)
		check("release unused", k.ReleaseMailbox(MailboxID(8)), ErrInvalidHandle)

		_ = k.Send(id, []byte("1234"))
		_, err = k.Receive(id, make([]byte, 2))
		check("small buffer", err, ErrMessageTooLarge)
		leftover, _ = k.MessageCount(id)

		_, _ = k.CreateMailbox(0, 0)
		_, err = k.CreateMailbox(0, 0)
		check("table full", err, ErrOutOfMailboxes)
		return 0
	})

	for _, r := range got {
		if !errors.Is(r.err, r.want) {
			t.Errorf("%s: err = %v, want %v", r.name, r.err, r.want)
		}
	}
	for _, r := range got[2:7] {
		if !errors.Is(r.err, ErrInvalidArgument) {
			t.Errorf("%s: err = %v does not match ErrInvalidArgument", r.name, r.err)
		}
	}
	if leftover != 0 {
		t.Fatalf("oversized message left %d buffered, want consumed", leftover)
	}
}

func TestSlotPoolExhaustion(t *testing.T) {
	var condErr error
	code, console := runKernel(t, Config{MaxSlots: 1}, func(k *Kernel, _ *hal.Host) int {
		a, _ := k.CreateMailbox(1, 8)
		b, _ := k.CreateMailbox(1, 8)
		_ = k.CondSend(a, []byte("a"))
		condErr = k.CondSend(b, []byte("b"))
		_ = k.Send(b, []byte("b"))
		return 0
	})
	if !errors.Is(condErr, ErrSlotsExhausted) || !errors.Is(condErr, ErrWouldBlock) {
		t.Fatalf("CondSend err = %v, want ErrSlotsExhausted", condErr)
	}
	if code != 1 || !strings.Contains(console, "mail slots are in use") {
		t.Fatalf("code = %d console = %q", code, console)
	}
}
