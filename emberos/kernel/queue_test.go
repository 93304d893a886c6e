package kernel

import "testing"

func TestRingFIFO(t *testing.T) {
	q := newRing[int](3)
	for i := 1; i <= 3; i++ {
		if !q.push(i) {
			t.Fatalf("push(%d) = false, want true", i)
		}
	}
	if q.push(4) {
		t.Fatal("push on full ring = true, want false")
	}
	for want := 1; want <= 3; want++ {
		got, ok := q.pop()
		if !ok || got != want {
			t.Fatalf("pop() = %d, %v, want %d, true", got, ok, want)
		}
	}
	if _, ok := q.pop(); ok {
		t.Fatal("pop on empty ring ok = true")
	}
}

func TestRingRemoveKeepsOrder(t *testing.T) {
	q := newRing[int](4)
	// Wrap the indices first.
	q.push(9)
	q.push(9)
	q.pop()
	q.pop()
	for _, v := range []int{1, 2, 3, 4} {
		q.push(v)
	}
	if !q.remove(2) {
		t.Fatal("remove(2) = false")
	}
	if q.remove(7) {
		t.Fatal("remove(7) = true for missing value")
	}
	var got []int
	q.each(func(v int) { got = append(got, v) })
	if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 4 {
		t.Fatalf("each() = %v, want [1 3 4]", got)
	}
	if head, _ := q.peek(); head != 1 {
		t.Fatalf("peek() = %d, want 1", head)
	}
	q.reset()
	if q.len() != 0 {
		t.Fatalf("len() after reset = %d", q.len())
	}
}

func TestRingZeroCapacity(t *testing.T) {
	q := newRing[int](0)
	if q.push(1) {
		t.Fatal("push on zero-capacity ring = true")
	}
	if _, ok := q.peek(); ok {
		t.Fatal("peek on zero-capacity ring ok = true")
	}
}

func TestSlotPoolReusesFreedSlot(t *testing.T) {
	sp := newSlotPool(3)
	a, _ := sp.alloc([]byte("a"))
	b, _ := sp.alloc([]byte("b"))
	c, _ := sp.alloc([]byte("c"))
	if _, ok := sp.alloc([]byte("d")); ok {
		t.Fatal("alloc on full pool ok = true")
	}
	sp.free(b)
	got, ok := sp.alloc([]byte("e"))
	if !ok || got != b {
		t.Fatalf("alloc after free = %d, %v, want %d, true", got, ok, b)
	}
	if string(sp.bytes(got)) != "e" {
		t.Fatalf("slot holds %q, want %q", sp.bytes(got), "e")
	}
	if sp.inUse != 3 || a == c {
		t.Fatalf("inUse = %d, a=%d c=%d", sp.inUse, a, c)
	}
}

func TestRingWrapsAroundBackingArray(t *testing.T) {
	q := newRing[int](3)
	next, want := 1, 1
	// Many more pushes than cells, with the ring never fully drained.
	for round := 0; round < 1000; round++ {
		for q.len() < q.cap() {
			q.push(next)
			next++
		}
		if round%7 == 0 {
			if !q.remove(want + 1) {
				t.Fatalf("round %d: remove(%d) = false", round, want+1)
			}
			var got []int
			q.each(func(v int) { got = append(got, v) })
			if len(got) != 2 || got[0] != want || got[1] != want+2 {
				t.Fatalf("round %d: after remove each = %v", round, got)
			}
			q.pop()
			want += 2
			continue
		}
		got, ok := q.pop()
		if !ok || got != want {
			t.Fatalf("round %d: pop() = %d, %v, want %d", round, got, ok, want)
		}
		want++
	}
}
