package kernel

// ring is a fixed-capacity FIFO. head is the index of the oldest element and
// n the number of elements; both stay within the backing array.
type ring[T comparable] struct {
	head  int
	n     int
	items []T
}

func newRing[T comparable](capacity int) ring[T] {
	return ring[T]{items: make([]T, capacity)}
}

func (q *ring[T]) len() int { return q.n }
func (q *ring[T]) cap() int { return len(q.items) }

// at maps the i-th oldest element to its index in items.
func (q *ring[T]) at(i int) int { return (q.head + i) % len(q.items) }

func (q *ring[T]) push(v T) bool {
	if q.n >= q.cap() {
		return false
	}
	q.items[q.at(q.n)] = v
	q.n++
	return true
}

func (q *ring[T]) pop() (T, bool) {
	var zero T
	if q.n == 0 {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.n--
	return v, true
}

func (q *ring[T]) peek() (T, bool) {
	if q.n == 0 {
		var zero T
		return zero, false
	}
	return q.items[q.head], true
}

// remove deletes the first occurrence of v, keeping the order of the rest.
func (q *ring[T]) remove(v T) bool {
	for i := 0; i < q.n; i++ {
		if q.items[q.at(i)] != v {
			continue
		}
		for j := i; j+1 < q.n; j++ {
			q.items[q.at(j)] = q.items[q.at(j+1)]
		}
		var zero T
		q.items[q.at(q.n-1)] = zero
		q.n--
		return true
	}
	return false
}

// each calls fn for every element from oldest to newest.
func (q *ring[T]) each(fn func(T)) {
	for i := 0; i < q.n; i++ {
		fn(q.items[q.at(i)])
	}
}

func (q *ring[T]) reset() {
	clear(q.items)
	q.head, q.n = 0, 0
}
