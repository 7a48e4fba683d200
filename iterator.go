package mirrorqueue

import "fmt"

// Iterator is a cursor over a Deque's contiguous view. Because Slice is
// always a flat range regardless of wrap-around, Iter/IterMut/IntoIter
// need no wrap-handling logic at all — Iter and IterMut are thin cursors
// over that slice, and IntoIter pops from the front of the Deque (§4.2).
type Iterator[T any] struct {
	s   []T
	pos int
}

// Iter returns an Iterator over the Deque's current contents, front to back.
func (d *Deque[T]) Iter() *Iterator[T] {
	return &Iterator[T]{s: d.Slice()}
}

// Next returns the next element and true, or the zero value and false when
// the iterator is exhausted.
func (it *Iterator[T]) Next() (T, bool) {
	var zero T
	if it.pos >= len(it.s) {
		return zero, false
	}
	v := it.s[it.pos]
	it.pos++
	return v, true
}

// Remaining reports how many elements Next can still return.
func (it *Iterator[T]) Remaining() int {
	return len(it.s) - it.pos
}

// MutIterator is a cursor whose Next results alias the Deque's storage,
// so mutating the returned pointer's target mutates the Deque in place.
type MutIterator[T any] struct {
	s   []T
	pos int
}

// IterMut returns a MutIterator over the Deque's current contents.
func (d *Deque[T]) IterMut() *MutIterator[T] {
	return &MutIterator[T]{s: d.Slice()}
}

// Next returns a pointer into the Deque's live storage and true, or nil and
// false when the iterator is exhausted.
func (it *MutIterator[T]) Next() (*T, bool) {
	if it.pos >= len(it.s) {
		return nil, false
	}
	p := &it.s[it.pos]
	it.pos++
	return p, true
}

// IntoIter drains the Deque element by element as the iterator advances:
// every element returned by Next is simultaneously removed from the front
// of the Deque.
type IntoIterator[T any] struct {
	d *Deque[T]
}

// IntoIter returns an iterator that consumes the Deque's elements from the
// front as it advances.
func (d *Deque[T]) IntoIter() *IntoIterator[T] {
	return &IntoIterator[T]{d: d}
}

// Next pops and returns the front element, or the zero value and false
// once the Deque is empty.
func (it *IntoIterator[T]) Next() (T, bool) {
	return it.d.PopFront()
}

// Drain is returned by Deque.Drain. It yields the elements in [start,end)
// via Next; any elements left unconsumed when Close is called are
// destructed (if the Deque has a destructor) before the drained range is
// folded out of the Deque.
type Drain[T any] struct {
	d          *Deque[T]
	start, end int
	cur        int
	closed     bool
}

// Drain returns an iterator over the half-open logical range [start,end).
// The range must satisfy 0 <= start <= end <= Len(). Callers must call
// Close (directly, or drain it with Next to exhaustion and then Close) to
// fold the drained range back out of the Deque; until Close runs, the
// Deque must not be mutated through any other operation.
func (d *Deque[T]) Drain(start, end int) (*Drain[T], error) {
	if start < 0 || end > d.length || start > end {
		return nil, fmt.Errorf("mirrorqueue: Drain: invalid range [%d,%d) for length %d", start, end, d.length)
	}
	return &Drain[T]{d: d, start: start, end: end, cur: start}, nil
}

// Next returns the next drained element and true, or the zero value and
// false once [start,end) is exhausted. Elements returned here are moved
// out to the caller, the same as PopFront — Close will not destruct them.
func (dr *Drain[T]) Next() (T, bool) {
	var zero T
	if dr.closed || dr.cur >= dr.end {
		return zero, false
	}
	v := dr.d.at(dr.d.head + dr.cur)
	dr.cur++
	return v, true
}

// Close destructs any elements in [cur,end) not yet consumed via Next,
// then collapses the drained range out of the Deque, shifting whichever
// side holds fewer elements. Safe to call more than once.
func (dr *Drain[T]) Close() error {
	if dr.closed {
		return nil
	}
	dr.closed = true
	d := dr.d

	var panicVal interface{}
	if d.destructor != nil {
		for idx := dr.cur; idx < dr.end; idx++ {
			d.callDestructorCapturing(d.at(d.head+idx), &panicVal)
		}
	}

	d.collapseRange(dr.start, dr.end)
	if panicVal != nil {
		panic(panicVal)
	}
	return nil
}
