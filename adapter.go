package mirrorqueue

// adapter.go is the thin Public Deque API layer of §4.3: equality,
// ordering, hashing, cloning, construction from an iterable (FromSlice, in
// deque.go) and conversion to/from a plain growable array. Everything here
// delegates to Slice and carries no independent state of its own.

// Equal reports whether d and other have the same length and eq returns
// true for every corresponding pair of elements, in order.
func (d *Deque[T]) Equal(other *Deque[T], eq func(a, b T) bool) bool {
	if d.length != other.length {
		return false
	}
	a, b := d.Slice(), other.Slice()
	for i := range a {
		if !eq(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Compare performs a lexicographic comparison of d and other using cmp,
// returning a negative number, zero, or a positive number the way
// cmp.Compare/sort.Compare do.
func (d *Deque[T]) Compare(other *Deque[T], cmp func(a, b T) int) int {
	a, b := d.Slice(), other.Slice()
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := cmp(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Hash returns the xxhash digest of the Deque's raw contiguous bytes. It is
// only meaningful for element types with no pointers and no padding that
// varies between equal values; for anything else, hash the elements
// individually instead.
func (d *Deque[T]) Hash() uint64 {
	return hashBytes(byteViewOf(d.Slice()))
}

// Clone returns a new Deque with a copy of every element, produced by
// calling copyFn on each one in order. Pass a copyFn that performs a deep
// copy for element types that need one; for plain value types, a function
// that returns its argument unchanged is sufficient.
func (d *Deque[T]) Clone(copyFn func(T) T) (*Deque[T], error) {
	clone, err := newDeque[T](d.length, WithConfig[T](d.cfg))
	if err != nil {
		return nil, err
	}
	clone.destructor = d.destructor
	for _, v := range d.Slice() {
		if err := clone.PushBack(copyFn(v)); err != nil {
			clone.Close()
			return nil, err
		}
	}
	return clone, nil
}

// ToSlice returns an owned copy of the Deque's contents; the Deque is left
// unchanged.
func (d *Deque[T]) ToSlice() []T {
	out := make([]T, d.length)
	copy(out, d.Slice())
	return out
}

// IntoSlice moves the Deque's contents out into an owned, plain []T and
// leaves the Deque empty, without running any destructor — the elements
// now belong to the returned slice.
func (d *Deque[T]) IntoSlice() []T {
	out := make([]T, d.length)
	copy(out, d.Slice())
	for i := d.head; i < d.head+d.length; i++ {
		d.zeroOut(i)
	}
	d.length = 0
	d.head = 0
	return out
}
