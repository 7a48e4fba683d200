package mirrorqueue

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/allegro/mirrorqueue/mirror"
)

// zeroSizedCapacity is the sentinel capacity used for a Deque of a
// zero-sized element type, which never allocates (§3, §9).
const zeroSizedCapacity = math.MaxInt / 2

// Deque is a double-ended queue over a growable mirrored virtual ring
// buffer (§2's Deque Core, plus the Public Deque API of §4.3). The live
// elements occupy slots [head, head+length) of a buffer whose two windows
// both alias the same physical memory, so Slice always returns one
// contiguous range regardless of wrap-around.
//
// A Deque is not internally synchronized.
type Deque[T any] struct {
	buf   *mirror.Buffer
	cache *mirror.Cache
	stats *stats

	head   int // h: offset into the first window, 0 <= head < cap when cap > 0
	length int // ℓ
	cap    int // C

	cfg        Config
	destructor func(T)

	zeroSized bool
	elemSize  int
	elemAlign int
}

// Option configures a Deque at construction time.
type Option[T any] func(*options[T])

type options[T any] struct {
	cfg        Config
	destructor func(T)
}

// WithConfig overrides the Deque's Config (verbose logging, mapping
// strategy, mapping cache size).
func WithConfig[T any](cfg Config) Option[T] {
	return func(o *options[T]) { o.cfg = cfg }
}

// WithDestructor registers fn to run exactly once for every element the
// Deque itself disposes of: via Truncate/Clear, Drain's leftover cleanup,
// or Close. Elements returned to the caller by PopBack/PopFront/Remove/
// SwapRemoveBack/SwapRemoveFront are moved out, not destructed — disposing
// of them is the caller's responsibility, exactly as with a pop from any
// move-only collection.
func WithDestructor[T any](fn func(T)) Option[T] {
	return func(o *options[T]) { o.destructor = fn }
}

// New returns an empty Deque with no mapping performed yet.
func New[T any](opts ...Option[T]) (*Deque[T], error) {
	return newDeque[T](0, opts...)
}

// WithCapacity returns a Deque whose capacity is at least n elements,
// rounded up to the host's mapping granularity.
func WithCapacity[T any](n int, opts ...Option[T]) (*Deque[T], error) {
	if n < 0 {
		panic("mirrorqueue: WithCapacity: negative capacity")
	}
	return newDeque[T](n, opts...)
}

// FromSlice builds a Deque containing a copy of items, in order.
func FromSlice[T any](items []T, opts ...Option[T]) (*Deque[T], error) {
	d, err := newDeque[T](len(items), opts...)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := d.ExtendFromSlice(items); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func newDeque[T any](initialCapacity int, opts ...Option[T]) (*Deque[T], error) {
	var o options[T]
	o.cfg = DefaultConfig()
	for _, opt := range opts {
		opt(&o)
	}
	if initialCapacity <= 0 {
		initialCapacity = o.cfg.InitialCapacity
	}

	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	elemAlign := int(unsafe.Alignof(zero))

	d := &Deque[T]{
		cfg:        o.cfg,
		destructor: o.destructor,
		elemSize:   elemSize,
		elemAlign:  elemAlign,
		zeroSized:  elemSize == 0,
		stats:      newStats(),
	}
	if o.cfg.MappingCacheSize > 0 {
		d.cache = mirror.NewCache(o.cfg.MappingCacheSize)
	}

	if d.zeroSized {
		d.cap = zeroSizedCapacity
		return d, nil
	}

	if elemAlign > mirror.Granularity() {
		return nil, fmt.Errorf("mirrorqueue: element alignment %d exceeds host granularity %d: %w", elemAlign, mirror.Granularity(), ErrUnsupported)
	}

	if initialCapacity > 0 {
		if err := d.grow(initialCapacity); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func normalize(h, cap int) int {
	if cap <= 0 {
		return 0
	}
	if h >= cap {
		h -= cap
	}
	if h < 0 {
		h += cap
	}
	return h
}

func roundUpToGranularity(n, g int) int {
	if g <= 0 || n%g == 0 {
		return n
	}
	return (n/g + 1) * g
}

// mappingOptions translates Config into the mirror package's allocation options.
func (d *Deque[T]) mappingOptions() mirror.Options {
	if d.cfg.ShmStrategy {
		return mirror.Options{Strategy: mirror.StrategySysVShm}
	}
	return mirror.Options{}
}

// grow replaces the backing Mirrored Buffer with one of at least minElems
// capacity, moving every live element across and leaving the Deque
// untouched if allocation fails (strong exception safety per §7).
func (d *Deque[T]) grow(minElems int) error {
	if d.zeroSized {
		return nil
	}

	newCap := d.cap * 2
	if newCap < minElems {
		newCap = minElems
	}
	if newCap < 1 {
		newCap = 1
	}
	minBytes := newCap * d.elemSize

	var newBuf *mirror.Buffer
	if d.cache != nil {
		newBuf = d.cache.Take(minBytes)
	}
	if newBuf == nil {
		var err error
		newBuf, err = mirror.Allocate(minBytes, d.mappingOptions())
		if err != nil {
			return err
		}
		d.stats.recordPlacementRetries(int64(newBuf.PlacementRetries()))
	}

	newActualCap := newBuf.Size() / d.elemSize

	if d.length > 0 {
		src := d.elemSlice(d.head, d.length)
		dst := unsafe.Slice((*T)(unsafe.Pointer(newBuf.Base())), d.length)
		copy(dst, src)
	}

	old := d.buf
	d.buf = newBuf
	d.head = 0
	d.cap = newActualCap
	d.stats.recordGrowth(int64(newBuf.Size()))

	if logger := d.cfg.logger(); logger != nil {
		logger.Printf("mirrorqueue: grew mirrored buffer to %d bytes (%d elements), strategy=%v", newBuf.Size(), newActualCap, newBuf.Strategy())
	}

	if old != nil {
		if d.cache != nil {
			d.cache.Put(old)
		} else {
			old.Deallocate()
		}
	}
	return nil
}

// elemPtr returns a pointer to the element at raw physical slot phys,
// which may be anywhere in [0, 2*cap) for a non-zero-sized Deque; the
// mirrored mapping makes every such offset a valid address.
func (d *Deque[T]) elemPtr(phys int) unsafe.Pointer {
	if d.zeroSized {
		return zeroBasePointer()
	}
	return unsafe.Pointer(d.buf.Base() + uintptr(phys)*uintptr(d.elemSize))
}

func (d *Deque[T]) elemSlice(phys, n int) []T {
	if n == 0 {
		return nil
	}
	if d.zeroSized {
		return unsafe.Slice((*T)(zeroBasePointer()), n)
	}
	return unsafe.Slice((*T)(d.elemPtr(phys)), n)
}

func (d *Deque[T]) at(phys int) T {
	return *(*T)(d.elemPtr(phys))
}

func (d *Deque[T]) set(phys int, v T) {
	*(*T)(d.elemPtr(phys)) = v
}

func (d *Deque[T]) zeroOut(phys int) {
	if d.zeroSized {
		return
	}
	var zero T
	d.set(phys, zero)
}

// Len returns ℓ, the number of live elements.
func (d *Deque[T]) Len() int { return d.length }

// Capacity returns C, the number of element slots in one mirrored window.
func (d *Deque[T]) Capacity() int { return d.cap }

// IsEmpty reports whether Len() == 0.
func (d *Deque[T]) IsEmpty() bool { return d.length == 0 }

// IsFull reports whether Len() == Capacity(): the next PushBack/PushFront
// will trigger a growth.
func (d *Deque[T]) IsFull() bool { return d.length == d.cap }

// Stats reports this Deque's mirrored-buffer allocation activity.
func (d *Deque[T]) Stats() Stats { return d.stats.snapshot() }

// Slice returns the contiguous, properly aligned range of Len() elements
// starting at the Deque's head. The returned slice aliases the Deque's
// storage directly (no copy) and serves both the read-only and mutable
// contiguous-view roles from §4.2 — Go has no separate const-slice type,
// so mutating through the returned slice is the supported way to mutate
// in place. It is invalidated by any operation that grows the Deque.
func (d *Deque[T]) Slice() []T {
	return d.elemSlice(d.head, d.length)
}

// Front returns the first element and true, or the zero value and false if
// the Deque is empty.
func (d *Deque[T]) Front() (T, bool) {
	var zero T
	if d.length == 0 {
		return zero, false
	}
	return d.at(d.head), true
}

// FrontMut returns a pointer into the Deque's live storage for the first
// element, or nil if the Deque is empty.
func (d *Deque[T]) FrontMut() (*T, bool) {
	if d.length == 0 {
		return nil, false
	}
	s := d.elemSlice(d.head, 1)
	return &s[0], true
}

// Back returns the last element and true, or the zero value and false if
// the Deque is empty.
func (d *Deque[T]) Back() (T, bool) {
	var zero T
	if d.length == 0 {
		return zero, false
	}
	return d.at(d.head + d.length - 1), true
}

// BackMut returns a pointer into the Deque's live storage for the last
// element, or nil if the Deque is empty.
func (d *Deque[T]) BackMut() (*T, bool) {
	if d.length == 0 {
		return nil, false
	}
	s := d.elemSlice(d.head+d.length-1, 1)
	return &s[0], true
}

// PushBack appends v to the back of the Deque, growing the backing buffer
// if it is full.
func (d *Deque[T]) PushBack(v T) error {
	if !d.zeroSized && d.length == d.cap {
		if err := d.grow(d.length + 1); err != nil {
			return err
		}
	}
	d.set(d.head+d.length, v)
	d.length++
	return nil
}

// PushFront prepends v to the front of the Deque, growing the backing
// buffer if it is full.
func (d *Deque[T]) PushFront(v T) error {
	if !d.zeroSized && d.length == d.cap {
		if err := d.grow(d.length + 1); err != nil {
			return err
		}
	}
	d.head = normalize(d.head-1, d.cap)
	d.set(d.head, v)
	d.length++
	return nil
}

// PopBack removes and returns the last element, or the zero value and
// false if the Deque is empty.
func (d *Deque[T]) PopBack() (T, bool) {
	var zero T
	if d.length == 0 {
		return zero, false
	}
	d.length--
	idx := d.head + d.length
	v := d.at(idx)
	d.zeroOut(idx)
	return v, true
}

// PopFront removes and returns the first element, or the zero value and
// false if the Deque is empty.
func (d *Deque[T]) PopFront() (T, bool) {
	var zero T
	if d.length == 0 {
		return zero, false
	}
	v := d.at(d.head)
	d.zeroOut(d.head)
	d.head = normalize(d.head+1, d.cap)
	d.length--
	return v, true
}

// Truncate drops elements beyond index k, running the Deque's destructor
// (if any) on each one, in order, before shrinking Len() to k. A panic
// from the destructor is deferred until every element has been accounted
// for. Calling Truncate with k >= Len() is a no-op.
func (d *Deque[T]) Truncate(k int) {
	if k < 0 {
		panic("mirrorqueue: Truncate: negative length")
	}
	if k >= d.length {
		return
	}
	start := d.head + k
	end := d.head + d.length
	var panicVal interface{}
	for idx := start; idx < end; idx++ {
		if d.destructor != nil {
			d.callDestructorCapturing(d.at(idx), &panicVal)
		}
		d.zeroOut(idx)
	}
	d.length = k
	if panicVal != nil {
		panic(panicVal)
	}
}

// Clear removes every element, equivalent to Truncate(0).
func (d *Deque[T]) Clear() {
	d.Truncate(0)
}

// Insert places v at logical index i, shifting whichever side (before or
// after i) holds fewer elements by one slot.
func (d *Deque[T]) Insert(i int, v T) error {
	if i < 0 || i > d.length {
		panic("mirrorqueue: Insert: index out of range")
	}
	if !d.zeroSized && d.length == d.cap {
		if err := d.grow(d.length + 1); err != nil {
			return err
		}
	}

	frontLen := i
	backLen := d.length - i
	if frontLen <= backLen {
		oldHead := d.head
		newHead := normalize(oldHead-1, d.cap)
		if frontLen > 0 {
			dst := d.elemSlice(newHead, frontLen)
			src := d.elemSlice(oldHead, frontLen)
			copy(dst, src)
		}
		d.head = newHead
		d.set(d.head+frontLen, v)
	} else {
		if backLen > 0 {
			dst := d.elemSlice(d.head+i+1, backLen)
			src := d.elemSlice(d.head+i, backLen)
			copy(dst, src)
		}
		d.set(d.head+i, v)
	}
	d.length++
	return nil
}

// Remove moves the element at logical index i out of the Deque, shifting
// whichever side holds fewer elements by one slot, and returns it. The
// second return is false when i is out of range.
func (d *Deque[T]) Remove(i int) (T, bool) {
	var zero T
	if i < 0 || i >= d.length {
		return zero, false
	}
	v := d.at(d.head + i)

	frontLen := i
	backLen := d.length - 1 - i
	if frontLen <= backLen {
		oldHead := d.head
		if frontLen > 0 {
			dst := d.elemSlice(oldHead+1, frontLen)
			src := d.elemSlice(oldHead, frontLen)
			copy(dst, src)
		}
		d.zeroOut(oldHead)
		d.head = normalize(oldHead+1, d.cap)
	} else {
		if backLen > 0 {
			dst := d.elemSlice(d.head+i, backLen)
			src := d.elemSlice(d.head+i+1, backLen)
			copy(dst, src)
		}
		d.zeroOut(d.head + d.length - 1)
	}
	d.length--
	return v, true
}

// SwapRemoveBack removes the element at logical index i by overwriting it
// with the last element, which is O(1) but does not preserve order.
func (d *Deque[T]) SwapRemoveBack(i int) (T, bool) {
	var zero T
	if i < 0 || i >= d.length {
		return zero, false
	}
	removed := d.at(d.head + i)
	lastIdx := d.head + d.length - 1
	if d.head+i != lastIdx {
		d.set(d.head+i, d.at(lastIdx))
	}
	d.zeroOut(lastIdx)
	d.length--
	return removed, true
}

// SwapRemoveFront removes the element at logical index i by overwriting it
// with the first element, which is O(1) but does not preserve order.
func (d *Deque[T]) SwapRemoveFront(i int) (T, bool) {
	var zero T
	if i < 0 || i >= d.length {
		return zero, false
	}
	removed := d.at(d.head + i)
	if i != 0 {
		d.set(d.head+i, d.at(d.head))
	}
	d.zeroOut(d.head)
	d.head = normalize(d.head+1, d.cap)
	d.length--
	return removed, true
}

// Reserve ensures Capacity()-Len() >= extra, growing the backing buffer if needed.
func (d *Deque[T]) Reserve(extra int) error {
	if extra < 0 {
		panic("mirrorqueue: Reserve: negative extra")
	}
	if d.zeroSized {
		return nil
	}
	need := d.length + extra
	if need <= d.cap {
		return nil
	}
	return d.grow(need)
}

// ShrinkToFit may reallocate to the smallest legal capacity >= Len().
// Allocation failures are ignored, per §4.2: the Deque is left as it was.
// Calling it twice in a row is observationally equal to calling it once.
func (d *Deque[T]) ShrinkToFit() error {
	if d.zeroSized {
		return nil
	}
	if d.length == 0 {
		if d.buf != nil {
			old := d.buf
			d.buf = nil
			d.head, d.cap = 0, 0
			if d.cache != nil {
				d.cache.Put(old)
			} else {
				old.Deallocate()
			}
		}
		return nil
	}

	minBytes := d.length * d.elemSize
	targetBytes := roundUpToGranularity(minBytes, mirror.Granularity())
	targetCap := targetBytes / d.elemSize
	if targetCap >= d.cap {
		return nil
	}

	newBuf, err := mirror.Allocate(minBytes, d.mappingOptions())
	if err != nil {
		return nil
	}
	d.stats.recordPlacementRetries(int64(newBuf.PlacementRetries()))
	newActualCap := newBuf.Size() / d.elemSize

	dst := unsafe.Slice((*T)(unsafe.Pointer(newBuf.Base())), d.length)
	src := d.elemSlice(d.head, d.length)
	copy(dst, src)

	old := d.buf
	d.buf = newBuf
	d.head = 0
	d.cap = newActualCap

	if logger := d.cfg.logger(); logger != nil {
		logger.Printf("mirrorqueue: shrank mirrored buffer to %d bytes (%d elements), strategy=%v", newBuf.Size(), newActualCap, newBuf.Strategy())
	}

	if d.cache != nil {
		d.cache.Put(old)
	} else {
		old.Deallocate()
	}
	return nil
}

// Append moves every element of other onto the back of d; other is left
// empty. No destructors run: the elements are moved, not destroyed.
func (d *Deque[T]) Append(other *Deque[T]) error {
	if other == nil || other.length == 0 {
		if other != nil {
			other.length = 0
		}
		return nil
	}
	need := d.length + other.length
	if !d.zeroSized && need > d.cap {
		if err := d.grow(need); err != nil {
			return err
		}
	}
	src := other.elemSlice(other.head, other.length)
	dst := d.elemSlice(d.head+d.length, other.length)
	copy(dst, src)
	d.length += other.length
	other.length = 0
	other.head = 0
	return nil
}

// ExtendFromSlice bulk-copies items onto the back of the Deque via the
// contiguous view, growing the backing buffer if needed.
func (d *Deque[T]) ExtendFromSlice(items []T) error {
	if len(items) == 0 {
		return nil
	}
	need := d.length + len(items)
	if !d.zeroSized && need > d.cap {
		if err := d.grow(need); err != nil {
			return err
		}
	}
	dst := d.elemSlice(d.head+d.length, len(items))
	copy(dst, items)
	d.length += len(items)
	return nil
}

// SplitOff splits the Deque at logical index at: d keeps [0,at) and the
// returned Deque holds a moved copy of [at,Len()). d's own capacity is
// unchanged. No destructor runs on the split elements; they now belong to
// the returned Deque.
func (d *Deque[T]) SplitOff(at int) (*Deque[T], error) {
	if at < 0 || at > d.length {
		panic("mirrorqueue: SplitOff: index out of range")
	}
	otherLen := d.length - at
	other, err := newDeque[T](otherLen, WithConfig[T](d.cfg))
	if err != nil {
		return nil, err
	}
	other.destructor = d.destructor

	if otherLen > 0 {
		if err := other.ExtendFromSlice(d.elemSlice(d.head+at, otherLen)); err != nil {
			other.Close()
			return nil, err
		}
		for idx := d.head + at; idx < d.head+d.length; idx++ {
			d.zeroOut(idx)
		}
	}
	d.length = at
	return other, nil
}

// Retain keeps only the elements for which keep returns true, preserving
// order, and destructs (if a destructor is set) every element dropped. A
// destructor panic is deferred until every dropped element has been
// accounted for, the same way Truncate handles it.
func (d *Deque[T]) Retain(keep func(T) bool) {
	var panicVal interface{}
	write := 0
	for read := 0; read < d.length; read++ {
		v := d.at(d.head + read)
		if keep(v) {
			if write != read {
				d.set(d.head+write, v)
			}
			write++
		} else if d.destructor != nil {
			d.callDestructorCapturing(v, &panicVal)
		}
	}
	for idx := d.head + write; idx < d.head+d.length; idx++ {
		d.zeroOut(idx)
	}
	d.length = write
	if panicVal != nil {
		panic(panicVal)
	}
}

// Resize grows or truncates the Deque so that Len() == newLen: excess
// elements are dropped from the back via Truncate, and missing elements are
// appended as clones of value via PushBack.
func (d *Deque[T]) Resize(newLen int, value T) error {
	if newLen < 0 {
		panic("mirrorqueue: Resize: negative length")
	}
	if newLen > d.length {
		if err := d.Reserve(newLen - d.length); err != nil {
			return err
		}
		for d.length < newLen {
			if err := d.PushBack(value); err != nil {
				return err
			}
		}
		return nil
	}
	d.Truncate(newLen)
	return nil
}

// callDestructorCapturing runs the Deque's destructor on v, recovering a
// panic into *panicVal (keeping the first one seen) instead of letting it
// unwind immediately, so callers can finish accounting for every element
// before propagating it.
func (d *Deque[T]) callDestructorCapturing(v T, panicVal *interface{}) {
	defer func() {
		if r := recover(); r != nil && *panicVal == nil {
			*panicVal = r
		}
	}()
	d.destructor(v)
}

func (d *Deque[T]) destructAllCapturing() interface{} {
	if d.destructor == nil || d.length == 0 {
		return nil
	}
	var panicVal interface{}
	for k := 0; k < d.length; k++ {
		d.callDestructorCapturing(d.at(d.head+k), &panicVal)
	}
	return panicVal
}

func (d *Deque[T]) releaseBuffer() error {
	if d.buf == nil {
		return nil
	}
	old := d.buf
	d.buf = nil
	d.head, d.cap = 0, 0
	if d.cache != nil {
		return d.cache.Put(old)
	}
	return old.Deallocate()
}

// Close runs the destructor (if any) on every remaining element from head
// to head+length-1, in order, and releases the Mirrored Buffer. It is safe
// to call on an already-closed Deque. A destructor panic is re-raised only
// after every element has been accounted for and the buffer released.
func (d *Deque[T]) Close() error {
	panicVal := d.destructAllCapturing()
	err := d.releaseBuffer()
	if cerr := d.cache.Close(); err == nil {
		err = cerr
	}
	d.length = 0
	if panicVal != nil {
		panic(panicVal)
	}
	return err
}

// collapseRange removes the half-open logical range [start,end) from the
// Deque, shifting whichever side holds fewer elements, the way Remove
// does for a single index. Used by Drain.Close to fold its consumed
// range back out of the Deque. Elements in the range must already be
// accounted for (destructed or handed to a caller) by the time this runs.
func (d *Deque[T]) collapseRange(start, end int) {
	removedLen := end - start
	if removedLen <= 0 {
		return
	}
	frontLen := start
	backLen := d.length - end
	oldHead := d.head

	if frontLen <= backLen {
		if frontLen > 0 {
			dst := d.elemSlice(oldHead+removedLen, frontLen)
			src := d.elemSlice(oldHead, frontLen)
			copy(dst, src)
		}
		for idx := oldHead; idx < oldHead+removedLen; idx++ {
			d.zeroOut(idx)
		}
		d.head = normalize(oldHead+removedLen, d.cap)
	} else {
		if backLen > 0 {
			dst := d.elemSlice(oldHead+start, backLen)
			src := d.elemSlice(oldHead+end, backLen)
			copy(dst, src)
		}
		for idx := oldHead + d.length - removedLen; idx < oldHead+d.length; idx++ {
			d.zeroOut(idx)
		}
	}
	d.length -= removedLen
}
