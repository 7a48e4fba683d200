package mirrorqueue

import "unsafe"

// zeroSizedBase is a stable, non-nil address used as the base pointer for
// every Deque of a zero-sized element type. Such a Deque never performs a
// mirrored mapping (see §3 "Zero-sized T" and §9's design note); head and
// length are tracked as plain counters, and this address only ever backs
// unsafe.Slice calls of zero-size element type, which never dereference it.
var zeroSizedBase byte

func zeroBasePointer() unsafe.Pointer {
	return unsafe.Pointer(&zeroSizedBase)
}
