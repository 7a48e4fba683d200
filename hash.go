package mirrorqueue

import (
	"unsafe"

	"github.com/cespare/xxhash"
)

// hashBytes returns the xxhash digest of a raw byte view, used by the
// Public Deque API's Hash method.
func hashBytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// byteViewOf reinterprets a contiguous []T as a []byte of the same
// underlying memory, valid only while s is not mutated or moved.
func byteViewOf[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	if size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), uintptr(len(s))*size)
}
