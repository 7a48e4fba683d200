// Package mirror implements the mirrored-mapping allocator: a physical
// allocation of P bytes (P a multiple of the host's mapping granularity)
// backed by two adjacent virtual-address windows V0 and V1 = V0+P, both
// mapped to the same physical bytes. Any byte at offset i in V0 aliases
// the byte at offset i in V1, and vice versa.
//
// The package selects one mapping strategy per host (see mirror_linux.go,
// mirror_bsd.go, mirror_shmget_unix.go, mirror_windows.go and
// mirror_other.go) behind a single Buffer type, with build tags choosing
// the implementation compiled into a given binary.
package mirror

import (
	"errors"
	"fmt"
	"unsafe"
)

// Error taxonomy. See §7 of the design: these propagate verbatim from
// Allocate up through the Deque Core's growth operations.
var (
	// ErrOutOfMemory is returned when the host refuses the backing object.
	ErrOutOfMemory = errors.New("mirror: out of memory")
	// ErrAddressSpaceExhausted is returned when every mapping-placement retry
	// loses the race for the second window.
	ErrAddressSpaceExhausted = errors.New("mirror: address space exhausted")
	// ErrOversize is returned when the requested size exceeds a host maximum.
	ErrOversize = errors.New("mirror: requested size exceeds host maximum")
	// ErrUnsupported is returned when the host cannot mirror-map at all.
	ErrUnsupported = errors.New("mirror: host does not support mirrored mapping")
)

// maxPlacementAttempts bounds the "reserve 2P -> split -> map twice" retry
// loop described in §4.1 and the Placement race design note. The spec
// requires at least 3 attempts.
const maxPlacementAttempts = 8

// maxRequestBytes is a conservative ceiling used to reject absurd requests
// before they reach the host (ErrOversize), independent of any real host
// limit which callers may hit first.
const maxRequestBytes = 1 << 44 // 16 TiB

// Strategy selects which per-host mapping technique Allocate uses.
type Strategy int

const (
	// StrategyAuto picks the host's preferred strategy.
	StrategyAuto Strategy = iota
	// StrategyAnonShared is the anonymous shared-object strategy (preferred on POSIX).
	StrategyAnonShared
	// StrategyDualMap is the atomic-remap strategy (Linux only).
	StrategyDualMap
	// StrategySysVShm is the opt-in System-V shared memory strategy.
	StrategySysVShm
	// StrategyWindowsFileMapping is the Windows page-file-backed section strategy.
	StrategyWindowsFileMapping
)

// Buffer owns a pair of adjacent virtual-address windows, each of size P
// bytes, mapped onto the same P physical bytes. The zero Buffer is a valid
// "no mapping" sentinel, the one Allocate(0) returns; its Base is 0 and its
// Size is 0.
type Buffer struct {
	base             uintptr
	size             int // P, the physical byte size of one window
	strategy         Strategy
	unmap            func() error
	placementRetries int // failed placement attempts before this mapping succeeded
}

// Options configures an Allocate call.
type Options struct {
	// Strategy requests a specific mapping technique. StrategyAuto (the
	// zero value) lets the host pick.
	Strategy Strategy
}

// Granularity returns the host's mapping granularity G: the page size on
// POSIX hosts, the allocation granularity on Windows. It is queried once
// and cached.
func Granularity() int {
	return granularity()
}

// roundUp rounds n up to the next multiple of g.
func roundUp(n, g int) int {
	if g <= 0 {
		return n
	}
	if n%g == 0 {
		return n
	}
	return (n/g + 1) * g
}

// Allocate reserves a mirrored buffer of at least minBytes physical bytes,
// rounded up to a multiple of Granularity(). It returns ErrOversize before
// attempting any host call when the request is absurd, ErrUnsupported when
// the host has no viable strategy, and ErrOutOfMemory/ErrAddressSpaceExhausted
// when the host calls themselves fail.
func Allocate(minBytes int, opts Options) (*Buffer, error) {
	if minBytes < 0 {
		return nil, fmt.Errorf("mirror: negative size %d: %w", minBytes, ErrOversize)
	}
	if minBytes == 0 {
		return &Buffer{}, nil
	}
	if minBytes > maxRequestBytes {
		return nil, fmt.Errorf("mirror: requested %d bytes: %w", minBytes, ErrOversize)
	}

	g := Granularity()
	size := roundUp(minBytes, g)
	if size > maxRequestBytes {
		return nil, fmt.Errorf("mirror: rounded size %d: %w", size, ErrOversize)
	}

	return allocatePlatform(size, opts)
}

// Deallocate releases both virtual windows. It is safe to call on a zero
// Buffer (a no-op).
func (b *Buffer) Deallocate() error {
	if b == nil || b.unmap == nil {
		return nil
	}
	err := b.unmap()
	b.unmap = nil
	b.base = 0
	b.size = 0
	return err
}

// Size returns P, the physical byte size of one window (half the visible
// mirrored range).
func (b *Buffer) Size() int {
	if b == nil {
		return 0
	}
	return b.size
}

// Base returns the address of the start of the first window, V0. It is the
// zero uintptr for a zero-sized Buffer.
func (b *Buffer) Base() uintptr {
	if b == nil {
		return 0
	}
	return b.base
}

// Strategy reports which mapping technique produced this Buffer.
func (b *Buffer) Strategy() Strategy {
	if b == nil {
		return StrategyAuto
	}
	return b.strategy
}

// PlacementRetries reports how many times Allocate lost the mapping-placement
// race and retried before this Buffer's windows landed, so callers can feed
// it into their own accounting without re-deriving it.
func (b *Buffer) PlacementRetries() int {
	if b == nil {
		return 0
	}
	return b.placementRetries
}

// Mirrored returns the full 2P-byte mirrored view starting at Base: bytes
// [0,P) are V0, bytes [P,2P) are V1, and byte i always equals byte P+i.
// The returned slice is only valid while the Buffer is live.
func (b *Buffer) Mirrored() []byte {
	if b == nil || b.base == 0 || b.size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(b.base)), 2*b.size)
}
