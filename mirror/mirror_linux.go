//go:build linux

// Mapping strategies sync'd from the technique used by
// golang.org/x/sys@v0.21.0/unix's mmap/mremap wrappers, generalized here to
// place two mappings of the same backing object at adjacent addresses
// instead of one mapping at a kernel-chosen address.

package mirror

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

var granularityOnce sync.Once
var granularityValue int

func granularity() int {
	granularityOnce.Do(func() {
		granularityValue = unix.Getpagesize()
	})
	return granularityValue
}

// mmapAt maps fd at the exact virtual address addr, the way MAP_FIXED
// mappings are placed in C; golang.org/x/sys/unix's Mmap wrapper doesn't
// expose a target address, so this goes straight to the syscall the way
// the wrapper itself does internally.
func mmapAt(addr uintptr, length int, prot, flags, fd int, offset int64) (uintptr, error) {
	r1, _, errno := unix.Syscall6(unix.SYS_MMAP, addr, uintptr(length), uintptr(prot), uintptr(flags), uintptr(fd), uintptr(offset))
	if errno != 0 {
		return 0, errno
	}
	return r1, nil
}

func munmapAt(addr uintptr, length int) error {
	_, _, errno := unix.Syscall(unix.SYS_MUNMAP, addr, uintptr(length), 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func allocatePlatform(size int, opts Options) (*Buffer, error) {
	switch opts.Strategy {
	case StrategySysVShm:
		return allocateSysVShm(size)
	case StrategyDualMap:
		return allocateDualMap(size)
	default:
		return allocateAnonShared(size)
	}
}

// allocateAnonShared implements the "anonymous shared-object strategy":
// an anonymous memfd of size P is created, a 2P window is reserved with a
// PROT_NONE placeholder mapping to claim the address range atomically, and
// the memfd is then mapped twice over that reservation, once per half.
func allocateAnonShared(size int) (*Buffer, error) {
	fd, err := unix.MemfdCreate("mirrorqueue", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("mirror: memfd_create: %w: %w", err, ErrOutOfMemory)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, fmt.Errorf("mirror: ftruncate %d: %w: %w", size, err, ErrOutOfMemory)
	}

	return withPlacementRetries(func() (*Buffer, error, bool) {
		reservation, err := unix.Mmap(-1, 0, 2*size, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
		if err != nil {
			return nil, fmt.Errorf("mirror: reserve %d bytes: %w: %w", 2*size, err, ErrOutOfMemory), false
		}
		base := uintptr(unsafe.Pointer(&reservation[0]))

		first, err := mmapAt(base, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_FIXED, fd, 0)
		if err != nil {
			unix.Munmap(reservation)
			return nil, fmt.Errorf("mirror: map first window: %w", err), true
		}
		if first != base {
			munmapAt(first, size)
			unix.Munmap(reservation)
			return nil, fmt.Errorf("mirror: first window landed at unexpected address"), true
		}

		second, err := mmapAt(base+uintptr(size), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_FIXED, fd, 0)
		if err != nil {
			munmapAt(base, 2*size)
			return nil, fmt.Errorf("mirror: map second window: %w", err), true
		}
		if second != base+uintptr(size) {
			munmapAt(base, 2*size)
			munmapAt(second, size)
			return nil, fmt.Errorf("mirror: second window landed at unexpected address"), true
		}

		return &Buffer{
			base:     base,
			size:     size,
			strategy: StrategyAnonShared,
			unmap: func() error {
				if err := munmapAt(base, size); err != nil {
					return err
				}
				return munmapAt(base+uintptr(size), size)
			},
		}, nil, false
	})
}

// allocateDualMap implements the "dual-mapping strategy": reserve 2P,
// release it immediately, move a mapping of the memfd onto the first half
// of the freed range with mremap(MREMAP_FIXED|MREMAP_MAYMOVE), and map the
// memfd again onto the second half with mmap(MAP_FIXED).
func allocateDualMap(size int) (*Buffer, error) {
	fd, err := unix.MemfdCreate("mirrorqueue-dualmap", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("mirror: memfd_create: %w: %w", err, ErrOutOfMemory)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, fmt.Errorf("mirror: ftruncate %d: %w: %w", size, err, ErrOutOfMemory)
	}

	source, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mirror: map source window: %w: %w", err, ErrOutOfMemory)
	}

	return withPlacementRetries(func() (*Buffer, error, bool) {
		reservation, err := unix.Mmap(-1, 0, 2*size, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
		if err != nil {
			return nil, fmt.Errorf("mirror: reserve %d bytes: %w: %w", 2*size, err, ErrOutOfMemory), false
		}
		base := uintptr(unsafe.Pointer(&reservation[0]))
		if err := unix.Munmap(reservation); err != nil {
			return nil, fmt.Errorf("mirror: release reservation: %w", err), true
		}

		first, err := remapFixed(source, base, size)
		if err != nil {
			return nil, fmt.Errorf("mirror: remap first window: %w", err), true
		}
		if first != base {
			munmapAt(first, size)
			return nil, fmt.Errorf("mirror: first window landed at unexpected address"), true
		}

		second, err := mmapAt(base+uintptr(size), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_FIXED, fd, 0)
		if err != nil {
			munmapAt(base, size)
			return nil, fmt.Errorf("mirror: map second window: %w", err), true
		}
		if second != base+uintptr(size) {
			munmapAt(base, size)
			munmapAt(second, size)
			return nil, fmt.Errorf("mirror: second window landed at unexpected address"), true
		}

		return &Buffer{
			base:     base,
			size:     size,
			strategy: StrategyDualMap,
			unmap: func() error {
				if err := munmapAt(base, size); err != nil {
					return err
				}
				return munmapAt(base+uintptr(size), size)
			},
		}, nil, false
	})
}

// remapFixed moves an existing mapping to a specific target address using
// MREMAP_FIXED|MREMAP_MAYMOVE.
func remapFixed(oldMapping []byte, newAddr uintptr, size int) (uintptr, error) {
	oldAddr := uintptr(unsafe.Pointer(&oldMapping[0]))
	r1, _, errno := unix.Syscall6(unix.SYS_MREMAP, oldAddr, uintptr(size), uintptr(size),
		uintptr(unix.MREMAP_FIXED|unix.MREMAP_MAYMOVE), newAddr, 0)
	if errno != 0 {
		return 0, errno
	}
	return r1, nil
}

func allocateSysVShm(size int) (*Buffer, error) {
	return allocateSysVShmCommon(size)
}
