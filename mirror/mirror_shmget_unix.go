//go:build aix || darwin || dragonfly || freebsd || openbsd || solaris || zos || linux || netbsd

// The System-V shared memory strategy, available on every POSIX build
// tagged above, Linux included, as the portable fallback strategy.

package mirror

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// allocateSysVShmCommon implements the opt-in System-V shared memory
// strategy from §4.1: acquire a temporary shared-memory segment of size P,
// find a free 2P range by reserving it, release the reservation, attach the
// segment at both halves of that range, detach on drop. The range is not
// held reserved while the two attaches run; a lost placement race is
// retried.
func allocateSysVShmCommon(size int) (*Buffer, error) {
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, size, unix.IPC_CREAT|0600)
	if err != nil {
		return nil, fmt.Errorf("mirror: shmget %d bytes: %w: %w", size, err, ErrOutOfMemory)
	}
	// Mark the segment for destruction once the last attach is detached, so
	// it is never leaked even if this goroutine dies before Deallocate runs.
	defer unix.SysvShmCtl(id, unix.IPC_RMID, nil)

	return withPlacementRetries(func() (*Buffer, error, bool) {
		reservation, err := unix.Mmap(-1, 0, 2*size, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
		if err != nil {
			return nil, fmt.Errorf("mirror: reserve %d bytes: %w: %w", 2*size, err, ErrOutOfMemory), false
		}
		base := uintptr(unsafe.Pointer(&reservation[0]))
		if err := unix.Munmap(reservation); err != nil {
			return nil, fmt.Errorf("mirror: release reservation: %w", err), true
		}

		first, err := unix.SysvShmAttach(id, base, 0)
		if err != nil {
			return nil, fmt.Errorf("mirror: shmat first window: %w", err), true
		}
		if uintptr(unsafe.Pointer(&first[0])) != base {
			unix.SysvShmDetach(first)
			return nil, fmt.Errorf("mirror: first window landed at unexpected address"), true
		}

		second, err := unix.SysvShmAttach(id, base+uintptr(size), 0)
		if err != nil {
			unix.SysvShmDetach(first)
			return nil, fmt.Errorf("mirror: shmat second window: %w", err), true
		}
		if uintptr(unsafe.Pointer(&second[0])) != base+uintptr(size) {
			unix.SysvShmDetach(first)
			unix.SysvShmDetach(second)
			return nil, fmt.Errorf("mirror: second window landed at unexpected address"), true
		}

		return &Buffer{
			base:     base,
			size:     size,
			strategy: StrategySysVShm,
			unmap: func() error {
				if err := unix.SysvShmDetach(first); err != nil {
					return err
				}
				return unix.SysvShmDetach(second)
			},
		}, nil, false
	})
}
