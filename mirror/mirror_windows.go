//go:build windows

// Windows file-mapping strategy: a page-file-backed section object of size
// P is created, 2P of address space is reserved with VirtualAlloc and
// immediately released, and the section is mapped twice into the freed
// range with MapViewOfFileEx; on collision, retry with a fresh reservation.

package mirror

import (
	"fmt"
	"sync"

	"golang.org/x/sys/windows"
)

var (
	modkernel32          = windows.NewLazySystemDLL("kernel32.dll")
	procMapViewOfFileEx  = modkernel32.NewProc("MapViewOfFileEx")
	procVirtualAlloc     = modkernel32.NewProc("VirtualAlloc")
	procVirtualFree      = modkernel32.NewProc("VirtualFree")
	procUnmapViewOfFile  = modkernel32.NewProc("UnmapViewOfFile")
)

const (
	memReserve  = 0x00002000
	memRelease  = 0x00008000
	pageReadWrite = 0x04
	fileMapWrite = 0x0002
)

var granularityOnce sync.Once
var granularityValue int

func granularity() int {
	granularityOnce.Do(func() {
		var info windows.SystemInfo
		windows.GetSystemInfo(&info)
		granularityValue = int(info.AllocationGranularity)
	})
	return granularityValue
}

func virtualAlloc(addr uintptr, size int, allocType, protect uint32) (uintptr, error) {
	r1, _, err := procVirtualAlloc.Call(addr, uintptr(size), uintptr(allocType), uintptr(protect))
	if r1 == 0 {
		return 0, err
	}
	return r1, nil
}

func virtualFree(addr uintptr, size int) error {
	r1, _, err := procVirtualFree.Call(addr, uintptr(size), uintptr(memRelease))
	if r1 == 0 {
		return err
	}
	return nil
}

func mapViewOfFileEx(handle windows.Handle, access uint32, offsetHigh, offsetLow uint32, length uintptr, addr uintptr) (uintptr, error) {
	r1, _, err := procMapViewOfFileEx.Call(uintptr(handle), uintptr(access), uintptr(offsetHigh), uintptr(offsetLow), length, addr)
	if r1 == 0 {
		return 0, err
	}
	return r1, nil
}

func unmapViewOfFile(addr uintptr) error {
	r1, _, err := procUnmapViewOfFile.Call(addr)
	if r1 == 0 {
		return err
	}
	return nil
}

func allocatePlatform(size int, opts Options) (*Buffer, error) {
	handle, err := windows.CreateFileMapping(windows.InvalidHandle, nil, pageReadWrite, 0, uint32(size), nil)
	if err != nil {
		return nil, fmt.Errorf("mirror: CreateFileMapping %d bytes: %w: %w", size, err, ErrOutOfMemory)
	}
	defer windows.CloseHandle(handle)

	return withPlacementRetries(func() (*Buffer, error, bool) {
		base, err := virtualAlloc(0, 2*size, memReserve, 0)
		if err != nil {
			return nil, fmt.Errorf("mirror: reserve %d bytes: %w: %w", 2*size, err, ErrOutOfMemory), false
		}
		if err := virtualFree(base, 0); err != nil {
			return nil, fmt.Errorf("mirror: release reservation: %w", err), true
		}

		first, err := mapViewOfFileEx(handle, fileMapWrite, 0, 0, uintptr(size), base)
		if err != nil {
			return nil, fmt.Errorf("mirror: map first window: %w", err), true
		}
		if first != base {
			unmapViewOfFile(first)
			return nil, fmt.Errorf("mirror: first window landed at unexpected address"), true
		}

		second, err := mapViewOfFileEx(handle, fileMapWrite, 0, 0, uintptr(size), base+uintptr(size))
		if err != nil {
			unmapViewOfFile(base)
			return nil, fmt.Errorf("mirror: map second window: %w", err), true
		}
		if second != base+uintptr(size) {
			unmapViewOfFile(base)
			unmapViewOfFile(second)
			return nil, fmt.Errorf("mirror: second window landed at unexpected address"), true
		}

		return &Buffer{
			base:     base,
			size:     size,
			strategy: StrategyWindowsFileMapping,
			unmap: func() error {
				if err := unmapViewOfFile(base); err != nil {
					return err
				}
				return unmapViewOfFile(base + uintptr(size))
			},
		}, nil, false
	})
}
