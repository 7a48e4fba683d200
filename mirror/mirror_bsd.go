//go:build aix || darwin || dragonfly || freebsd || openbsd || solaris || zos || netbsd

// Non-Linux POSIX hosts: memfd_create and mremap(MREMAP_FIXED) are Linux
// extensions, so these hosts are served entirely by the System-V shared
// memory strategy (mirror_shmget_unix.go). StrategyDualMap is therefore
// reported ErrUnsupported here rather than silently downgraded.

package mirror

import (
	"fmt"
	"sync"

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

func allocatePlatform(size int, opts Options) (*Buffer, error) {
	switch opts.Strategy {
	case StrategyDualMap:
		return nil, fmt.Errorf("mirror: dual-mapping strategy requires Linux: %w", ErrUnsupported)
	default:
		return allocateSysVShmCommon(size)
	}
}
