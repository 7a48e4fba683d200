// Package mirrorqueue implements a double-ended queue backed by a growable
// mirrored virtual ring buffer: a physical allocation of N element slots is
// mapped twice into two adjacent virtual-address windows, so any live run of
// up to N elements is visible as one contiguous address range regardless of
// where it wraps.
package mirrorqueue

import (
	"github.com/allegro/mirrorqueue/mirror"
)

// Error taxonomy surfaced from allocation and growth operations. All other
// Deque operations are infallible given satisfied preconditions. These are
// the same sentinels the mirror package reports; the Deque Core propagates
// them verbatim, per §7.
var (
	// ErrOutOfMemory is returned when the host refuses to create the backing object.
	ErrOutOfMemory = mirror.ErrOutOfMemory
	// ErrAddressSpaceExhausted is returned when every mapping-placement retry
	// loses the race for the second mirrored window.
	ErrAddressSpaceExhausted = mirror.ErrAddressSpaceExhausted
	// ErrOversize is returned when the requested capacity exceeds a host-dependent maximum.
	ErrOversize = mirror.ErrOversize
	// ErrUnsupported is returned when the element's alignment exceeds the host's
	// mapping granularity, or the host cannot mirror-map at all.
	ErrUnsupported = mirror.ErrUnsupported
)

// Config controls allocation behaviour for a Deque. The zero Config is valid
// and behaves like DefaultConfig().
type Config struct {
	// InitialCapacity is a hint, in elements, for the first mapping. It is
	// rounded up to a multiple of the host's mapping granularity.
	InitialCapacity int
	// Verbose prints information about mirrored-buffer allocation and growth
	// when set.
	Verbose bool
	// Logger receives verbose output. When nil and Verbose is set, DefaultLogger() is used.
	Logger Logger
	// ShmStrategy opts into the System-V shared memory mapping strategy on
	// POSIX hosts instead of the preferred anonymous shared-object strategy.
	ShmStrategy bool
	// MappingCacheSize bounds the per-goroutine mapping cache (see the
	// mirror.Cache type). Zero disables the cache.
	MappingCacheSize int
}

// DefaultConfig initializes a Config with default values.
func DefaultConfig() Config {
	return Config{
		InitialCapacity: 0,
		Verbose:         false,
		ShmStrategy:     false,
	}
}

func (c Config) logger() Logger {
	if !c.Verbose {
		return nil
	}
	return newLogger(c.Logger)
}
