package mirrorqueue

import (
	"log"
	"os"
)

// Logger receives one line per mirrored-buffer allocation event — a grow or
// a shrink — when `Config.Verbose=true`. Lost placement races are not
// logged; they are counted in Stats().PlacementRetries. A typical line
// looks like:
//
//	mirrorqueue: grew mirrored buffer to 1048576 bytes (131072 elements), strategy=1
//
// where strategy is the mirror.Strategy that produced the new windows. A
// Deque with Verbose unset never calls Printf at all; its Stats() counters
// keep accumulating regardless.
type Logger interface {
	Printf(format string, v ...interface{})
}

var _ Logger = &log.Logger{}

// DefaultLogger returns the Logger a Deque falls back to when Config.Logger
// is nil: stdlib's log.Logger writing timestamped lines to stdout.
func DefaultLogger() *log.Logger {
	return log.New(os.Stdout, "", log.LstdFlags)
}

// newLogger returns custom if the caller supplied one, falling back to
// DefaultLogger() so mirrored-buffer allocation/growth reporting always has
// a sink to write to once Config.Verbose is set.
func newLogger(custom Logger) Logger {
	if custom != nil {
		return custom
	}

	return DefaultLogger()
}
