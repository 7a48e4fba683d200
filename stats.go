package mirrorqueue

import "sync"

// Stats holds counters describing a Deque's mirrored-buffer activity over
// its lifetime. A Deque with Config.Verbose unset still accumulates Stats;
// Verbose only controls whether the same events are also logged.
type Stats struct {
	// Growths is the number of times the backing Mirrored Buffer was replaced
	// by a larger one.
	Growths int64
	// BytesMirrored is the total number of physical bytes of every Mirrored
	// Buffer installed by a growth, including ones since released. The
	// smaller buffer that ShrinkToFit installs is not counted.
	BytesMirrored int64
	// PlacementRetries is the number of mapping-placement races lost and retried
	// across all allocations.
	PlacementRetries int64
}

// stats is the mutable, internal counterpart of Stats, guarded by a
// read-write mutex since Stats() is expected to be read far more often
// than a growth or retry is recorded.
type stats struct {
	mu               sync.RWMutex
	growths          int64
	bytesMirrored    int64
	placementRetries int64
}

func newStats() *stats {
	return &stats{}
}

func (s *stats) recordGrowth(bytes int64) {
	s.mu.Lock()
	s.growths++
	s.bytesMirrored += bytes
	s.mu.Unlock()
}

func (s *stats) recordPlacementRetries(n int64) {
	if n == 0 {
		return
	}
	s.mu.Lock()
	s.placementRetries += n
	s.mu.Unlock()
}

func (s *stats) snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Growths:          s.growths,
		BytesMirrored:    s.bytesMirrored,
		PlacementRetries: s.placementRetries,
	}
}
