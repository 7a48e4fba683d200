package mirror

// Cache retains released Buffers of common sizes so a later Allocate of the
// same size can skip the host round-trip. A Cache is strictly per-goroutine:
// nothing inside it synchronizes access, the same way a single Deque is not
// internally synchronized. Callers that want this opt-in reuse keep one
// Cache per goroutine, exactly as the spec's §5 "per-thread mapping cache"
// describes; sync.Pool was considered and rejected because it does not
// guarantee the thread (goroutine) affinity the spec requires.
type Cache struct {
	maxEntries int
	entries    []*Buffer
}

// NewCache returns a Cache that retains at most maxEntries released Buffers.
// A maxEntries of zero or less disables retention; Put always deallocates.
func NewCache(maxEntries int) *Cache {
	return &Cache{maxEntries: maxEntries}
}

// Take removes and returns a cached Buffer whose Size is at least size, or
// nil if none is cached. The caller owns the returned Buffer.
func (c *Cache) Take(size int) *Buffer {
	if c == nil {
		return nil
	}
	for i, b := range c.entries {
		if b.Size() >= size {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return b
		}
	}
	return nil
}

// Put retains buf for reuse, or deallocates it immediately if the cache is
// full or disabled.
func (c *Cache) Put(buf *Buffer) error {
	if buf == nil {
		return nil
	}
	if c == nil || c.maxEntries <= 0 || len(c.entries) >= c.maxEntries {
		return buf.Deallocate()
	}
	c.entries = append(c.entries, buf)
	return nil
}

// Len reports how many Buffers are currently retained.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Close deallocates every retained Buffer.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	var firstErr error
	for _, b := range c.entries {
		if err := b.Deallocate(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.entries = nil
	return firstErr
}
