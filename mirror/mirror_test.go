package mirror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGranularityIsPositiveAndStable(t *testing.T) {
	t.Parallel()

	// given/when
	g1 := Granularity()
	g2 := Granularity()

	// then
	assert.Greater(t, g1, 0)
	assert.Equal(t, g1, g2)
}

func TestAllocateRoundsUpToGranularity(t *testing.T) {
	t.Parallel()

	// given
	g := Granularity()

	// when
	buf, err := Allocate(1, Options{})
	require.NoError(t, err)
	defer buf.Deallocate()

	// then
	assert.GreaterOrEqual(t, buf.Size(), g)
	assert.Equal(t, 0, buf.Size()%g)
}

func TestAllocateZeroReturnsSentinelBuffer(t *testing.T) {
	t.Parallel()

	// given/when
	buf, err := Allocate(0, Options{})

	// then
	require.NoError(t, err)
	assert.Equal(t, 0, buf.Size())
	assert.Equal(t, uintptr(0), buf.Base())
	assert.NoError(t, buf.Deallocate())
}

func TestAllocatePlacementRetriesStartsAtZero(t *testing.T) {
	t.Parallel()

	// given/when: an uncontended allocation should win the placement race
	// on its first attempt.
	buf, err := Allocate(Granularity(), Options{})
	require.NoError(t, err)
	defer buf.Deallocate()

	// then
	assert.Equal(t, 0, buf.PlacementRetries())
}

func TestAllocateNegativeIsOversize(t *testing.T) {
	t.Parallel()

	// when
	_, err := Allocate(-1, Options{})

	// then
	assert.True(t, errors.Is(err, ErrOversize))
}

func TestAllocateAbsurdSizeIsOversize(t *testing.T) {
	t.Parallel()

	// when
	_, err := Allocate(maxRequestBytes+1, Options{})

	// then
	assert.True(t, errors.Is(err, ErrOversize))
}

// TestMirrorPropertyWritesAreVisibleAcrossWindows verifies the defining
// invariant from §3: for every byte offset 0 <= i < P, the byte at B+i
// equals the byte at B+P+i, in both directions.
func TestMirrorPropertyWritesAreVisibleAcrossWindows(t *testing.T) {
	t.Parallel()

	// given
	g := Granularity()
	buf, err := Allocate(g, Options{})
	require.NoError(t, err)
	defer buf.Deallocate()

	mirrored := buf.Mirrored()
	require.Len(t, mirrored, 2*buf.Size())
	p := buf.Size()

	// when: write through the first window
	for i := 0; i < p; i += 257 {
		mirrored[i] = byte(i)
	}

	// then: visible through the second window
	for i := 0; i < p; i += 257 {
		assert.Equal(t, byte(i), mirrored[p+i], "offset %d", i)
	}

	// when: write through the second window
	for i := 0; i < p; i += 513 {
		mirrored[p+i] = byte(^byte(i))
	}

	// then: visible through the first window
	for i := 0; i < p; i += 513 {
		assert.Equal(t, byte(^byte(i)), mirrored[i], "offset %d", i)
	}
}

func TestDeallocateIsIdempotent(t *testing.T) {
	t.Parallel()

	// given
	buf, err := Allocate(Granularity(), Options{})
	require.NoError(t, err)

	// when
	require.NoError(t, buf.Deallocate())

	// then
	assert.NoError(t, buf.Deallocate())
}

func TestDeallocateOnZeroBufferIsNoop(t *testing.T) {
	t.Parallel()

	var buf Buffer
	assert.NoError(t, buf.Deallocate())
}

func TestCacheReusesReleasedBuffers(t *testing.T) {
	t.Parallel()

	// given
	c := NewCache(2)
	buf, err := Allocate(Granularity(), Options{})
	require.NoError(t, err)

	// when
	require.NoError(t, c.Put(buf))

	// then
	assert.Equal(t, 1, c.Len())
	taken := c.Take(Granularity())
	require.NotNil(t, taken)
	assert.Equal(t, 0, c.Len())
	assert.NoError(t, taken.Deallocate())
}

func TestCacheDeallocatesWhenDisabled(t *testing.T) {
	t.Parallel()

	// given
	c := NewCache(0)
	buf, err := Allocate(Granularity(), Options{})
	require.NoError(t, err)

	// when
	require.NoError(t, c.Put(buf))

	// then
	assert.Equal(t, 0, c.Len())
}
