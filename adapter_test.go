package mirrorqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intEq(a, b int) bool { return a == b }

func intCmp(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func TestEqualComparesLengthThenElements(t *testing.T) {
	t.Parallel()

	a, err := FromSlice([]int{1, 2, 3})
	require.NoError(t, err)
	defer a.Close()
	b, err := FromSlice([]int{1, 2, 3})
	require.NoError(t, err)
	defer b.Close()
	c, err := FromSlice([]int{1, 2})
	require.NoError(t, err)
	defer c.Close()

	assert.True(t, a.Equal(b, intEq))
	assert.False(t, a.Equal(c, intEq))
}

func TestCompareIsLexicographic(t *testing.T) {
	t.Parallel()

	short, err := FromSlice([]int{1, 2})
	require.NoError(t, err)
	defer short.Close()
	long, err := FromSlice([]int{1, 2, 3})
	require.NoError(t, err)
	defer long.Close()
	bigger, err := FromSlice([]int{1, 3})
	require.NoError(t, err)
	defer bigger.Close()

	assert.Equal(t, -1, short.Compare(long, intCmp))
	assert.Equal(t, 1, long.Compare(short, intCmp))
	assert.Equal(t, -1, short.Compare(bigger, intCmp))
	assert.Equal(t, 0, short.Compare(short, intCmp))
}

func TestHashIsStableAndSensitiveToContent(t *testing.T) {
	t.Parallel()

	a, err := FromSlice([]int{1, 2, 3})
	require.NoError(t, err)
	defer a.Close()
	b, err := FromSlice([]int{1, 2, 3})
	require.NoError(t, err)
	defer b.Close()
	c, err := FromSlice([]int{1, 2, 4})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestCloneProducesIndependentCopy(t *testing.T) {
	t.Parallel()

	d, err := FromSlice([]int{1, 2, 3})
	require.NoError(t, err)
	defer d.Close()

	clone, err := d.Clone(func(v int) int { return v })
	require.NoError(t, err)
	defer clone.Close()

	require.NoError(t, d.PushBack(99))

	assert.Equal(t, []int{1, 2, 3}, clone.Slice())
	assert.Equal(t, []int{1, 2, 3, 99}, d.Slice())
}

func TestToSliceCopiesWithoutEmptyingDeque(t *testing.T) {
	t.Parallel()

	d, err := FromSlice([]int{1, 2, 3})
	require.NoError(t, err)
	defer d.Close()

	s := d.ToSlice()
	s[0] = 100

	assert.Equal(t, []int{1, 2, 3}, d.Slice())
	assert.Equal(t, 3, d.Len())
}

func TestIntoSliceEmptiesTheDequeWithoutDestructing(t *testing.T) {
	t.Parallel()

	var destructed int
	d, err := FromSlice([]int{1, 2, 3}, WithDestructor[int](func(int) {
		destructed++
	}))
	require.NoError(t, err)

	s := d.IntoSlice()

	assert.Equal(t, []int{1, 2, 3}, s)
	assert.Equal(t, 0, d.Len())
	assert.Equal(t, 0, destructed)
	require.NoError(t, d.Close())
}
