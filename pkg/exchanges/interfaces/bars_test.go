package interfaces

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBarsSortsAscending(t *testing.T) {
	bars := []Bar{
		{Time: 3000, Close: 3},
		{Time: 1000, Close: 1},
		{Time: 2000, Close: 2},
	}

	out := NormalizeBars(bars)
	require.Len(t, out, 3)
	assert.Equal(t, int64(1000), out[0].Time)
	assert.Equal(t, int64(2000), out[1].Time)
	assert.Equal(t, int64(3000), out[2].Time)
}

func TestNormalizeBarsDuplicateLastWins(t *testing.T) {
	bars := []Bar{
		{Time: 1000, Close: 1},
		{Time: 2000, Close: 2, Closed: false},
		{Time: 2000, Close: 2.5, Closed: true},
		{Time: 3000, Close: 3},
	}

	out := NormalizeBars(bars)
	require.Len(t, out, 3)
	assert.Equal(t, 2.5, out[1].Close)
	assert.True(t, out[1].Closed)
}

func TestNormalizeBarsShortInputs(t *testing.T) {
	assert.Empty(t, NormalizeBars(nil))
	one := []Bar{{Time: 42}}
	assert.Equal(t, one, NormalizeBars(one))
}

func TestClampRange(t *testing.T) {
	from, to := ClampRange(100, 200)
	assert.Equal(t, int64(100), from)
	assert.Equal(t, int64(200), to)

	// Inverted ranges collapse to a point at the upper bound.
	from, to = ClampRange(300, 200)
	assert.Equal(t, int64(200), from)
	assert.Equal(t, int64(200), to)
}
