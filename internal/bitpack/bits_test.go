package bitpack

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBits_SetGet(t *testing.T) {
	b := NewBits(8)
	require.Equal(t, 8, b.Len())
	b.Set(3, true)
	b.Set(70, true) // grows past the first word
	require.True(t, b.Get(3))
	require.True(t, b.Get(70))
	require.False(t, b.Get(4))
	require.Equal(t, 71, b.Len())
}

func TestBits_GetOutOfRangeIsFalse(t *testing.T) {
	b := NewBits(4)
	require.False(t, b.Get(100))
	require.False(t, b.Get(-1))
}

func TestBits_ResetAndTruncate(t *testing.T) {
	b := NewBits(4)
	b.Set(0, true)
	b.Set(1, true)
	b.Set(2, true)
	b.Truncate(1)
	require.Equal(t, 1, b.Len())
	require.True(t, b.Get(0))
	require.False(t, b.Get(1))

	b.Reset()
	require.Equal(t, 0, b.Len())
	require.False(t, b.Get(0))
}

func TestBits_PopCount(t *testing.T) {
	b := NewBits(128)
	for _, i := range []int{0, 1, 63, 64, 65, 127} {
		b.Set(i, true)
	}
	require.Equal(t, 6, b.PopCount())
}
