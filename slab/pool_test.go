package slab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAcquireReleaseInvariant(t *testing.T) {
	const n = 8
	p, ok := NewPool(n, 64)
	require.True(t, ok)

	handedOut := map[int]bool{}
	for i := 0; i < n; i++ {
		s := p.Acquire()
		require.False(t, s.Empty())
		handedOut[s.Index] = true
		assert.Equal(t, len(handedOut)+p.FreeCount(), n)
	}

	// Exhausted: next Acquire returns the sentinel, never blocks.
	empty := p.Acquire()
	assert.True(t, empty.Empty())
	assert.Equal(t, 0, p.FreeCount())

	for idx := range handedOut {
		p.Release(idx)
	}
	assert.Equal(t, n, p.FreeCount())
}

func TestPoolExhaustionThenReleaseLIFO(t *testing.T) {
	p, ok := NewPool(2, 32)
	require.True(t, ok)

	a := p.Acquire()
	b := p.Acquire()
	require.False(t, a.Empty())
	require.False(t, b.Empty())

	third := p.Acquire()
	assert.True(t, third.Empty())

	p.Release(b.Index)
	fourth := p.Acquire()
	require.False(t, fourth.Empty())
	assert.Equal(t, b.Index, fourth.Index)
}

func TestPoolReleaseOutOfRangeIsIgnored(t *testing.T) {
	p, ok := NewPool(4, 16)
	require.True(t, ok)

	before := p.FreeCount()
	p.Release(-1)
	p.Release(1000)
	assert.Equal(t, before, p.FreeCount())
}

func TestSlotAddressing(t *testing.T) {
	p, ok := NewPool(4, 128)
	require.True(t, ok)
	s := p.Acquire()
	require.False(t, s.Empty())
	assert.Equal(t, 128, s.Capacity)
	assert.Len(t, s.Data, 128)
}
