package sendpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPoolIsolatedPerInstance(t *testing.T) {
	a, ok := New(2, 32)
	require.True(t, ok)
	b, ok := New(2, 32)
	require.True(t, ok)

	s := a.Acquire()
	require.False(t, s.Empty())
	assert.Equal(t, 1, a.FreeCount())
	assert.Equal(t, 2, b.FreeCount(), "a separate Pool instance must not share state")

	a.Release(s.Index)
	assert.Equal(t, 2, a.FreeCount())
}

func TestSendPoolExhaustion(t *testing.T) {
	p, ok := New(1, 16)
	require.True(t, ok)
	s1 := p.Acquire()
	require.False(t, s1.Empty())
	s2 := p.Acquire()
	assert.True(t, s2.Empty())
}
