package slab

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistrar records register/unregister calls for assertions.
type fakeRegistrar struct {
	mu       sync.Mutex
	nextID   int64
	live     map[int64]bool
	failNth  int // if > 0, the failNth-th RegisterBuffer call fails
	calls    int
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{live: make(map[int64]bool)}
}

func (f *fakeRegistrar) RegisterBuffer(ptr []byte, size int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failNth > 0 && f.calls == f.failNth {
		return -1, assertErr
	}
	id := f.nextID
	f.nextID++
	f.live[id] = true
	return id, nil
}

func (f *fakeRegistrar) UnregisterBuffer(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.live[id] {
		return assertErr
	}
	delete(f.live, id)
	return nil
}

var assertErr = assertError("registrar error")

type assertError string

func (e assertError) Error() string { return string(e) }

func TestRegisteredPoolSlabStrategy(t *testing.T) {
	reg := newFakeRegistrar()
	rp, err := Initialize(reg, 64, 4, StrategySlab)
	require.NoError(t, err)

	a := rp.Acquire()
	b := rp.Acquire()
	require.False(t, a.Empty())
	require.False(t, b.Empty())
	assert.Equal(t, a.ID, b.ID, "slab strategy shares one registration id across slots")

	rp.Shutdown()
	assert.Empty(t, reg.live)
}

func TestRegisteredPoolPerSlotStrategy(t *testing.T) {
	reg := newFakeRegistrar()
	rp, err := Initialize(reg, 64, 4, StrategyPerSlot)
	require.NoError(t, err)

	a := rp.Acquire()
	b := rp.Acquire()
	require.False(t, a.Empty())
	require.False(t, b.Empty())
	assert.NotEqual(t, a.ID, b.ID, "per-slot strategy assigns a distinct id per slot")

	rp.Shutdown()
	assert.Empty(t, reg.live)
}

func TestRegisteredPoolUnwindsOnPartialFailure(t *testing.T) {
	reg := newFakeRegistrar()
	reg.failNth = 3
	_, err := Initialize(reg, 64, 4, StrategyPerSlot)
	require.Error(t, err)
	assert.Empty(t, reg.live, "partial registrations must be unwound on init failure")
}
