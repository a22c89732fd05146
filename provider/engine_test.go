package provider

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/momentics/hioload-ioprovider/ioerr"
)

func TestEngine_InitializeLifecycle(t *testing.T) {
	e := NewEngine(Info{Platform: "test"})
	assert.False(t, e.IsInitialized())
	assert.NoError(t, e.Initialize("Initialize"))
	assert.True(t, e.IsInitialized())

	err := e.Initialize("Initialize")
	assert.Error(t, err)
	assert.Equal(t, ioerr.CodeAlreadyInitialized, ioerr.CodeOf(err))

	assert.True(t, e.BeginShutdown())
	assert.True(t, e.IsShuttingDown())
	e.FinishShutdown()
	assert.False(t, e.IsInitialized())
}

func TestEngine_SubmitBeforeInitializeFails(t *testing.T) {
	e := NewEngine(Info{})
	_, err := e.Submit("RecvAsync", OpRecv, 1, []byte{1}, 1, -1)
	assert.Error(t, err)
}

func TestEngine_CompleteUnknownOpReturnsFalse(t *testing.T) {
	e := NewEngine(Info{})
	require := assert.New(t)
	require.NoError(e.Initialize("Initialize"))
	_, ok := e.Complete(12345)
	require.False(ok)
}

func TestEngine_RegisteredBufferRefcountBlocksUnregister(t *testing.T) {
	e := NewEngine(Info{})
	assert.NoError(t, e.Initialize("Initialize"))

	id := e.RegisterBuffer(make([]byte, 16))
	po, err := e.Submit("RecvAsync", OpRecv, 1, make([]byte, 16), 7, id)
	assert.NoError(t, err)

	err = e.UnregisterBuffer("UnregisterBuffer", id)
	assert.Error(t, err, "must refuse while a pending op cites the buffer")

	_, ok := e.Complete(po.ID)
	assert.True(t, ok)

	assert.NoError(t, e.UnregisterBuffer("UnregisterBuffer", id))
}

func TestEngine_UnregisterUnknownIDFails(t *testing.T) {
	e := NewEngine(Info{})
	assert.NoError(t, e.Initialize("Initialize"))
	err := e.UnregisterBuffer("UnregisterBuffer", 999)
	assert.Error(t, err)
}

// TestEngine_ConcurrentSubmitCompleteExactlyOnce drives 8 goroutines x
// 1000 submit+complete cycles against one Engine and checks every
// completion is observed exactly once with zero pending left over.
func TestEngine_ConcurrentSubmitCompleteExactlyOnce(t *testing.T) {
	const goroutines = 8
	const perGoroutine = 1000

	e := NewEngine(Info{})
	assert.NoError(t, e.Initialize("Initialize"))

	var totalCompleted atomic.Int64
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				po, err := e.Submit("RecvAsync", OpRecv, uintptr(g+1), []byte{byte(i)}, uint64(g*perGoroutine+i), -1)
				if err != nil {
					continue
				}
				if _, ok := e.Complete(po.ID); ok {
					totalCompleted.Add(1)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*perGoroutine), totalCompleted.Load())
	assert.Equal(t, 0, e.PendingCount())
}

func TestEngine_AbortReleasesPendingSlot(t *testing.T) {
	e := NewEngine(Info{})
	assert.NoError(t, e.Initialize("Initialize"))
	po, err := e.Submit("SendAsync", OpSend, 1, []byte{1}, 1, -1)
	assert.NoError(t, err)
	e.Abort(po)
	assert.Equal(t, 0, e.PendingCount())
	_, ok := e.Complete(po.ID)
	assert.False(t, ok)
}

func TestEngine_DrainSerialization(t *testing.T) {
	e := NewEngine(Info{})
	assert.True(t, e.TryAcquireDrain())
	assert.False(t, e.TryAcquireDrain(), "a second caller must not win the drain race")
	e.ReleaseDrain()
	assert.True(t, e.TryAcquireDrain())
	e.ReleaseDrain()
}
