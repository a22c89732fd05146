// File: slab/registered.go
// Registered Buffer Pool (C2): extends Pool with kernel buffer
// registration, so submissions can name a slot by registered id instead
// of re-pinning memory on every operation.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package slab

import (
	"errors"
	"sync"
)

var errInvalidSize = errors.New("slab: invalid pool or slot size")

// BufferID is the opaque, non-negative id a provider assigns to a
// registered memory region. -1 means "not registered / pool exhausted".
type BufferID int64

// Unregistered is the sentinel BufferID for "not registered".
const Unregistered BufferID = -1

// Strategy selects how a RegisteredPool registers its slab with the
// kernel completion API.
type Strategy int

const (
	// StrategySlab issues a single registration call for the whole
	// slab (Windows RIO); slots are named by (slabID, offset, length).
	StrategySlab Strategy = iota
	// StrategyPerSlot registers each slot's memory individually
	// (io_uring fixed buffers); slots are named by slot index.
	StrategyPerSlot
)

// Registrar is the subset of the Async I/O Provider contract a
// RegisteredPool needs: register/unregister a raw memory region.
type Registrar interface {
	RegisterBuffer(ptr []byte, size int) (int64, error)
	UnregisterBuffer(id int64) error
}

// RegisteredSlot pairs a Slot with the id needed to cite it in a kernel
// submission.
type RegisteredSlot struct {
	Slot
	ID BufferID
}

// RegisteredPool wraps a Pool and records the kernel registration(s)
// needed to name its slots in zero-copy submissions.
type RegisteredPool struct {
	mu       sync.Mutex
	pool     *Pool
	provider Registrar
	strategy Strategy

	slabID    BufferID            // valid when strategy == StrategySlab
	perSlotID map[int]BufferID    // valid when strategy == StrategyPerSlot
}

// Initialize allocates the underlying Pool and registers it with
// provider per strategy. On any registration failure it unwinds every
// partial registration performed so far and returns the error.
func Initialize(provider Registrar, slotSize, poolSize int, strategy Strategy) (*RegisteredPool, error) {
	pool, ok := NewPool(poolSize, slotSize)
	if !ok {
		return nil, errInvalidSize
	}

	rp := &RegisteredPool{
		pool:      pool,
		provider:  provider,
		strategy:  strategy,
		perSlotID: make(map[int]BufferID),
		slabID:    Unregistered,
	}

	switch strategy {
	case StrategySlab:
		id, err := provider.RegisterBuffer(pool.raw[pool.base:pool.base+poolSize*slotSize], poolSize*slotSize)
		if err != nil {
			pool.Shutdown()
			return nil, err
		}
		rp.slabID = BufferID(id)
	case StrategyPerSlot:
		for i := 0; i < poolSize; i++ {
			slot := pool.slotAt(i)
			id, err := provider.RegisterBuffer(slot.Data, slot.Capacity)
			if err != nil {
				rp.unwindLocked()
				pool.Shutdown()
				return nil, err
			}
			rp.perSlotID[i] = BufferID(id)
		}
	}
	return rp, nil
}

func (rp *RegisteredPool) unwindLocked() {
	for idx, id := range rp.perSlotID {
		_ = rp.provider.UnregisterBuffer(int64(id))
		delete(rp.perSlotID, idx)
	}
}

// Acquire returns a free slot plus the BufferID needed to name it in a
// kernel submission. Returns the exhaustion sentinel when the pool is
// empty (Slot.Empty() == true, ID == Unregistered).
func (rp *RegisteredPool) Acquire() RegisteredSlot {
	slot := rp.pool.Acquire()
	if slot.Empty() {
		return RegisteredSlot{Slot: slot, ID: Unregistered}
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	switch rp.strategy {
	case StrategySlab:
		return RegisteredSlot{Slot: slot, ID: rp.slabID}
	default:
		return RegisteredSlot{Slot: slot, ID: rp.perSlotID[slot.Index]}
	}
}

// Release returns the slot to the free list. It does not deregister the
// slot's kernel buffer — registration lives for the pool's lifetime.
func (rp *RegisteredPool) Release(idx int) { rp.pool.Release(idx) }

// Shutdown deregisters every live registration, then frees the slab.
func (rp *RegisteredPool) Shutdown() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	switch rp.strategy {
	case StrategySlab:
		if rp.slabID != Unregistered {
			_ = rp.provider.UnregisterBuffer(int64(rp.slabID))
			rp.slabID = Unregistered
		}
	case StrategyPerSlot:
		rp.unwindLocked()
	}
	rp.pool.Shutdown()
}

// SlotSize returns the fixed per-slot byte capacity.
func (rp *RegisteredPool) SlotSize() int { return rp.pool.SlotSize() }

// PoolSize returns the total slot count.
func (rp *RegisteredPool) PoolSize() int { return rp.pool.PoolSize() }

// FreeCount returns the number of currently unallocated slots.
func (rp *RegisteredPool) FreeCount() int { return rp.pool.FreeCount() }
