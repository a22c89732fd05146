// Package sendpool implements the Send Buffer Pool (C3): a slab used by
// completion-style providers (chiefly Windows RIO) that must copy
// application payloads into stable memory before submission.
//
// The send pool is not a process-wide singleton: each Pool is an
// independent instance. The Windows RIO provider creates and owns one in
// Initialize and frees it in Shutdown, so multiple providers in one
// process (and test harnesses) never share mutable state.
// runtime.Server does not use this package; it keeps its own slab.Pool
// for sends.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package sendpool

import "github.com/momentics/hioload-ioprovider/slab"

// Pool is an instance-owned send buffer slab. Acquire/Release are O(1)
// under the underlying slab.Pool mutex; slot memory is stable for the
// pool's lifetime so pointer arithmetic on an acquired Slot needs no
// additional locking.
type Pool struct {
	slab *slab.Pool
}

// New allocates a send pool of poolSize slots of slotSize bytes.
func New(poolSize, slotSize int) (*Pool, bool) {
	s, ok := slab.NewPool(poolSize, slotSize)
	if !ok {
		return nil, false
	}
	return &Pool{slab: s}, true
}

// Acquire returns a free send slot, or the exhaustion sentinel
// (slot.Empty()) if the pool is currently fully checked out.
func (p *Pool) Acquire() slab.Slot { return p.slab.Acquire() }

// Release returns a send slot to the pool by index.
func (p *Pool) Release(idx int) { p.slab.Release(idx) }

// Region returns the full backing slab as one contiguous slice, for
// providers that must register the whole pool with a kernel API in one
// call (Windows RIO).
func (p *Pool) Region() []byte { return p.slab.Region() }

// SlotSize returns the fixed per-slot byte capacity.
func (p *Pool) SlotSize() int { return p.slab.SlotSize() }

// PoolSize returns the total slot count.
func (p *Pool) PoolSize() int { return p.slab.PoolSize() }

// FreeCount returns the number of currently unallocated slots.
func (p *Pool) FreeCount() int { return p.slab.FreeCount() }

// Shutdown releases the backing slab.
func (p *Pool) Shutdown() { p.slab.Shutdown() }
