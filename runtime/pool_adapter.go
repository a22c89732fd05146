// File: runtime/pool_adapter.go
// recvPool unifies slab.RegisteredPool (RIO, io_uring) and a plain
// slab.Pool (the readiness adapter, which needs no kernel registration)
// behind one surface so the worker loops don't care which provider
// backs them.
package runtime

import "github.com/momentics/hioload-ioprovider/slab"

type recvPool interface {
	Acquire() (data []byte, bufferID int64, index int, ok bool)
	Release(idx int)
	SlotSize() int
	PoolSize() int
	Shutdown()
}

type registeredRecvPool struct{ rp *slab.RegisteredPool }

func (p *registeredRecvPool) Acquire() ([]byte, int64, int, bool) {
	s := p.rp.Acquire()
	if s.Empty() {
		return nil, -1, -1, false
	}
	return s.Data, int64(s.ID), s.Index, true
}
func (p *registeredRecvPool) Release(idx int)  { p.rp.Release(idx) }
func (p *registeredRecvPool) SlotSize() int    { return p.rp.SlotSize() }
func (p *registeredRecvPool) PoolSize() int    { return p.rp.PoolSize() }
func (p *registeredRecvPool) Shutdown()        { p.rp.Shutdown() }

type plainRecvPool struct{ pool *slab.Pool }

func (p *plainRecvPool) Acquire() ([]byte, int64, int, bool) {
	s := p.pool.Acquire()
	if s.Empty() {
		return nil, -1, -1, false
	}
	return s.Data, -1, s.Index, true
}
func (p *plainRecvPool) Release(idx int) { p.pool.Release(idx) }
func (p *plainRecvPool) SlotSize() int   { return p.pool.SlotSize() }
func (p *plainRecvPool) PoolSize() int   { return p.pool.PoolSize() }
func (p *plainRecvPool) Shutdown()       { p.pool.Shutdown() }
