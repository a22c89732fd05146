//go:build linux

// Package iouring implements the Linux io_uring Async I/O Provider
// variant: pre-registered fixed buffers, batched SQE submission flushed
// by a single io_uring_enter syscall, CQE draining serialized across
// callers.
//
// Grounded on github.com/pawelgaczynski/giouring, the real io_uring
// binding demonstrated by the ianic-xnet aio-loop reference example
// (other_examples/6f76b9ed_ianic-xnet__aio-loop.go.go): ring creation,
// GetSQE/PrepareSend/PrepareRecv submission, and the
// SubmitAndWait/WaitCQEs/PeekBatchCQE/CQAdvance drain sequence this
// provider's submit/FlushRequests/ProcessCompletions mirror.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package iouring

import (
	"sync"
	"unsafe"

	"github.com/pawelgaczynski/giouring"

	"github.com/momentics/hioload-ioprovider/ioerr"
	"github.com/momentics/hioload-ioprovider/log"
	"github.com/momentics/hioload-ioprovider/provider"
)

const maxCQEBatch = 128

// Provider implements provider.Provider over a single io_uring instance
// with fixed (pre-registered) buffers.
type Provider struct {
	eng *provider.Engine

	mu   sync.Mutex // guards ring submission; separate from eng's drain lock
	ring *giouring.Ring

	fixedBufs []fixedBuf
}

type fixedBuf struct {
	iov []byte
}

// New constructs the io_uring provider. The ring itself is created in
// Initialize so construction never fails.
func New() *Provider {
	return &Provider{
		eng: provider.NewEngine(provider.Info{
			Platform:                   "linux",
			Name:                       "io_uring",
			SupportsBufferRegistration: true,
			SupportsBatching:           true,
			SupportsZeroCopy:           true,
		}),
	}
}

func (p *Provider) Initialize(queueDepth, maxConcurrent int) error {
	if err := p.eng.Initialize("Initialize"); err != nil {
		return err
	}

	ring, err := giouring.CreateRing(uint32(queueDepth))
	if err != nil {
		p.eng.RevertInitialize()
		return ioerr.Wrap("Initialize", ioerr.CodePlatformNotSupported, err)
	}
	p.eng.SetLimits(queueDepth, maxConcurrent)
	p.ring = ring
	log.Info("io_uring provider initialized", "queue_depth", queueDepth, "max_concurrent", maxConcurrent)
	return nil
}

func (p *Provider) Shutdown() error {
	if !p.eng.BeginShutdown() {
		return nil
	}
	p.mu.Lock()
	if p.ring != nil {
		if len(p.fixedBufs) > 0 {
			_ = p.ring.UnregisterBuffers()
		}
		p.ring.QueueExit()
		p.ring = nil
	}
	p.fixedBufs = nil
	p.mu.Unlock()
	p.eng.FinishShutdown()
	log.Info("io_uring provider shut down")
	return nil
}

// RegisterBuffer appends ptr to the ring's fixed-buffer table,
// re-registers that table with the ring, and returns the
// registered-buffer id the Engine assigns to ptr. SendAsync and
// RecvAsync prepare plain send/recv SQEs: they ignore flags and do not
// cite a fixed-buffer index.
func (p *Provider) RegisterBuffer(ptr []byte, size int) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ring == nil {
		return -1, ioerr.New("RegisterBuffer", ioerr.CodeNotInitialized, "provider is not initialized")
	}
	idx := len(p.fixedBufs)
	p.fixedBufs = append(p.fixedBufs, fixedBuf{iov: ptr})
	if err := p.ring.RegisterBuffers(iovecsOf(p.fixedBufs)); err != nil {
		p.fixedBufs = p.fixedBufs[:idx]
		return -1, ioerr.Wrap("RegisterBuffer", ioerr.CodeOperationFailed, err)
	}
	return p.eng.RegisterBuffer(ptr), nil
}

func (p *Provider) UnregisterBuffer(id int64) error {
	return p.eng.UnregisterBuffer("UnregisterBuffer", id)
}

func (p *Provider) SendAsync(socket uintptr, buffer []byte, requestContext uint64, flags uint32) error {
	return p.submit(provider.OpSend, socket, buffer, requestContext)
}

func (p *Provider) RecvAsync(socket uintptr, buffer []byte, requestContext uint64, flags uint32) error {
	return p.submit(provider.OpRecv, socket, buffer, requestContext)
}

func (p *Provider) submit(kind provider.OperationKind, socket uintptr, buffer []byte, requestContext uint64) error {
	op := "SendAsync"
	if kind == provider.OpRecv {
		op = "RecvAsync"
	}
	if socket == 0 {
		return ioerr.New(op, ioerr.CodeInvalidSocket, "socket must be non-zero")
	}
	if len(buffer) == 0 {
		return ioerr.New(op, ioerr.CodeInvalidBuffer, "buffer must be non-empty")
	}

	po, err := p.eng.Submit(op, kind, socket, buffer, requestContext, -1)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.ring == nil {
		p.mu.Unlock()
		p.eng.Abort(po)
		return ioerr.New(op, ioerr.CodeNotInitialized, "provider is not initialized")
	}
	sqe := p.ring.GetSQE()
	if sqe == nil {
		p.mu.Unlock()
		p.eng.Abort(po)
		return ioerr.New(op, ioerr.CodeOperationFailed, "submission queue is full")
	}
	fd := int(socket)
	ptr := uintptr(unsafe.Pointer(&buffer[0]))
	switch kind {
	case provider.OpRecv:
		sqe.PrepareRecv(fd, ptr, uint32(len(buffer)), 0)
	default:
		sqe.PrepareSend(fd, ptr, uint32(len(buffer)), 0)
	}
	sqe.UserData = po.ID
	p.mu.Unlock()
	return nil
}

// FlushRequests submits every prepared SQE with a single io_uring_enter
// syscall.
func (p *Provider) FlushRequests() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ring == nil {
		return ioerr.New("FlushRequests", ioerr.CodeNotInitialized, "provider is not initialized")
	}
	if _, err := p.ring.SubmitAndWait(0); err != nil {
		return ioerr.Wrap("FlushRequests", ioerr.CodeOperationFailed, err)
	}
	return nil
}

// ProcessCompletions drains CQEs. Drain is serialized across callers:
// a losing caller yields immediately and returns zero.
func (p *Provider) ProcessCompletions(entries []provider.CompletionEntry, timeoutMs int) (int, error) {
	if !p.eng.TryAcquireDrain() {
		return 0, nil
	}
	defer p.eng.ReleaseDrain()

	if len(entries) == 0 {
		return 0, nil
	}

	p.mu.Lock()
	ring := p.ring
	p.mu.Unlock()
	if ring == nil {
		return -1, ioerr.New("ProcessCompletions", ioerr.CodeNotInitialized, "provider is not initialized")
	}

	want := len(entries)
	if want > maxCQEBatch {
		want = maxCQEBatch
	}
	cqes := make([]*giouring.CompletionQueueEvent, want)
	peeked, err := drainCQEs(ring, cqes, timeoutMs)
	if err != nil {
		return -1, ioerr.Wrap("ProcessCompletions", ioerr.CodeOperationFailed, err)
	}

	n := 0
	for i := uint32(0); i < peeked; i++ {
		cqe := cqes[i]
		var po *provider.PendingOperation
		var ok bool
		if cqe.Res < 0 {
			po, ok = p.eng.CompleteWithError(cqe.UserData)
		} else {
			po, ok = p.eng.Complete(cqe.UserData)
		}
		if !ok {
			continue // cancelled by Shutdown between submit and drain
		}
		ce := provider.CompletionEntry{RequestContext: po.RequestContext, Kind: po.Kind, Result: int64(cqe.Res)}
		if cqe.Res < 0 {
			ce.OSError = int(-cqe.Res)
		}
		entries[n] = ce
		n++
	}
	ring.CQAdvance(peeked)
	return n, nil
}

func (p *Provider) Info() provider.Info   { return p.eng.Info() }
func (p *Provider) Stats() provider.Stats { return p.eng.Stats() }

var _ provider.Provider = (*Provider)(nil)
