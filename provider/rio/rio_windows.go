//go:build windows

// Package rio implements the Windows Registered I/O (RIO) Async I/O
// Provider variant: a process socket's RIO request queue backed by a
// single event-notified completion queue, recv buffers named by
// caller-supplied registered ids, and send buffers copied into a
// provider-owned sendpool before registration, since RIO can only submit
// against memory it has registered.
//
// Grounded on the sibling momentics-hioload-ws example's
// internal/transport/transport_windows.go for the overall shape (raw
// windows.Handle socket, event/overlapped-driven completion loop,
// mutex-guarded per-direction state, Apache-2.0 header) and on
// golang.org/x/sys/windows for every Winsock call; the RIO extension
// function table itself has no Go package in the retrieval pack, so it
// is resolved directly via WSAIoctl in syscalls_windows.go.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package rio

import (
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/momentics/hioload-ioprovider/ioerr"
	"github.com/momentics/hioload-ioprovider/log"
	"github.com/momentics/hioload-ioprovider/provider"
	"github.com/momentics/hioload-ioprovider/sendpool"
)

const (
	sendSlotSize = 64 * 1024
	sendPoolSize = 256
)

type region struct {
	id   int64
	rio  uintptr
	base uintptr
	len  int
}

type requestQueue struct {
	handle uintptr
}

// Provider implements provider.Provider over RIO.
type Provider struct {
	eng *provider.Engine
	fns *functionTable

	mu         sync.Mutex
	cq         uintptr
	eventH     windows.Handle
	queues     map[uintptr]*requestQueue // by socket
	regions    []region
	sendPool   *sendpool.Pool
	sendRegion region
	sendSlots  map[uint64]int // op id -> sendpool slot index, for release on completion
}

// New constructs the RIO provider. RIO itself is resolved in Initialize,
// which needs a live socket to query the extension function table.
func New() *Provider {
	return &Provider{
		eng: provider.NewEngine(provider.Info{
			Platform:                   "windows",
			Name:                       "RIO",
			SupportsBufferRegistration: true,
			SupportsBatching:           false,
			SupportsZeroCopy:           true,
		}),
		queues:    make(map[uintptr]*requestQueue),
		sendSlots: make(map[uint64]int),
	}
}

func (p *Provider) Initialize(queueDepth, maxConcurrent int) error {
	if err := p.eng.Initialize("Initialize"); err != nil {
		return err
	}

	bootstrap, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		p.eng.RevertInitialize()
		return ioerr.Wrap("Initialize", ioerr.CodePlatformNotSupported, err)
	}
	defer windows.Closesocket(bootstrap)

	fns, err := resolveFunctionTable(bootstrap)
	if err != nil {
		p.eng.RevertInitialize()
		return ioerr.Wrap("Initialize", ioerr.CodePlatformNotSupported, err)
	}
	p.fns = fns

	evt, err := windows.CreateEvent(nil, 1 /* manual reset */, 0, nil)
	if err != nil {
		p.eng.RevertInitialize()
		return ioerr.Wrap("Initialize", ioerr.CodeOperationFailed, err)
	}

	notify := rioNotificationCompletion{kind: notificationEvent, eventHandle: evt, eventSelect: 1}
	cq, err := fns.RIOCreateCompletionQueue(uint32(queueDepth), &notify)
	if err != nil {
		windows.CloseHandle(evt)
		p.eng.RevertInitialize()
		return ioerr.Wrap("Initialize", ioerr.CodeOperationFailed, err)
	}

	sp, ok := sendpool.New(sendPoolSize, sendSlotSize)
	if !ok {
		fns.RIOCloseCompletionQueue(cq)
		windows.CloseHandle(evt)
		p.eng.RevertInitialize()
		return ioerr.New("Initialize", ioerr.CodeOperationFailed, "failed to allocate send pool")
	}
	sendBacking := sp.Region()
	sendRioID, err := fns.RIORegisterBuffer(sendBacking)
	if err != nil {
		sp.Shutdown()
		fns.RIOCloseCompletionQueue(cq)
		windows.CloseHandle(evt)
		p.eng.RevertInitialize()
		return ioerr.Wrap("Initialize", ioerr.CodeOperationFailed, err)
	}

	p.mu.Lock()
	p.cq = cq
	p.eventH = evt
	p.sendPool = sp
	p.sendRegion = region{id: -1, rio: sendRioID, base: uintptr(unsafe.Pointer(&sendBacking[0])), len: len(sendBacking)}
	p.mu.Unlock()

	p.eng.SetLimits(queueDepth, maxConcurrent)
	log.Info("RIO provider initialized", "queue_depth", queueDepth, "max_concurrent", maxConcurrent)
	return nil
}

func (p *Provider) Shutdown() error {
	if !p.eng.BeginShutdown() {
		return nil
	}
	p.mu.Lock()
	for _, r := range p.regions {
		p.fns.RIODeregisterBuffer(r.rio)
	}
	p.regions = nil
	if p.sendRegion.rio != 0 {
		p.fns.RIODeregisterBuffer(p.sendRegion.rio)
		p.sendRegion = region{}
	}
	if p.sendPool != nil {
		p.sendPool.Shutdown()
		p.sendPool = nil
	}
	if p.cq != 0 {
		p.fns.RIOCloseCompletionQueue(p.cq)
		p.cq = 0
	}
	if p.eventH != 0 {
		windows.CloseHandle(p.eventH)
		p.eventH = 0
	}
	p.queues = make(map[uintptr]*requestQueue)
	p.sendSlots = make(map[uint64]int)
	p.mu.Unlock()
	p.eng.FinishShutdown()
	log.Info("RIO provider shut down")
	return nil
}

// RegisterBuffer registers ptr with RIO and records it so SendAsync /
// RecvAsync can resolve an application-level []byte back to a
// (bufferId, offset) pair.
func (p *Provider) RegisterBuffer(ptr []byte, size int) (int64, error) {
	if len(ptr) == 0 {
		return -1, ioerr.New("RegisterBuffer", ioerr.CodeInvalidBuffer, "buffer must be non-empty")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fns == nil {
		return -1, ioerr.New("RegisterBuffer", ioerr.CodeNotInitialized, "provider is not initialized")
	}
	rioID, err := p.fns.RIORegisterBuffer(ptr)
	if err != nil {
		return -1, ioerr.Wrap("RegisterBuffer", ioerr.CodeOperationFailed, err)
	}
	id := p.eng.RegisterBuffer(ptr)
	p.regions = append(p.regions, region{id: id, rio: rioID, base: uintptr(unsafe.Pointer(&ptr[0])), len: len(ptr)})
	return id, nil
}

func (p *Provider) UnregisterBuffer(id int64) error {
	if err := p.eng.UnregisterBuffer("UnregisterBuffer", id); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, r := range p.regions {
		if r.id == id {
			p.fns.RIODeregisterBuffer(r.rio)
			p.regions = append(p.regions[:i], p.regions[i+1:]...)
			break
		}
	}
	return nil
}

func (p *Provider) resolveLocked(buf []byte) (rioBuf, bool) {
	if len(buf) == 0 {
		return rioBuf{}, false
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))
	for _, r := range p.regions {
		if addr >= r.base && addr+uintptr(len(buf)) <= r.base+uintptr(r.len) {
			return rioBuf{bufferID: r.rio, offset: uint32(addr - r.base), length: uint32(len(buf))}, true
		}
	}
	return rioBuf{}, false
}

func (p *Provider) requestQueueFor(socket uintptr, maxConcurrent int) (*requestQueue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rq, ok := p.queues[socket]; ok {
		return rq, nil
	}
	depth := uint32(maxConcurrent)
	if depth == 0 {
		depth = 1
	}
	handle, err := p.fns.RIOCreateRequestQueue(windows.Handle(socket), depth, 1, depth, 1, p.cq, p.cq, socket)
	if err != nil {
		return nil, err
	}
	rq := &requestQueue{handle: handle}
	p.queues[socket] = rq
	return rq, nil
}

// RecvAsync submits a recv against a buffer the caller already
// registered (via RegisterBuffer, typically fronted by a
// slab.RegisteredPool using this Provider as its Registrar).
func (p *Provider) RecvAsync(socket uintptr, buffer []byte, requestContext uint64, flags uint32) error {
	if socket == 0 {
		return ioerr.New("RecvAsync", ioerr.CodeInvalidSocket, "socket must be non-zero")
	}
	p.mu.Lock()
	rb, ok := p.resolveLocked(buffer)
	p.mu.Unlock()
	if !ok {
		return ioerr.New("RecvAsync", ioerr.CodeInvalidBuffer, "buffer is not registered with this provider")
	}

	po, err := p.eng.Submit("RecvAsync", provider.OpRecv, socket, buffer, requestContext, -1)
	if err != nil {
		return err
	}
	rq, err := p.requestQueueFor(socket, int(p.eng.Info().MaxConcurrent))
	if err != nil {
		p.eng.Abort(po)
		return ioerr.Wrap("RecvAsync", ioerr.CodeOperationFailed, err)
	}
	if err := p.fns.RIOReceive(rq.handle, &rb, 1, flags, uintptr(po.ID)); err != nil {
		p.eng.Abort(po)
		return ioerr.Wrap("RecvAsync", ioerr.CodeOperationFailed, err)
	}
	return nil
}

// SendAsync copies buffer into a provider-owned send pool slot (RIO
// submissions must name already-registered memory, so the caller's
// buffer cannot be submitted directly) and submits against that slot.
func (p *Provider) SendAsync(socket uintptr, buffer []byte, requestContext uint64, flags uint32) error {
	if socket == 0 {
		return ioerr.New("SendAsync", ioerr.CodeInvalidSocket, "socket must be non-zero")
	}
	if len(buffer) == 0 || len(buffer) > sendSlotSize {
		return ioerr.New("SendAsync", ioerr.CodeInvalidBuffer, "buffer must fit within one send slot")
	}

	p.mu.Lock()
	if p.sendPool == nil {
		p.mu.Unlock()
		return ioerr.New("SendAsync", ioerr.CodeNotInitialized, "provider is not initialized")
	}
	slot := p.sendPool.Acquire()
	if slot.Empty() {
		p.mu.Unlock()
		return ioerr.New("SendAsync", ioerr.CodeOperationFailed, "send pool exhausted")
	}
	owned := slot.Data[:len(buffer)]
	copy(owned, buffer)

	if p.sendRegion.rio == 0 {
		p.mu.Unlock()
		p.sendPool.Release(slot.Index)
		return ioerr.New("SendAsync", ioerr.CodeNotInitialized, "send pool is not registered")
	}
	rb := rioBuf{
		bufferID: p.sendRegion.rio,
		offset:   uint32(uintptr(unsafe.Pointer(&owned[0])) - p.sendRegion.base),
		length:   uint32(len(owned)),
	}
	p.mu.Unlock()

	po, err := p.eng.Submit("SendAsync", provider.OpSend, socket, owned, requestContext, -1)
	if err != nil {
		p.sendPool.Release(slot.Index)
		return err
	}
	po.Owned = owned

	rq, err := p.requestQueueFor(socket, int(p.eng.Info().MaxConcurrent))
	if err != nil {
		p.eng.Abort(po)
		p.sendPool.Release(slot.Index)
		return ioerr.Wrap("SendAsync", ioerr.CodeOperationFailed, err)
	}

	p.mu.Lock()
	p.sendSlots[po.ID] = slot.Index
	p.mu.Unlock()

	if err := p.fns.RIOSend(rq.handle, &rb, 1, flags, uintptr(po.ID)); err != nil {
		p.mu.Lock()
		delete(p.sendSlots, po.ID)
		p.mu.Unlock()
		p.eng.Abort(po)
		p.sendPool.Release(slot.Index)
		return ioerr.Wrap("SendAsync", ioerr.CodeOperationFailed, err)
	}
	return nil
}

// FlushRequests is a no-op: RIOSend/RIOReceive submit to the kernel
// immediately, there is nothing batched to commit.
func (p *Provider) FlushRequests() error { return nil }

// ProcessCompletions drains the shared completion queue. Drain is
// serialized: a losing caller returns 0 immediately rather than
// blocking on the notification event.
func (p *Provider) ProcessCompletions(entries []provider.CompletionEntry, timeoutMs int) (int, error) {
	if !p.eng.TryAcquireDrain() {
		return 0, nil
	}
	defer p.eng.ReleaseDrain()

	if len(entries) == 0 {
		return 0, nil
	}

	p.mu.Lock()
	cq, evt, fns := p.cq, p.eventH, p.fns
	p.mu.Unlock()
	if cq == 0 || fns == nil {
		return -1, ioerr.New("ProcessCompletions", ioerr.CodeNotInitialized, "provider is not initialized")
	}

	fns.RIONotify(cq)
	wait := uint32(windows.INFINITE)
	if timeoutMs >= 0 {
		wait = uint32(timeoutMs)
	}
	waitResult, err := windows.WaitForSingleObject(evt, wait)
	if err != nil {
		return -1, ioerr.Wrap("ProcessCompletions", ioerr.CodeOperationFailed, err)
	}
	if waitResult == uint32(windows.WAIT_TIMEOUT) {
		return 0, nil
	}
	windows.ResetEvent(evt)

	buf := make([]rioResult, len(entries))
	count, err := fns.RIODequeueCompletion(cq, buf)
	if err != nil {
		return -1, ioerr.Wrap("ProcessCompletions", ioerr.CodeOperationFailed, err)
	}

	n := 0
	for i := uint32(0); i < count; i++ {
		r := buf[i]
		opID := uint64(r.requestContext)
		var po *provider.PendingOperation
		var ok bool
		if r.status != 0 {
			po, ok = p.eng.CompleteWithError(opID)
		} else {
			po, ok = p.eng.Complete(opID)
		}
		if !ok {
			continue
		}
		if po.Kind == provider.OpSend {
			p.mu.Lock()
			if idx, has := p.sendSlots[opID]; has {
				delete(p.sendSlots, opID)
				p.mu.Unlock()
				p.sendPool.Release(idx)
			} else {
				p.mu.Unlock()
			}
		}
		ce := provider.CompletionEntry{
			RequestContext: po.RequestContext,
			Kind:           po.Kind,
			Result:         int64(r.bytesTransferred),
			TimestampNs:    time.Now().UnixNano(),
		}
		if r.status != 0 {
			ce.Result = -1
			ce.OSError = int(r.status)
		}
		entries[n] = ce
		n++
	}
	return n, nil
}

func (p *Provider) Info() provider.Info   { return p.eng.Info() }
func (p *Provider) Stats() provider.Stats { return p.eng.Stats() }

var _ provider.Provider = (*Provider)(nil)
