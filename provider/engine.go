// File: provider/engine.go
// Engine implements the bookkeeping shared by every Provider variant:
// the state machine, the pending-operation table, per-socket request
// queues, registered-buffer refcounting, and cumulative stats. Variants
// embed an *Engine and call into it around their platform-specific
// kernel submission and completion-drain code.
package provider

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-ioprovider/ioerr"
)

type lifecycleState int32

const (
	stateUninitialized lifecycleState = iota
	stateInitialized
	stateShuttingDown
)

type registration struct {
	ptr      []byte
	refCount int
}

// Engine is the shared completion-engine bookkeeping embedded by each
// Provider variant.
type Engine struct {
	info Info

	st lifecycleState32

	mu           sync.Mutex
	pending      map[uint64]*PendingOperation
	socketQueues map[uintptr]*queue.Queue // FIFO of *PendingOperation per socket, submission order
	registered   map[int64]*registration
	nextBufferID int64

	nextOpID atomic.Uint64

	notifyMu sync.Mutex // serializes ProcessCompletions on RIO/io_uring variants

	stats Stats
}

// lifecycleState32 wraps atomic.Int32 so zero value is a valid
// "uninitialized" state without an explicit constructor call.
type lifecycleState32 struct{ v atomic.Int32 }

func (s *lifecycleState32) load() lifecycleState { return lifecycleState(s.v.Load()) }
func (s *lifecycleState32) cas(from, to lifecycleState) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}

// NewEngine constructs an Engine carrying the variant's static Info.
func NewEngine(info Info) *Engine {
	return &Engine{
		info:         info,
		pending:      make(map[uint64]*PendingOperation),
		socketQueues: make(map[uintptr]*queue.Queue),
		registered:   make(map[int64]*registration),
	}
}

// Initialize performs the uninitialized -> initialized transition.
func (e *Engine) Initialize(op string) error {
	if !e.st.cas(stateUninitialized, stateInitialized) {
		return ioerr.New(op, ioerr.CodeAlreadyInitialized, "provider already initialized")
	}
	return nil
}

// RevertInitialize undoes a successful Initialize when a later
// platform-specific setup step fails, so the provider ends up
// uninitialized rather than half-initialized. Only valid to call before
// any Submit has succeeded.
func (e *Engine) RevertInitialize() { e.st.v.Store(int32(stateUninitialized)) }

// SetLimits records the caller's requested queue depth and max
// concurrent request count for Info()/diagnostics purposes.
func (e *Engine) SetLimits(queueDepth, maxConcurrent int) {
	e.info.MaxQueueDepth = queueDepth
	e.info.MaxConcurrent = maxConcurrent
}

// IsInitialized reports whether the engine currently accepts submits.
func (e *Engine) IsInitialized() bool { return e.st.load() == stateInitialized }

// IsShuttingDown reports whether Shutdown has begun.
func (e *Engine) IsShuttingDown() bool { return e.st.load() == stateShuttingDown }

// BeginShutdown performs the initialized -> shutting-down transition via
// a single CAS. Returns false if the engine was not in the initialized
// state (Shutdown is idempotent; the caller should treat false as "no
// work to do").
func (e *Engine) BeginShutdown() bool {
	return e.st.cas(stateInitialized, stateShuttingDown)
}

// FinishShutdown drains the pending table (counting every entry as
// dropped-at-shutdown), clears registered buffers, and performs the
// shutting-down -> uninitialized transition.
func (e *Engine) FinishShutdown() {
	e.mu.Lock()
	dropped := uint64(len(e.pending))
	e.pending = make(map[uint64]*PendingOperation)
	e.socketQueues = make(map[uintptr]*queue.Queue)
	e.registered = make(map[int64]*registration)
	e.stats.DroppedAtShutdown += dropped
	e.stats.Pending = 0
	e.mu.Unlock()
	e.st.v.Store(int32(stateUninitialized))
}

func (e *Engine) socketQueue(socket uintptr) *queue.Queue {
	q, ok := e.socketQueues[socket]
	if !ok {
		q = queue.New()
		e.socketQueues[socket] = q
	}
	return q
}

// Submit allocates a PendingOperation and inserts it into the pending
// table and the socket's request queue, verifying the engine is
// initialized (not shutting down). bufferID is -1 when no registration
// is held for the op's duration.
func (e *Engine) Submit(op string, kind OperationKind, socket uintptr, buf []byte, requestContext uint64, bufferID int64) (*PendingOperation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.st.load() != stateInitialized {
		return nil, ioerr.New(op, ioerr.CodeNotInitialized, "provider is not initialized")
	}

	id := e.nextOpID.Add(1)
	po := &PendingOperation{
		ID:             id,
		RequestContext: requestContext,
		Kind:           kind,
		Socket:         socket,
		Buffer:         buf,
		BufferID:       bufferID,
	}
	e.pending[id] = po
	e.socketQueue(socket).Add(po)
	if bufferID != -1 {
		if reg, ok := e.registered[bufferID]; ok {
			reg.refCount++
		}
	}
	e.stats.TotalSubmissions++
	e.stats.Pending++
	return po, nil
}

// Abort undoes a Submit that failed to reach the kernel: removes the
// pending entry, decrements Pending, increments ErrorCount, and releases
// any transient buffer reference.
func (e *Engine) Abort(po *PendingOperation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.abortLocked(po)
}

func (e *Engine) abortLocked(po *PendingOperation) {
	if _, ok := e.pending[po.ID]; !ok {
		return
	}
	delete(e.pending, po.ID)
	e.removeFromSocketQueueLocked(po)
	if po.BufferID != -1 {
		if reg, ok := e.registered[po.BufferID]; ok && reg.refCount > 0 {
			reg.refCount--
		}
	}
	if e.stats.Pending > 0 {
		e.stats.Pending--
	}
	e.stats.ErrorCount++
}

func (e *Engine) removeFromSocketQueueLocked(po *PendingOperation) {
	q, ok := e.socketQueues[po.Socket]
	if !ok {
		return
	}
	n := q.Length()
	for i := 0; i < n; i++ {
		item := q.Remove()
		if item.(*PendingOperation).ID == po.ID {
			continue
		}
		q.Add(item)
	}
}

// Complete removes opID from the pending table (and its socket queue),
// decrements Pending, bumps TotalCompletions, and releases any
// transient buffer reference. Returns (nil, false) if opID is unknown
// (already completed or cancelled by Shutdown).
func (e *Engine) Complete(opID uint64) (*PendingOperation, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	po, ok := e.pending[opID]
	if !ok {
		return nil, false
	}
	delete(e.pending, opID)
	e.removeFromSocketQueueLocked(po)
	if po.BufferID != -1 {
		if reg, ok := e.registered[po.BufferID]; ok && reg.refCount > 0 {
			reg.refCount--
		}
	}
	if e.stats.Pending > 0 {
		e.stats.Pending--
	}
	e.stats.TotalCompletions++
	return po, true
}

// CompleteWithError is Complete plus an ErrorCount bump, for completions
// whose result indicates failure.
func (e *Engine) CompleteWithError(opID uint64) (*PendingOperation, bool) {
	po, ok := e.Complete(opID)
	if ok {
		e.mu.Lock()
		e.stats.ErrorCount++
		e.mu.Unlock()
	}
	return po, ok
}

// RegisterBuffer records a new registration and returns its id.
func (e *Engine) RegisterBuffer(ptr []byte) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextBufferID
	e.nextBufferID++
	e.registered[id] = &registration{ptr: ptr}
	return id
}

// UnregisterBuffer removes a registration, refusing (InvalidParameter)
// if the id is unknown or still cited by a pending operation.
func (e *Engine) UnregisterBuffer(op string, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	reg, ok := e.registered[id]
	if !ok {
		return ioerr.New(op, ioerr.CodeInvalidParameter, "unknown registered buffer id")
	}
	if reg.refCount > 0 {
		return ioerr.New(op, ioerr.CodeInvalidParameter, "buffer id still referenced by a pending operation")
	}
	delete(e.registered, id)
	return nil
}

// TryAcquireDrain attempts to win the single-drainer race used by the
// RIO and io_uring variants. Callers that lose must return 0
// immediately rather than blocking, so the runtime naturally fans
// workers to other work.
func (e *Engine) TryAcquireDrain() bool { return e.notifyMu.TryLock() }

// ReleaseDrain releases the drain serialization mutex.
func (e *Engine) ReleaseDrain() { e.notifyMu.Unlock() }

// Stats returns a snapshot of cumulative counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Info returns the variant's static descriptor.
func (e *Engine) Info() Info { return e.info }

// PendingCount returns the number of in-flight operations (test/debug
// helper; not part of the Provider contract).
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}
