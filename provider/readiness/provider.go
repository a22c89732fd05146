package readiness

import (
	"sync"

	"github.com/momentics/hioload-ioprovider/ioerr"
	"github.com/momentics/hioload-ioprovider/log"
	"github.com/momentics/hioload-ioprovider/provider"
)

// Provider implements provider.Provider over an OS readiness primitive
// (epoll on Linux, kqueue on Darwin). It declares no buffer
// registration, no batching, and no zero-copy: capability flags that
// the spec requires this variant to report honestly.
type Provider struct {
	eng  *provider.Engine
	poll poller

	mu           sync.Mutex
	recvBySocket map[uintptr]*provider.PendingOperation
	sendBySocket map[uintptr]*provider.PendingOperation
}

// New constructs the readiness provider for the current platform
// (epoll on Linux, kqueue on Darwin, unavailable elsewhere, including
// the BSDs).
func New() *Provider {
	info := provider.Info{
		Platform:                   platformTag,
		Name:                       platformName,
		SupportsBufferRegistration: false,
		SupportsBatching:           false,
		SupportsZeroCopy:           false,
	}
	return &Provider{
		eng:          provider.NewEngine(info),
		recvBySocket: make(map[uintptr]*provider.PendingOperation),
		sendBySocket: make(map[uintptr]*provider.PendingOperation),
	}
}

func (p *Provider) Initialize(queueDepth, maxConcurrent int) error {
	if err := p.eng.Initialize("Initialize"); err != nil {
		return err
	}
	poll, err := newPoller()
	if err != nil {
		p.eng.RevertInitialize()
		return ioerr.Wrap("Initialize", ioerr.CodePlatformNotSupported, err)
	}
	p.eng.SetLimits(queueDepth, maxConcurrent)
	p.poll = poll
	log.Info("readiness provider initialized", "platform", platformTag, "queue_depth", queueDepth)
	return nil
}

func (p *Provider) Shutdown() error {
	if !p.eng.BeginShutdown() {
		return nil
	}
	if p.poll != nil {
		_ = p.poll.Close()
	}
	p.mu.Lock()
	p.recvBySocket = make(map[uintptr]*provider.PendingOperation)
	p.sendBySocket = make(map[uintptr]*provider.PendingOperation)
	p.mu.Unlock()
	p.eng.FinishShutdown()
	log.Info("readiness provider shut down")
	return nil
}

func (p *Provider) RegisterBuffer(ptr []byte, size int) (int64, error) { return -1, nil }

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
	op := opName(kind)
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

	fd := int(socket)
	var regErr error
	switch kind {
	case provider.OpRecv:
		regErr = p.poll.RegisterRead(fd)
	default:
		regErr = p.poll.RegisterWrite(fd)
	}
	if regErr != nil {
		p.eng.Abort(po)
		return ioerr.Wrap(op, ioerr.CodeOperationFailed, regErr)
	}

	p.mu.Lock()
	if kind == provider.OpRecv {
		p.recvBySocket[socket] = po
	} else {
		p.sendBySocket[socket] = po
	}
	p.mu.Unlock()
	return nil
}

func opName(kind provider.OperationKind) string {
	switch kind {
	case provider.OpRecv:
		return "RecvAsync"
	case provider.OpSend:
		return "SendAsync"
	default:
		return "SubmitAsync"
	}
}

// FlushRequests is a no-op: the readiness adapter submits nothing ahead
// of the kernel, so there is nothing to flush.
func (p *Provider) FlushRequests() error { return nil }

// ProcessCompletions polls for readiness and, for each ready socket,
// performs the actual read/write and reports the true transferred byte
// count (per the spec's resolved open question (a)).
func (p *Provider) ProcessCompletions(entries []provider.CompletionEntry, timeoutMs int) (int, error) {
	if !p.eng.IsInitialized() && !p.eng.IsShuttingDown() {
		return -1, ioerr.New("ProcessCompletions", ioerr.CodeNotInitialized, "provider is not initialized")
	}
	if len(entries) == 0 {
		return 0, nil
	}

	ready, err := p.poll.Wait(timeoutMs)
	if err != nil {
		return -1, ioerr.Wrap("ProcessCompletions", ioerr.CodeOperationFailed, err)
	}

	n := 0
	for _, ev := range ready {
		if n >= len(entries) {
			break
		}
		socket := uintptr(ev.FD)

		if ev.Readable {
			if ce, ok := p.deliverRecv(socket, ev.Errored); ok {
				entries[n] = ce
				n++
				if n >= len(entries) {
					break
				}
			}
		}
		if ev.Writable {
			if ce, ok := p.deliverSend(socket, ev.Errored); ok {
				entries[n] = ce
				n++
			}
		}
	}
	return n, nil
}

func (p *Provider) deliverRecv(socket uintptr, errored bool) (provider.CompletionEntry, bool) {
	p.mu.Lock()
	po, ok := p.recvBySocket[socket]
	if ok {
		delete(p.recvBySocket, socket)
	}
	p.mu.Unlock()
	if !ok {
		return provider.CompletionEntry{}, false
	}

	ce := provider.CompletionEntry{RequestContext: po.RequestContext, Kind: provider.OpRecv}
	failed := errored
	if errored {
		ce.Result = -1
		ce.OSError = 1
	} else {
		n, err := osRead(int(socket), po.Buffer)
		if err != nil {
			failed = true
			ce.Result = -1
			ce.OSError = errnoOf(err)
		} else {
			ce.Result = int64(n)
		}
	}

	// Complete()/CompleteWithError() is the single re-check point: if
	// Shutdown already cleared the pending table, found is false.
	var found bool
	if failed {
		_, found = p.eng.CompleteWithError(po.ID)
	} else {
		_, found = p.eng.Complete(po.ID)
	}
	if !found {
		return provider.CompletionEntry{}, false
	}
	return ce, true
}

func (p *Provider) deliverSend(socket uintptr, errored bool) (provider.CompletionEntry, bool) {
	p.mu.Lock()
	po, ok := p.sendBySocket[socket]
	if ok {
		delete(p.sendBySocket, socket)
	}
	p.mu.Unlock()
	if !ok {
		return provider.CompletionEntry{}, false
	}

	ce := provider.CompletionEntry{RequestContext: po.RequestContext, Kind: provider.OpSend}
	failed := errored
	if errored {
		ce.Result = -1
		ce.OSError = 1
	} else {
		n, err := osWrite(int(socket), po.Buffer)
		if err != nil {
			failed = true
			ce.Result = -1
			ce.OSError = errnoOf(err)
		} else {
			ce.Result = int64(n)
		}
	}

	var found bool
	if failed {
		_, found = p.eng.CompleteWithError(po.ID)
	} else {
		_, found = p.eng.Complete(po.ID)
	}
	if !found {
		return provider.CompletionEntry{}, false
	}
	return ce, true
}

func (p *Provider) Info() provider.Info { return p.eng.Info() }

func (p *Provider) Stats() provider.Stats { return p.eng.Stats() }

var _ provider.Provider = (*Provider)(nil)
