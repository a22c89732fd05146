// Package runtime implements the Server Runtime (C6): a network worker
// that drains provider completions and dispatches them by operation
// kind, and a logic worker that runs periodic keepalives without ever
// touching the provider's pending-operation table directly.
//
// Grounded on the sibling momentics-hioload-ws example's server/server.go
// for the shutdown-channel / Accept-loop shape and its
// core/concurrency/eventloop.go for the CAS-guarded running flag and
// quit/done channel pair a worker loop uses to report its own exit.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package runtime

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-ioprovider/config"
	"github.com/momentics/hioload-ioprovider/framing"
	"github.com/momentics/hioload-ioprovider/ioerr"
	"github.com/momentics/hioload-ioprovider/log"
	"github.com/momentics/hioload-ioprovider/provider"
	"github.com/momentics/hioload-ioprovider/slab"
)

// pendingIO is what the network worker needs to know about an
// in-flight Recv or Send to finish handling its completion.
type pendingIO struct {
	kind      provider.OperationKind
	connID    uint64
	slotIndex int
	buf       []byte // the slot's backing memory, for reading a Recv completion in place
}

type connection struct {
	id   uint64
	conn net.Conn
	fd   uintptr
}

// Server wires one Provider, one recv/send buffer pair, and one
// framing.Dispatcher into a running network + logic worker pair.
type Server struct {
	cfg        *config.Config
	prov       provider.Provider
	dispatcher *framing.Dispatcher

	recvPool recvPool
	sendPool *slab.Pool

	connMu sync.Mutex
	conns  map[uint64]*connection

	pendMu     sync.Mutex
	pending    map[uint64]pendingIO
	nextConnID atomic.Uint64
	nextReqID  atomic.Uint64

	running   atomic.Bool
	quitNet   chan struct{}
	doneNet   chan struct{}
	quitLogic chan struct{}
	doneLogic chan struct{}

	keepaliveInterval time.Duration
	onKeepalive       func(now time.Time)

	ln net.Listener
}

// Option configures a Server at construction.
type Option func(*Server)

// WithKeepalive installs a periodic callback the logic worker invokes
// every interval. The callback must not reach into Provider internals;
// it exists for timers and keepalive frames only.
func WithKeepalive(interval time.Duration, fn func(now time.Time)) Option {
	return func(s *Server) {
		s.keepaliveInterval = interval
		s.onKeepalive = fn
	}
}

// New builds a Server around an already-initialized Provider. The
// caller is responsible for calling prov.Initialize before New and
// prov.Shutdown after Stop.
func New(cfg *config.Config, prov provider.Provider, dispatcher *framing.Dispatcher, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var rp recvPool
	info := prov.Info()
	if info.SupportsBufferRegistration {
		strategy := slab.StrategySlab
		if info.Name == "io_uring" {
			strategy = slab.StrategyPerSlot
		}
		registered, err := slab.Initialize(prov, cfg.BufferPool.SlotSize, cfg.BufferPool.PoolSize, strategy)
		if err != nil {
			return nil, ioerr.Wrap("New", ioerr.CodeOperationFailed, err)
		}
		rp = &registeredRecvPool{rp: registered}
	} else {
		plain, ok := slab.NewPool(cfg.BufferPool.PoolSize, cfg.BufferPool.SlotSize)
		if !ok {
			return nil, ioerr.New("New", ioerr.CodeInvalidParameter, "invalid recv buffer pool configuration")
		}
		rp = &plainRecvPool{pool: plain}
	}

	sendSlab, ok := slab.NewPool(cfg.SendPool.PoolSize, cfg.SendPool.SlotSize)
	if !ok {
		rp.Shutdown()
		return nil, ioerr.New("New", ioerr.CodeInvalidParameter, "invalid send buffer pool configuration")
	}

	s := &Server{
		cfg:        cfg,
		prov:       prov,
		dispatcher: dispatcher,
		recvPool:   rp,
		sendPool:   sendSlab,
		conns:      make(map[uint64]*connection),
		pending:    make(map[uint64]pendingIO),
		quitNet:    make(chan struct{}),
		doneNet:    make(chan struct{}),
		quitLogic:  make(chan struct{}),
		doneLogic:  make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Listen starts accepting TCP connections on addr and arms a recv for
// each newly accepted connection.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return ioerr.Wrap("Listen", ioerr.CodeOperationFailed, err)
	}
	s.ln = ln
	if !s.running.CompareAndSwap(false, true) {
		ln.Close()
		return ioerr.New("Listen", ioerr.CodeAlreadyInitialized, "server already running")
	}
	go s.acceptLoop(ln)
	go s.networkWorker()
	if s.keepaliveInterval > 0 {
		go s.logicWorker()
	} else {
		close(s.doneLogic)
	}
	log.Info("server listening", "addr", addr)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			continue
		}
		fd, err := rawFD(conn)
		if err != nil {
			conn.Close()
			continue
		}
		id := s.nextConnID.Add(1)
		c := &connection{id: id, conn: conn, fd: fd}
		s.connMu.Lock()
		s.conns[id] = c
		s.connMu.Unlock()
		s.armRecv(c)
	}
}

// armRecv acquires a fresh recv slot and submits a Recv against it,
// correlating the completion via a Server-generated request id rather
// than the connection id itself, so multiple in-flight recvs per
// connection (not currently issued, but not precluded) never collide.
func (s *Server) armRecv(c *connection) {
	data, _, idx, ok := s.recvPool.Acquire()
	if !ok {
		log.Warn("recv pool exhausted, dropping connection", "conn_id", c.id)
		s.closeConn(c.id)
		return
	}
	reqID := s.nextReqID.Add(1)
	s.pendMu.Lock()
	s.pending[reqID] = pendingIO{kind: provider.OpRecv, connID: c.id, slotIndex: idx, buf: data}
	s.pendMu.Unlock()

	if err := s.prov.RecvAsync(c.fd, data, reqID, 0); err != nil {
		s.pendMu.Lock()
		delete(s.pending, reqID)
		s.pendMu.Unlock()
		s.recvPool.Release(idx)
		s.closeConn(c.id)
	}
}

// Send queues payload for asynchronous delivery on the connection
// identified by connID. The payload is copied into a send pool slot
// that is released once the completion drains.
func (s *Server) Send(connID uint64, payload []byte) error {
	s.connMu.Lock()
	c, ok := s.conns[connID]
	s.connMu.Unlock()
	if !ok {
		return ioerr.New("Send", ioerr.CodeInvalidSocket, "unknown connection id")
	}
	if len(payload) > s.sendPool.SlotSize() {
		return ioerr.New("Send", ioerr.CodeInvalidBuffer, "payload exceeds send slot size")
	}
	slot := s.sendPool.Acquire()
	if slot.Empty() {
		return ioerr.New("Send", ioerr.CodeOperationFailed, "send pool exhausted")
	}
	owned := slot.Data[:len(payload)]
	copy(owned, payload)

	reqID := s.nextReqID.Add(1)
	s.pendMu.Lock()
	s.pending[reqID] = pendingIO{kind: provider.OpSend, connID: connID, slotIndex: slot.Index, buf: owned}
	s.pendMu.Unlock()

	if err := s.prov.SendAsync(c.fd, owned, reqID, 0); err != nil {
		s.pendMu.Lock()
		delete(s.pending, reqID)
		s.pendMu.Unlock()
		s.sendPool.Release(slot.Index)
		return err
	}
	return s.prov.FlushRequests()
}

func (s *Server) closeConn(id uint64) {
	s.connMu.Lock()
	c, ok := s.conns[id]
	if ok {
		delete(s.conns, id)
	}
	s.connMu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// Addr returns the listener's bound address. Only valid after Listen
// has returned successfully.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Stop signals every worker to exit, closes the listener, and blocks
// until both workers have returned. It does not call Provider.Shutdown:
// the caller owns the Provider's lifetime.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	if s.ln != nil {
		s.ln.Close()
	}
	close(s.quitNet)
	close(s.quitLogic)
	<-s.doneNet
	<-s.doneLogic

	s.connMu.Lock()
	for id, c := range s.conns {
		c.conn.Close()
		delete(s.conns, id)
	}
	s.connMu.Unlock()

	s.recvPool.Shutdown()
	s.sendPool.Shutdown()
	log.Info("server stopped")
}
