// File: framing/dispatcher.go
// Dispatcher routes decoded Message records to per-type handler
// callbacks registered by application code.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package framing

import (
	"sync"
	"sync/atomic"
)

// HandlerFunc processes one decoded Message.
type HandlerFunc func(msg Message)

// Dispatcher parses byte runs into Messages and invokes the handler
// registered for each message's type. The handler table is published
// via copy-on-write so reads never block on the mutation mutex.
type Dispatcher struct {
	mu       sync.Mutex // guards mutation of the published table only
	handlers atomic.Pointer[map[uint32]HandlerFunc]
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{}
	empty := make(map[uint32]HandlerFunc)
	d.handlers.Store(&empty)
	return d
}

// RegisterHandler installs fn as the callback for msgType, replacing any
// previous registration.
func (d *Dispatcher) RegisterHandler(msgType uint32, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := *d.handlers.Load()
	next := make(map[uint32]HandlerFunc, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[msgType] = fn
	d.handlers.Store(&next)
}

// UnregisterHandler removes the callback for msgType, if any.
func (d *Dispatcher) UnregisterHandler(msgType uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	old := *d.handlers.Load()
	if _, ok := old[msgType]; !ok {
		return
	}
	next := make(map[uint32]HandlerFunc, len(old))
	for k, v := range old {
		if k != msgType {
			next[k] = v
		}
	}
	d.handlers.Store(&next)
}

// Process parses raw into zero or more complete Messages and invokes
// the registered handler for each. connectionID identifies the transport
// connection the bytes arrived on; it replaces each message's
// header-carried connection id before the handler runs, so a handler
// can reply on the connection the message came from. Process returns
// true if at least one message was delivered to a handler (a message
// with no registered handler is still parsed but does not count toward
// delivery).
func (d *Dispatcher) Process(connectionID uint64, raw []byte) bool {
	msgs := ParseMessages(raw)
	table := *d.handlers.Load()
	delivered := false
	for _, msg := range msgs {
		msg.ConnectionID = connectionID
		if fn, ok := table[msg.Type]; ok {
			fn(msg)
			delivered = true
		}
	}
	return delivered
}
