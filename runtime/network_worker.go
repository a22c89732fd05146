// File: runtime/network_worker.go
package runtime

import (
	"github.com/momentics/hioload-ioprovider/log"
	"github.com/momentics/hioload-ioprovider/provider"
)

// maxCompletionsPerBatch bounds one ProcessCompletions call; the worker
// loops back immediately if the batch came back full, since more may be
// queued.
const maxCompletionsPerBatch = 128

// completionsPollTimeoutMs is how long ProcessCompletions may block when
// nothing is pending, so the worker still wakes up often enough to
// observe quitNet.
const completionsPollTimeoutMs = 100

func (s *Server) networkWorker() {
	defer close(s.doneNet)
	entries := make([]provider.CompletionEntry, maxCompletionsPerBatch)

	for {
		select {
		case <-s.quitNet:
			return
		default:
		}

		n, err := s.prov.ProcessCompletions(entries, completionsPollTimeoutMs)
		if err != nil {
			log.Error("ProcessCompletions failed", "error", err)
			continue
		}
		for i := 0; i < n; i++ {
			s.dispatchCompletion(entries[i])
		}
	}
}

func (s *Server) dispatchCompletion(ce provider.CompletionEntry) {
	s.pendMu.Lock()
	meta, ok := s.pending[ce.RequestContext]
	if ok {
		delete(s.pending, ce.RequestContext)
	}
	s.pendMu.Unlock()
	if !ok {
		return // unknown request id: nothing to release
	}

	switch meta.kind {
	case provider.OpRecv:
		s.completeRecv(meta, ce)
	case provider.OpSend:
		s.sendPool.Release(meta.slotIndex)
	}
}

func (s *Server) completeRecv(meta pendingIO, ce provider.CompletionEntry) {
	s.connMu.Lock()
	c, ok := s.conns[meta.connID]
	s.connMu.Unlock()

	if ce.Result <= 0 || !ok {
		s.recvPool.Release(meta.slotIndex)
		if ok {
			s.closeConn(meta.connID)
		}
		return
	}

	s.dispatcher.Process(meta.connID, meta.buf[:ce.Result])
	s.recvPool.Release(meta.slotIndex)
	s.armRecv(c)
}
