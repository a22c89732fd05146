//go:build linux

package iouring

import (
	"syscall"
	"time"

	"github.com/pawelgaczynski/giouring"
)

// iovecsOf converts the provider's fixed-buffer bookkeeping into the
// iovec slice RegisterBuffers expects.
func iovecsOf(bufs []fixedBuf) []syscall.Iovec {
	iov := make([]syscall.Iovec, len(bufs))
	for i, b := range bufs {
		iov[i] = syscall.Iovec{Base: &b.iov[0]}
		iov[i].SetLen(len(b.iov))
	}
	return iov
}

// temporaryWaitError reports whether err from WaitCQEs is a transient
// condition (deadline elapsed with nothing to report, or an interrupted
// wait) rather than a real ring failure.
func temporaryWaitError(err error) bool {
	errno, ok := err.(syscall.Errno)
	if !ok {
		return false
	}
	return errno == syscall.ETIME || errno == syscall.EINTR || errno == syscall.EAGAIN
}

// drainCQEs waits up to timeoutMs for at least one completion (zero
// peeks without blocking, a negative timeoutMs waits with no deadline)
// and then batch-peeks
// every CQE already available, up to len(out). It does not advance the
// completion ring: the caller must call ring.CQAdvance once it has read
// every entry in the returned count.
//
// Grounded on the ianic-xnet aio-loop example's runCtx/flushCompletions
// pair: WaitCQEs for the blocking wait, PeekBatchCQE+CQAdvance for the
// batch drain, rather than a singular PeekCQE/WaitCQE/CQESeen sequence.
func drainCQEs(ring *giouring.Ring, out []*giouring.CompletionQueueEvent, timeoutMs int) (uint32, error) {
	if timeoutMs != 0 {
		var tsp *syscall.Timespec
		if timeoutMs > 0 {
			ts := syscall.NsecToTimespec(int64(time.Duration(timeoutMs) * time.Millisecond))
			tsp = &ts
		}
		if _, err := ring.WaitCQEs(1, tsp, nil); err != nil && !temporaryWaitError(err) {
			return 0, err
		}
	}
	peeked := ring.PeekBatchCQE(out)
	return peeked, nil
}
