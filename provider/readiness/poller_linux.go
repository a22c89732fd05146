//go:build linux

// Linux epoll poller. Grounded on the teacher's reactor/epoll_reactor.go
// (syscall.EpollCreate1 / EpollCtl / EpollWait), adapted to report
// readable/writable/error flags per fd instead of dispatching callbacks.
package readiness

import (
	"fmt"
	"sync"
	"syscall"
)

type epollPoller struct {
	epfd int
	mu   sync.Mutex
	// interest tracks the currently-registered event mask per fd so
	// RegisterRead/RegisterWrite can upgrade an existing registration
	// via EPOLL_CTL_MOD instead of failing with EEXIST.
	interest map[int]uint32
}

func newPoller() (poller, error) {
	epfd, err := syscall.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &epollPoller{epfd: epfd, interest: make(map[int]uint32)}, nil
}

func (p *epollPoller) setInterest(fd int, mask uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev := syscall.EpollEvent{Events: mask, Fd: int32(fd)}
	if _, ok := p.interest[fd]; ok {
		if err := syscall.EpollCtl(p.epfd, syscall.EPOLL_CTL_MOD, fd, &ev); err != nil {
			return err
		}
	} else {
		if err := syscall.EpollCtl(p.epfd, syscall.EPOLL_CTL_ADD, fd, &ev); err != nil {
			return err
		}
	}
	p.interest[fd] = mask
	return nil
}

func (p *epollPoller) RegisterRead(fd int) error {
	mask := syscall.EPOLLIN
	if cur, ok := p.interest[fd]; ok {
		mask |= int(cur)
	}
	return p.setInterest(fd, uint32(mask))
}

func (p *epollPoller) RegisterWrite(fd int) error {
	mask := syscall.EPOLLOUT
	if cur, ok := p.interest[fd]; ok {
		mask |= int(cur)
	}
	return p.setInterest(fd, uint32(mask))
}

func (p *epollPoller) Unregister(fd int) error {
	p.mu.Lock()
	delete(p.interest, fd)
	p.mu.Unlock()
	return syscall.EpollCtl(p.epfd, syscall.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Wait(timeoutMs int) ([]readyEvent, error) {
	const maxEvents = 256
	var raw [maxEvents]syscall.EpollEvent
	n, err := syscall.EpollWait(p.epfd, raw[:], timeoutMs)
	if err != nil {
		if err == syscall.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("epoll_wait: %w", err)
	}
	out := make([]readyEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := raw[i]
		out = append(out, readyEvent{
			FD:       int(ev.Fd),
			Readable: ev.Events&syscall.EPOLLIN != 0,
			Writable: ev.Events&syscall.EPOLLOUT != 0,
			Errored:  ev.Events&(syscall.EPOLLERR|syscall.EPOLLHUP) != 0,
		})
	}
	return out, nil
}

func (p *epollPoller) Close() error {
	return syscall.Close(p.epfd)
}
