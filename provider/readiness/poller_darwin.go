//go:build darwin

// Darwin kqueue poller. Grounded on
// original_source's KqueueAsyncIOProvider.cpp for the readiness-adapter
// role it plays, implemented here against golang.org/x/sys/unix's kqueue
// bindings (the same module the teacher depends on for raw syscall
// access on Linux).
package readiness

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	kq int
	mu sync.Mutex
}

func newPoller() (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	return &kqueuePoller{kq: kq}, nil
}

func (p *kqueuePoller) changeOne(fd int, filter int16, flags uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	kev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  flags,
	}
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{kev}, nil, nil)
	return err
}

func (p *kqueuePoller) RegisterRead(fd int) error {
	return p.changeOne(fd, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE)
}

func (p *kqueuePoller) RegisterWrite(fd int) error {
	return p.changeOne(fd, unix.EVFILT_WRITE, unix.EV_ADD|unix.EV_ENABLE)
}

func (p *kqueuePoller) Unregister(fd int) error {
	_ = p.changeOne(fd, unix.EVFILT_READ, unix.EV_DELETE)
	_ = p.changeOne(fd, unix.EVFILT_WRITE, unix.EV_DELETE)
	return nil
}

func (p *kqueuePoller) Wait(timeoutMs int) ([]readyEvent, error) {
	const maxEvents = 256
	events := make([]unix.Kevent_t, maxEvents)

	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * int64(1_000_000))
		ts = &t
	}

	n, err := unix.Kevent(p.kq, nil, events, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("kevent: %w", err)
	}

	out := make([]readyEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := events[i]
		out = append(out, readyEvent{
			FD:       int(ev.Ident),
			Readable: ev.Filter == unix.EVFILT_READ,
			Writable: ev.Filter == unix.EVFILT_WRITE,
			Errored:  ev.Flags&unix.EV_ERROR != 0,
		})
	}
	return out, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}
