// Package reactor implements the worker-per-core event loop described in
// spec §4.F–§4.H: an epoll-backed WorkerReactor, the SO_REUSEPORT (or
// round-robin fallback) acceptor model of §4.G, and the IdleReaper of
// §4.H. Pollers, sessions and session tables are owned by exactly one
// worker thread; the cross-goroutine entry points are the wakeup
// eventfd, WorkerReactor.Handoff, and the atomic Stats counters.
package reactor

import (
	"golang.org/x/sys/unix"
)

// Readiness bits surfaced by the poller, collapsed from epoll's raw
// event mask to the handful spec §4.F's worker loop branches on.
type Readiness struct {
	Fd       int32
	Readable bool
	Writable bool
	Err      bool
	Hup      bool
}

// Poller wraps one epoll instance. It is not safe for concurrent Wait
// calls, matching spec's "each worker owns its own readiness-notification
// instance" model.
type Poller struct {
	epfd int
}

// NewPoller creates a fresh epoll instance.
func NewPoller() (*Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Poller{epfd: fd}, nil
}

// Close releases the epoll instance.
func (p *Poller) Close() error { return unix.Close(p.epfd) }

// AddRead arms edge-triggered READ interest for fd. ERR|HUP are not
// requested here; epoll always reports them.
func (p *Poller) AddRead(fd int32) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, unix.EPOLLIN|unix.EPOLLET)
}

// ModReadWrite re-arms edge-triggered READ|WRITE interest for fd, used
// when a Session has buffered output and must be notified when the
// socket becomes writable again.
func (p *Poller) ModReadWrite(fd int32) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, unix.EPOLLIN|unix.EPOLLOUT|unix.EPOLLET)
}

// ModReadOnly re-arms READ-only interest, dropping WRITE once a
// Session's write buffer has fully drained.
func (p *Poller) ModReadOnly(fd int32) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, unix.EPOLLIN|unix.EPOLLET)
}

// Remove drops fd from the interest set. Safe to call after the fd has
// already been closed by the kernel (epoll auto-removes closed fds), in
// which case ENOENT is swallowed.
func (p *Poller) Remove(fd int32) error {
	err := p.ctl(unix.EPOLL_CTL_DEL, fd, 0)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (p *Poller) ctl(op int, fd int32, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: fd}
	return unix.EpollCtl(p.epfd, op, int(fd), &ev)
}

// maxEvents bounds one Wait call's fan-out (spec 4.F step 2: "up to a
// bounded fan-out, e.g. 1024 events per wake").
const maxEvents = 1024

// Wait blocks for up to timeoutMs milliseconds (-1 blocks indefinitely)
// and returns the readiness of whatever fds became ready.
func (p *Poller) Wait(timeoutMs int, out []Readiness) ([]Readiness, error) {
	var raw [maxEvents]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, raw[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return out[:0], nil
		}
		return nil, err
	}

	out = out[:0]
	for i := 0; i < n; i++ {
		e := raw[i]
		out = append(out, Readiness{
			Fd:       e.Fd,
			Readable: e.Events&unix.EPOLLIN != 0,
			Writable: e.Events&unix.EPOLLOUT != 0,
			Err:      e.Events&unix.EPOLLERR != 0,
			Hup:      e.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
		})
	}
	return out, nil
}
