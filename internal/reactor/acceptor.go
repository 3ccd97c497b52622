package reactor

import (
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/sirupsen/logrus"
)

// Acceptor is the spec §4.G fallback model: a single thread owns one
// listening socket and round-robins each accepted connection to a
// worker via Handoff + a wakeup poke, used when ServerConfig.ReusePort
// is false. A failure to set SO_REUSEPORT does not fall back to it.
type Acceptor struct {
	ln      *listener
	workers []*WorkerReactor
	next    uint32
	log     *logrus.Entry
	stop    chan struct{}
	done    chan struct{}
}

// NewAcceptor binds a single shared listener and wires it to round-robin
// across workers.
func NewAcceptor(opts listenOptions, workers []*WorkerReactor, log *logrus.Entry) (*Acceptor, error) {
	opts.ReusePort = false
	ln, err := newListener(opts)
	if err != nil {
		return nil, err
	}
	return &Acceptor{
		ln:      ln,
		workers: workers,
		log:     log,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Run blocks accepting connections and handing them off until Stop is
// called. It uses its own tiny epoll instance (rather than busy-polling
// accept) purely to block efficiently between connections.
func (a *Acceptor) Run() error {
	defer close(a.done)

	p, err := NewPoller()
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.AddRead(a.ln.fd); err != nil {
		return err
	}

	events := make([]Readiness, 0, maxEvents)
	for {
		select {
		case <-a.stop:
			return nil
		default:
		}

		events, err = p.Wait(1000, events)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			a.log.WithError(err).Error("acceptor poll failed")
			return err
		}

		for range events {
			a.acceptAndDispatch()
		}
	}
}

func (a *Acceptor) acceptAndDispatch() {
	for {
		fd, _, err := unix.Accept4(int(a.ln.fd), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			a.log.WithError(err).Debug("accept failed")
			return
		}

		idx := atomic.AddUint32(&a.next, 1) % uint32(len(a.workers))
		w := a.workers[idx]
		w.Handoff(fd)
		if wk := w.Wakeup(); wk != nil {
			wk.Poke()
		}
	}
}

// Stop ends the acceptor loop.
func (a *Acceptor) Stop() {
	close(a.stop)
	<-a.done
	a.ln.Close()
}
