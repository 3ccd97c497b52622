package reactor

import (
	"runtime"
	"time"

	"golang.org/x/sys/unix"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/reactord/internal/registry"
	"github.com/yourusername/reactord/internal/rerrors"
	"github.com/yourusername/reactord/internal/session"
)

// WorkerConfig bundles the per-worker knobs a Server hands each
// WorkerReactor at construction time.
type WorkerConfig struct {
	ID                   int
	CPU                  int // -1 disables affinity pinning
	Poller               *Poller
	Listener             *listener // nil if this worker doesn't own a listener (fallback model)
	Registry             *registry.Registry
	ReadBufSize          int
	WriteBufSize         int
	MaxBodySize          uint64
	ConnectionTimeout    time.Duration
	ReaperInterval       time.Duration
	ServerHeader         string
	Log                  *logrus.Entry
	Accepted             func(fd int) // called once per accepted connection, for Stats
	Closed               func()       // called once per session close, for Stats
	Evicted              func()       // called once per reaper-initiated close, for Stats (spec 4.L)
	Counters             *session.Counters
}

// WorkerReactor is one of the N parallel, CPU-pinned OS threads spec
// §5 describes: everything inside a single worker is single-threaded
// and cooperative, and a Session is only ever touched by the worker
// that owns it.
type WorkerReactor struct {
	cfg     WorkerConfig
	table   *SessionTable
	wakeup  *Wakeup
	stop    chan struct{}
	done    chan struct{}
	pending chan int // fallback-model: fds handed off by the Acceptor
}

// NewWorkerReactor constructs a worker. Run locks its own goroutine to
// an OS thread (runtime.LockOSThread) and pins that thread, so callers
// only need to start Run on a dedicated goroutine.
func NewWorkerReactor(cfg WorkerConfig) (*WorkerReactor, error) {
	// Created up front (not inside Run) so Wakeup() is safe to call from
	// an Acceptor goroutine the instant the Server has constructed all
	// workers, before any of them have started their Run loop.
	wk, err := NewWakeup(cfg.Poller)
	if err != nil {
		return nil, err
	}
	return &WorkerReactor{
		cfg:     cfg,
		table:   NewSessionTable(1024),
		wakeup:  wk,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		pending: make(chan int, 256),
	}, nil
}

// Wakeup exposes the worker's eventfd Poke so the fallback Acceptor can
// nudge it after enqueuing a handed-off connection (spec §4.G fallback
// model: "signaling that worker via a cross-thread queue and its
// wakeup counter").
func (w *WorkerReactor) Wakeup() *Wakeup { return w.wakeup }

// Handoff enqueues fd for this worker to adopt on its own thread. Safe
// to call from the Acceptor goroutine; the fd itself is only ever
// touched by this worker once adopted.
func (w *WorkerReactor) Handoff(fd int) {
	w.pending <- fd
}

// Run pins the calling OS thread to cfg.CPU (if >= 0) and executes the
// event loop in spec §4.F until Stop is called. It blocks until the
// loop has fully drained and closed every session.
func (w *WorkerReactor) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if w.cfg.CPU >= 0 {
		if err := pinToCPU(w.cfg.CPU); err != nil {
			w.cfg.Log.WithError(err).Warn("failed to pin worker to CPU, continuing unpinned")
		}
	}

	wk := w.wakeup
	defer wk.Close()

	var lfd int32 = -1
	var err error
	if w.cfg.Listener != nil {
		lfd = w.cfg.Listener.fd
		if err := w.cfg.Poller.AddRead(lfd); err != nil {
			return err
		}
	}

	defer close(w.done)

	reaperInterval := w.cfg.ReaperInterval
	if reaperInterval <= 0 {
		reaperInterval = time.Second
	}
	nextReap := time.Now().Add(reaperInterval)

	events := make([]Readiness, 0, maxEvents)
	for {
		select {
		case <-w.stop:
			w.shutdownSessions()
			return nil
		default:
		}

		timeoutMs := int(time.Until(nextReap) / time.Millisecond)
		if timeoutMs < 0 {
			timeoutMs = 0
		}

		events, err = w.cfg.Poller.Wait(timeoutMs, events)
		if err != nil {
			w.cfg.Log.WithError(err).Error("epoll wait failed, worker exiting")
			w.shutdownSessions()
			return err
		}

		for _, ev := range events {
			switch {
			case ev.Fd == wk.Fd():
				wk.Drain()
				w.adoptPending()
			case ev.Fd == lfd:
				w.acceptLoop()
			default:
				w.handleSessionEvent(ev)
			}
		}

		if time.Now().After(nextReap) {
			w.reap()
			nextReap = time.Now().Add(reaperInterval)
		}
	}
}

// Stop requests the worker loop to exit and blocks until it has.
func (w *WorkerReactor) Stop() {
	close(w.stop)
	if w.wakeup != nil {
		w.wakeup.Poke()
	}
	<-w.done
}

// SessionCount reports the number of live sessions (metrics gauge).
func (w *WorkerReactor) SessionCount() int { return w.table.Len() }

// sessionLogger returns the per-request diagnostic-logging hook handed
// to sess via SetLogger, selecting the logrus level by error Kind per
// spec §4.J: ProtocolError at info, HandlerError at warn, everything
// else (PeerError, transient close causes) at debug.
func (w *WorkerReactor) sessionLogger(sess *session.Session) session.LogFunc {
	return func(cause *rerrors.Error) {
		entry := w.cfg.Log.WithField("conn_id", sess.CorrelationID).
			WithField("kind", cause.Kind.String()).
			WithField("op", cause.Op).
			WithError(cause.Err)
		switch cause.Kind {
		case rerrors.KindProtocol:
			entry.Info("session closed")
		case rerrors.KindHandler:
			entry.Warn("session closed")
		default:
			entry.Debug("session closed")
		}
	}
}

// acceptLoop implements spec 4.F step 3a: accept until EAGAIN, creating
// a Session per connection and arming READ-only interest.
func (w *WorkerReactor) acceptLoop() {
	for {
		fd, _, err := unix.Accept4(int(w.cfg.Listener.fd), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			w.cfg.Log.WithError(err).Debug("accept failed")
			return
		}

		unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

		sess := session.New(fd, w.cfg.ReadBufSize, w.cfg.WriteBufSize, w.cfg.Registry, w.cfg.MaxBodySize, w.cfg.ServerHeader)
		sess.WorkerID = w.cfg.ID
		sess.CorrelationID = uuid.NewString()
		sess.SetCounters(w.cfg.Counters)
		sess.SetLogger(w.sessionLogger(sess))
		w.table.Insert(sess)

		if err := w.cfg.Poller.AddRead(int32(fd)); err != nil {
			w.cfg.Log.WithError(err).Warn("failed to register new connection with poller")
			sess.Close()
			continue
		}
		w.cfg.Log.WithField("conn_id", sess.CorrelationID).WithField("fd", fd).Debug("accepted connection")
		if w.cfg.Accepted != nil {
			w.cfg.Accepted(fd)
		}
	}
}

// adoptPending drains any fds the fallback Acceptor has handed off and
// registers each as a new Session, mirroring acceptLoop's per-connection
// setup for the SO_REUSEPORT model.
func (w *WorkerReactor) adoptPending() {
	for {
		select {
		case fd := <-w.pending:
			unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

			sess := session.New(fd, w.cfg.ReadBufSize, w.cfg.WriteBufSize, w.cfg.Registry, w.cfg.MaxBodySize, w.cfg.ServerHeader)
			sess.WorkerID = w.cfg.ID
			sess.CorrelationID = uuid.NewString()
			sess.SetCounters(w.cfg.Counters)
			sess.SetLogger(w.sessionLogger(sess))
			w.table.Insert(sess)

			if err := w.cfg.Poller.AddRead(int32(fd)); err != nil {
				w.cfg.Log.WithError(err).Warn("failed to register handed-off connection with poller")
				sess.Close()
				continue
			}
			if w.cfg.Accepted != nil {
				w.cfg.Accepted(fd)
			}
		default:
			return
		}
	}
}

// handleSessionEvent implements spec 4.F steps 3c-3e.
func (w *WorkerReactor) handleSessionEvent(ev Readiness) {
	sess, h, ok := w.table.Lookup(ev.Fd)
	if !ok {
		return
	}

	if ev.Err || ev.Hup {
		w.closeSession(h, sess)
		return
	}

	if ev.Readable {
		if intent := sess.OnReadReady(); !w.applyIntent(h, sess, intent) {
			return
		}
	}
	if ev.Writable && sess.Fd() != -1 {
		w.applyIntent(h, sess, sess.OnWriteReady())
	}
}

// applyIntent re-arms poller interest or evicts the session per the
// IoIntent returned by a Session method, the callback-inversion pattern
// named in spec's DESIGN NOTES. Returns false if the session was closed
// (so the caller must not touch it again).
func (w *WorkerReactor) applyIntent(h Handle, sess *session.Session, intent session.IoIntent) bool {
	switch intent {
	case session.WantRead:
		w.cfg.Poller.ModReadOnly(sess.Fd())
		return true
	case session.WantWrite:
		w.cfg.Poller.ModReadWrite(sess.Fd())
		return true
	case session.WantClose:
		w.closeSession(h, sess)
		return false
	default:
		return true
	}
}

func (w *WorkerReactor) closeSession(h Handle, sess *session.Session) {
	fd := sess.Fd()
	if fd != -1 {
		w.cfg.Poller.Remove(fd)
	}
	sess.Close()
	w.table.Remove(h)
	if w.cfg.Closed != nil {
		w.cfg.Closed()
	}
}

// reapEntry pairs a Handle with its Session so a deferred close doesn't
// need to re-resolve through the table after Each has already returned
// both.
type reapEntry struct {
	h    Handle
	sess *session.Session
}

// reap runs the IdleReaper tick (spec §4.H) on the owning worker
// thread, never across threads.
func (w *WorkerReactor) reap() {
	if w.cfg.ConnectionTimeout <= 0 {
		return
	}
	cutoff := time.Now().Add(-w.cfg.ConnectionTimeout)

	var toClose []reapEntry
	w.table.Each(func(h Handle, sess *session.Session) {
		if sess.LastActivity().Before(cutoff) {
			toClose = append(toClose, reapEntry{h, sess})
		}
	})
	for _, e := range toClose {
		w.closeSession(e.h, e.sess)
		if w.cfg.Evicted != nil {
			w.cfg.Evicted()
		}
	}
}

func (w *WorkerReactor) shutdownSessions() {
	var all []reapEntry
	w.table.Each(func(h Handle, sess *session.Session) { all = append(all, reapEntry{h, sess}) })
	for _, e := range all {
		w.closeSession(e.h, e.sess)
	}
	if w.cfg.Listener != nil {
		w.cfg.Listener.Close()
	}
}
