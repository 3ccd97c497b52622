// Package session implements the per-connection state machine described
// in spec §4.E: Idle, Reading, ParsingAndDispatching, Writing, Closed.
// A Session is only ever touched by its owning worker goroutine/thread;
// the only field that must tolerate concurrent access is the socket
// descriptor, so close is idempotent and race-safe against a closing
// handler path.
package session

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/yourusername/reactord/internal/message"
	"github.com/yourusername/reactord/internal/parser"
	"github.com/yourusername/reactord/internal/registry"
	"github.com/yourusername/reactord/internal/rerrors"
	"github.com/yourusername/reactord/internal/ringbuf"
)

// State is one of the five session states named in spec §4.E.
type State int

const (
	Idle State = iota
	Reading
	ParsingAndDispatching
	Writing
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Reading:
		return "reading"
	case ParsingAndDispatching:
		return "parsing_and_dispatching"
	case Writing:
		return "writing"
	case Closed:
		return "closed"
	default:
		return "?"
	}
}

// IoIntent is what the owning worker loop should do next after a
// Session method returns. Returning a value instead of taking an event
// loop back-pointer keeps the Session free of any knowledge of the
// reactor that drives it (spec DESIGN NOTES, callback inversion).
type IoIntent int

const (
	// None: no interest change; used only internally.
	None IoIntent = iota
	// WantRead: (re-)arm READ interest, edge-triggered.
	WantRead
	// WantWrite: (re-)arm WRITE interest, edge-triggered.
	WantWrite
	// WantClose: the session is done; the worker must remove it from
	// its session table. The socket has already been closed.
	WantClose
)

const closedFd int32 = -1

// Counters is the set of optional observation hooks a Session reports
// through, mirroring the Accepted/Closed callback shape WorkerReactor
// already uses for connection counts (spec DESIGN NOTES: Session never
// holds a reactor or Stats back-pointer, only callbacks). Every field is
// nil-checked before use, so a Session built without Counters behaves
// exactly as before.
type Counters struct {
	RequestDispatched func()
	RequestErrored    func()
	ConnectionErrored func()
	BytesRead         func(n int)
	BytesWritten      func(n int)
}

func (c *Counters) requestDispatched() {
	if c != nil && c.RequestDispatched != nil {
		c.RequestDispatched()
	}
}

func (c *Counters) requestErrored() {
	if c != nil && c.RequestErrored != nil {
		c.RequestErrored()
	}
}

func (c *Counters) connectionErrored() {
	if c != nil && c.ConnectionErrored != nil {
		c.ConnectionErrored()
	}
}

func (c *Counters) bytesRead(n int) {
	if c != nil && c.BytesRead != nil {
		c.BytesRead(n)
	}
}

func (c *Counters) bytesWritten(n int) {
	if c != nil && c.BytesWritten != nil {
		c.BytesWritten(n)
	}
}

// LogFunc is the diagnostic-logging hook a Session reports through,
// mirroring Counters' inversion-of-control shape so Session still never
// holds a logger back-pointer. Invoked with the classified cause behind
// a Malformed parse, a recovered handler panic, or a session close;
// nil-checked before use, so a Session without a logger attached stays
// silent (spec §4.J: ProtocolError at info, HandlerError at warn,
// PeerError at debug — level selection lives with the caller, which has
// the logrus.Entry).
type LogFunc func(cause *rerrors.Error)

func (f LogFunc) log(cause *rerrors.Error) {
	if f != nil && cause != nil {
		f(cause)
	}
}

// Session is one TCP connection's worth of state. It owns a read and a
// write RingBuffer, a reusable Request/Response pair, and the atomic
// socket descriptor.
type Session struct {
	fd atomicFd

	readBuf  *ringbuf.RingBuffer
	writeBuf *ringbuf.RingBuffer

	req  *message.Request
	resp *message.Response

	parser   *parser.Parser
	registry *registry.Registry

	state State

	keepAlive     bool
	lastActivity  time.Time
	maxBodySize   uint64
	serverHeader  string
	counters      *Counters
	logger        LogFunc

	// WorkerID and CorrelationID are set once at accept time by the
	// WorkerReactor, which leaves RemoteAddr empty. All three are used only
	// for logging/metrics labeling; Session never acts on them itself.
	WorkerID      int
	RemoteAddr    string
	CorrelationID string
}

// New constructs a Session bound to fd, with read/write ring buffers of
// the given capacities. The caller (the WorkerReactor, per spec 4.F
// step 3a) has already accepted the socket and set it non-blocking.
func New(fd int, readCap, writeCap int, reg *registry.Registry, maxBodySize uint64, serverHeader string) *Session {
	s := &Session{
		readBuf:      ringbuf.New(readCap),
		writeBuf:     ringbuf.New(writeCap),
		req:          message.NewRequest(),
		resp:         message.NewResponse(),
		parser:       parser.New(),
		registry:     reg,
		state:        Idle,
		keepAlive:    true,
		lastActivity: time.Now(),
		maxBodySize:  maxBodySize,
		serverHeader: serverHeader,
	}
	s.fd.store(int32(fd))
	return s
}

// SetCounters attaches the Stats-reporting callbacks a WorkerReactor
// wants notified of request/byte/error activity. Optional: a Session
// with no Counters attached behaves exactly as one with every hook nil.
func (s *Session) SetCounters(c *Counters) { s.counters = c }

// SetLogger attaches the diagnostic-logging hook a WorkerReactor wants
// notified of Malformed parses, recovered handler panics, and session
// closes. Optional: a Session with no logger attached stays silent.
func (s *Session) SetLogger(f LogFunc) { s.logger = f }

// Fd returns the current socket descriptor, or closedFd if the session
// has been closed.
func (s *Session) Fd() int32 { return s.fd.load() }

// State returns the session's current state (for diagnostics/tests).
func (s *Session) State() State { return s.state }

// LastActivity reports when the session last made read/write progress,
// consulted by the IdleReaper (spec §4.H).
func (s *Session) LastActivity() time.Time { return s.lastActivity }

// OnReadReady runs the Reading state transition (spec §4.E). It is
// called by the worker loop when epoll reports the socket readable; per
// edge-triggered semantics the worker must keep calling this until it
// stops returning WantRead with more data pending — recv itself loops
// internally until EAGAIN or a state change.
func (s *Session) OnReadReady() IoIntent {
	for {
		view := s.readBuf.GetWriteView()
		if len(view) == 0 {
			// Buffer is full and the parser still wants more: the
			// request can never fit (spec "Read buffer full when the
			// parser still reports NeedMore ⇒ Closed").
			return s.closeLocked(rerrors.New(rerrors.KindProtocol, "read", fmt.Errorf("request too large")))
		}

		n, err := unix.Read(int(s.Fd()), view)
		switch {
		case n > 0:
			s.readBuf.AdvanceWrite(n)
			s.counters.bytesRead(n)
			s.lastActivity = time.Now()
			intent, done := s.drainParser()
			if done {
				return intent
			}
			// Complete is handled inside drainParser by falling through
			// to dispatch; NeedMore loops back to read again only if
			// the socket might still have more buffered (edge-triggered
			// recv loop), otherwise it re-arms and returns.
			if intent != None {
				return intent
			}
			continue

		case n == 0:
			return s.closeLocked(rerrors.New(rerrors.KindPeer, "read", fmt.Errorf("peer closed connection")))

		default:
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				s.state = Idle
				return WantRead
			}
			return s.closeLocked(rerrors.New(rerrors.KindPeer, "read", err))
		}
	}
}

// drainParser invokes the parser over the current read view and applies
// the Complete/NeedMore/Malformed transition from spec §4.E. The bool
// return reports whether OnReadReady should stop its recv loop and
// return the given intent immediately (true), or keep reading (false,
// intent==None).
func (s *Session) drainParser() (IoIntent, bool) {
	s.state = Reading
	view := s.readBuf.GetReadView()

	result, consumed, _ := s.parser.Parse(view, s.readBuf.Capacity(), s.req, s.maxBodySize)
	switch result {
	case parser.Complete:
		s.readBuf.AdvanceRead(consumed)
		return s.dispatch(), true

	case parser.Malformed:
		cause := rerrors.New(rerrors.KindProtocol, "parse", fmt.Errorf("malformed request"))
		s.counters.requestErrored()
		s.logger.log(cause)
		s.buildErrorResponse(400, "Bad Request")
		s.keepAlive = false
		s.applyResponseDefaults()
		s.resp.Serialize(s.writeBuf)
		s.state = Writing
		return s.flushWrite(), true

	default: // NeedMore
		s.state = Idle
		return None, false
	}
}

// dispatch runs ParsingAndDispatching (spec §4.E): look up the handler,
// invoke it, recover a panic as a 500, serialize the response, and move
// to Writing.
func (s *Session) dispatch() IoIntent {
	s.state = ParsingAndDispatching
	s.resp.Reset()
	s.keepAlive = s.req.KeepAlive

	s.invokeHandler()
	s.counters.requestDispatched()

	s.applyResponseDefaults()
	s.resp.Serialize(s.writeBuf)
	s.lastActivity = time.Now()
	s.state = Writing
	return s.flushWrite()
}

// invokeHandler looks up and calls the registered handler, recovering a
// panic into a 500 response per spec's HandlerError policy.
func (s *Session) invokeHandler() {
	defer func() {
		if r := recover(); r != nil {
			s.keepAlive = false
			s.counters.requestErrored()
			s.logger.log(rerrors.New(rerrors.KindHandler, "handler panic", fmt.Errorf("%v", r)))
			s.buildErrorResponse(500, fmt.Sprintf("%v", r))
		}
	}()

	if s.req.Method == message.MethodUnknown {
		s.buildErrorResponse(405, "Method Not Allowed")
		return
	}

	h, ok := s.registry.Lookup(s.req.Path, s.req.Method)
	if !ok {
		s.buildErrorResponse(404, "Endpoint not found.")
		return
	}
	h(s.req, s.resp)
}

func (s *Session) applyResponseDefaults() {
	if _, ok := s.resp.Header("Server"); !ok && s.serverHeader != "" {
		s.resp.SetHeader("Server", s.serverHeader)
	}
	connVal := "close"
	if s.keepAlive {
		connVal = "keep-alive"
	}
	s.resp.SetHeader("Connection", connVal)
	if _, ok := s.resp.Header("Content-Length"); !ok {
		s.resp.SetBody(s.resp.Body)
	}
}

func (s *Session) buildErrorResponse(status int, body string) {
	s.resp.Reset()
	s.resp.Status = status
	s.resp.SetBody([]byte(body))
}

// OnWriteReady runs the Writing state transition: drain writeBuf to the
// socket until EAGAIN or the buffer empties, then runs onWriteComplete.
func (s *Session) OnWriteReady() IoIntent {
	return s.flushWrite()
}

func (s *Session) flushWrite() IoIntent {
	for {
		view := s.writeBuf.GetReadView()
		if len(view) == 0 {
			return s.onWriteComplete()
		}

		n, err := unix.Write(int(s.Fd()), view)
		if n > 0 {
			s.writeBuf.AdvanceRead(n)
			s.counters.bytesWritten(n)
			s.lastActivity = time.Now()
			continue
		}

		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			s.state = Writing
			return WantWrite
		}
		return s.closeLocked(rerrors.New(rerrors.KindPeer, "write", err))
	}
}

// onWriteComplete implements spec's onWriteComplete branch: pipelined
// requests re-enter Reading immediately without waiting for a fresh
// readiness event, since the bytes are already buffered.
func (s *Session) onWriteComplete() IoIntent {
	s.req.Reset()

	if !s.keepAlive {
		return s.closeLocked(nil)
	}

	if s.readBuf.Size() > 0 {
		intent, done := s.drainParser()
		if done {
			return intent
		}
	}

	s.state = Idle
	return WantRead
}

// Close implements the Closed state: closes the socket exactly once
// (the fd is exchanged atomically with a sentinel so a racing close
// from the reaper and from a read/write error path never double-close),
// and reports WantClose so the worker removes it from its session table.
func (s *Session) Close() IoIntent {
	return s.closeLocked(nil)
}

func (s *Session) closeLocked(cause *rerrors.Error) IoIntent {
	if cause != nil {
		s.counters.connectionErrored()
		s.logger.log(cause)
	}
	fd := s.fd.swap(closedFd)
	if fd != closedFd {
		unix.Close(int(fd))
	}
	s.state = Closed
	return WantClose
}
