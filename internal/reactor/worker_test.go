package reactor

import (
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/reactord/internal/message"
	"github.com/yourusername/reactord/internal/registry"
)

// newLoopbackListener binds an ephemeral port on 127.0.0.1, matching the
// non-SO_REUSEPORT single-listener shape these tests drive a single
// WorkerReactor against.
func newLoopbackListener(t *testing.T) *listener {
	t.Helper()
	l, err := newListener(listenOptions{IP: "127.0.0.1", Port: 0, Backlog: 16})
	if err != nil {
		t.Fatalf("newListener: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func listenerPort(t *testing.T, l *listener) int {
	t.Helper()
	sa, err := unix.Getsockname(int(l.fd))
	if err != nil {
		t.Fatalf("getsockname: %v", err)
	}
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		t.Fatalf("expected IPv4 sockaddr, got %T", sa)
	}
	return sa4.Port
}

// newTestWorker wires a WorkerReactor against a real loopback listener
// and epoll instance, filling in the fields every test below needs and
// leaving the rest to the caller.
func newTestWorker(t *testing.T, cfg WorkerConfig) (w *WorkerReactor, port int) {
	t.Helper()
	p, err := NewPoller()
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}
	l := newLoopbackListener(t)
	port = listenerPort(t, l)

	cfg.CPU = -1
	cfg.Poller = p
	cfg.Listener = l
	if cfg.ReadBufSize == 0 {
		cfg.ReadBufSize = 8192
	}
	if cfg.WriteBufSize == 0 {
		cfg.WriteBufSize = 8192
	}
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.New())
	}

	w, err = NewWorkerReactor(cfg)
	if err != nil {
		t.Fatalf("NewWorkerReactor: %v", err)
	}
	return w, port
}

// runWorker launches w.Run on its own goroutine and arranges for it to
// be stopped when the test ends.
func runWorker(t *testing.T, w *WorkerReactor) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run() }()
	t.Cleanup(func() {
		w.Stop()
		if err := <-errCh; err != nil {
			t.Errorf("worker Run returned error: %v", err)
		}
	})
}

func dial(t *testing.T, port int) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(port), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// TestWorkerAcceptLoopServesRequest exercises acceptLoop end to end: a
// real TCP client dials the worker's listener, and the worker's epoll
// loop accepts, reads, dispatches, and writes the response back.
func TestWorkerAcceptLoopServesRequest(t *testing.T) {
	reg := registry.New()
	if err := reg.Register("/", message.MethodGET, func(_ *message.Request, resp *message.Response) {
		resp.Status = 200
		resp.SetBody([]byte("ok"))
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.Start()

	w, port := newTestWorker(t, WorkerConfig{ID: 0, Registry: reg})
	runWorker(t, w)

	conn := dial(t, port)
	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	resp := string(buf[:n])
	if !strings.HasPrefix(resp, "HTTP/1.1 200") {
		t.Fatalf("unexpected response: %q", resp)
	}
	if !strings.HasSuffix(resp, "ok") {
		t.Fatalf("expected body ok, got %q", resp)
	}
}

// TestWorkerReaperEvictsIdleConnection exercises reap(): a connection
// that never sends a byte must be closed, and counted as an eviction
// distinct from an ordinary close, once it has sat idle past
// ConnectionTimeout.
func TestWorkerReaperEvictsIdleConnection(t *testing.T) {
	reg := registry.New()
	reg.Start()

	var evicted, closed atomic.Int64
	w, port := newTestWorker(t, WorkerConfig{
		ID:                0,
		Registry:          reg,
		ConnectionTimeout: 30 * time.Millisecond,
		ReaperInterval:    10 * time.Millisecond,
		Closed:            func() { closed.Add(1) },
		Evicted:           func() { evicted.Add(1) },
	})
	runWorker(t, w)

	conn := dial(t, port)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	buf := make([]byte, 16)
	_, err := conn.Read(buf)
	if err == nil {
		t.Fatalf("expected the idle connection to be closed by the reaper")
	}

	if evicted.Load() != 1 {
		t.Fatalf("want 1 reaper eviction, got %d", evicted.Load())
	}
	if closed.Load() != 1 {
		t.Fatalf("want 1 Closed callback, got %d", closed.Load())
	}
}

// TestWorkerClosesSessionOnAbruptPeerDisconnect exercises
// handleSessionEvent/closeSession's Hup/error path: a client that hangs
// up without ever writing a request must still be evicted from the
// worker's session table and reported through Closed, not Evicted.
func TestWorkerClosesSessionOnAbruptPeerDisconnect(t *testing.T) {
	reg := registry.New()
	reg.Start()

	var closed, evicted atomic.Int64
	w, port := newTestWorker(t, WorkerConfig{
		ID:       0,
		Registry: reg,
		Closed:   func() { closed.Add(1) },
		Evicted:  func() { evicted.Add(1) },
	})
	runWorker(t, w)

	conn := dial(t, port)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && closed.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	if closed.Load() != 1 {
		t.Fatalf("want 1 Closed callback after abrupt disconnect, got %d", closed.Load())
	}
	if evicted.Load() != 0 {
		t.Fatalf("abrupt disconnect must not count as a reaper eviction, got %d", evicted.Load())
	}
	if w.SessionCount() != 0 {
		t.Fatalf("want session table empty after close, got %d", w.SessionCount())
	}
}
