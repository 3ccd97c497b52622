package reactor

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/reactord/internal/registry"
	"github.com/yourusername/reactord/internal/session"
)

// ServerConfig is the subset of internal/config.Config the reactor
// package needs; kept separate from that package's viper/cobra-facing
// Config so reactor has no dependency on the CLI/config stack.
type ServerConfig struct {
	IP                string
	Port              int
	MaxThreads        int
	BacklogSize       int
	ConnectionTimeout time.Duration
	MaxBodySize       uint64
	MaxRequestSize    int
	MaxResponseSize   int
	ReusePort         bool
	ServerHeader      string
}

// Server wires N WorkerReactors (or 1 Acceptor + N WorkerReactors in the
// fallback model) to a Registry, the way the teacher's BaseServer wires
// a net.Listener to its handler and Stats. Unlike the teacher, workers
// here are raw epoll loops rather than per-connection goroutines.
type Server struct {
	cfg      ServerConfig
	registry *registry.Registry
	log      *logrus.Entry
	stats    Stats

	workers  []*WorkerReactor
	acceptor *Acceptor
}

// NewServer constructs a Server. reg must already have every route
// Registered; Start calls reg.Start() to freeze it.
func NewServer(cfg ServerConfig, reg *registry.Registry, log *logrus.Entry) *Server {
	if cfg.MaxThreads <= 0 || cfg.MaxThreads > runtime.NumCPU() {
		cfg.MaxThreads = runtime.NumCPU()
	}
	return &Server{cfg: cfg, registry: reg, log: log}
}

// Stats returns the process-wide counters, consulted by the metrics
// package (spec 4.L).
func (s *Server) Stats() *Stats { return &s.stats }

// SessionCounts returns the live session count per worker, for the
// metrics package's per-worker gauge.
func (s *Server) SessionCounts() []int {
	counts := make([]int, len(s.workers))
	for i, w := range s.workers {
		counts[i] = w.SessionCount()
	}
	return counts
}

// Start builds every worker (and, in the fallback model, the single
// Acceptor), freezes the Registry, and launches each worker's Run loop
// on its own goroutine pinned to its own OS thread. It returns as soon
// as those goroutines are launched, without waiting for the loops to
// start, or earlier with the first setup error.
func (s *Server) Start() error {
	s.registry.Start()

	s.workers = make([]*WorkerReactor, s.cfg.MaxThreads)

	for i := 0; i < s.cfg.MaxThreads; i++ {
		p, err := NewPoller()
		if err != nil {
			return fmt.Errorf("worker %d: create poller: %w", i, err)
		}

		wcfg := WorkerConfig{
			ID:                i,
			CPU:               i,
			Poller:            p,
			Registry:          s.registry,
			ReadBufSize:       s.cfg.MaxRequestSize,
			WriteBufSize:      s.cfg.MaxResponseSize,
			MaxBodySize:       s.cfg.MaxBodySize,
			ConnectionTimeout: s.cfg.ConnectionTimeout,
			ServerHeader:      s.cfg.ServerHeader,
			Log:               s.log.WithField("worker_id", i),
			Accepted: func(_ int) {
				s.stats.TotalConnections.Add(1)
				s.stats.ActiveConnections.Add(1)
			},
			Closed: func() {
				s.stats.ActiveConnections.Add(-1)
			},
			Evicted: func() {
				s.stats.ReaperEvictions.Add(1)
			},
			Counters: &session.Counters{
				RequestDispatched: func() { s.stats.TotalRequests.Add(1) },
				RequestErrored:    func() { s.stats.RequestErrors.Add(1) },
				ConnectionErrored: func() { s.stats.ConnectionErrors.Add(1) },
				BytesRead:         func(n int) { s.stats.BytesRead.Add(uint64(n)) },
				BytesWritten:      func(n int) { s.stats.BytesWritten.Add(uint64(n)) },
			},
		}

		if s.cfg.ReusePort {
			ln, err := newListener(listenOptions{
				IP: s.cfg.IP, Port: s.cfg.Port, Backlog: s.cfg.BacklogSize, ReusePort: true,
			})
			if err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			wcfg.Listener = ln
		}

		w, err := NewWorkerReactor(wcfg)
		if err != nil {
			return fmt.Errorf("worker %d: create wakeup: %w", i, err)
		}
		s.workers[i] = w
	}

	if !s.cfg.ReusePort {
		acc, err := NewAcceptor(listenOptions{
			IP: s.cfg.IP, Port: s.cfg.Port, Backlog: s.cfg.BacklogSize,
		}, s.workers, s.log.WithField("component", "acceptor"))
		if err != nil {
			return err
		}
		s.acceptor = acc
	}

	for _, w := range s.workers {
		w := w
		go func() {
			if err := w.Run(); err != nil {
				s.log.WithError(err).Error("worker exited")
			}
		}()
	}
	if s.acceptor != nil {
		go func() {
			if err := s.acceptor.Run(); err != nil {
				s.log.WithError(err).Error("acceptor exited")
			}
		}()
	}

	return nil
}

// Shutdown implements spec §4.F's shutdown contract: pokes every
// worker's wakeup counter and blocks until each has finished its
// current event fan-out, closed every session, and exited.
func (s *Server) Shutdown() {
	if s.acceptor != nil {
		s.acceptor.Stop()
	}
	for _, w := range s.workers {
		w.Stop()
	}
}
