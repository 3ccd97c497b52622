package reactor

import "sync/atomic"

// Stats mirrors the counters the teacher's BaseServer tracks, widened to
// the fields spec's metrics section (4.L) names: per-process atomic
// counters safe to read from any goroutine (e.g. the metrics collector)
// while only ever written by worker threads.
type Stats struct {
	TotalConnections  atomic.Uint64
	ActiveConnections atomic.Int64
	TotalRequests     atomic.Uint64
	BytesRead         atomic.Uint64
	BytesWritten      atomic.Uint64
	ConnectionErrors  atomic.Uint64
	RequestErrors     atomic.Uint64
	ReaperEvictions   atomic.Uint64
}
