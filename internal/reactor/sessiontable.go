package reactor

import "github.com/yourusername/reactord/internal/session"

// slot holds one live-or-free session table entry. gen increments every
// time the slot is reused, so a stale handle (e.g. a readiness event
// for an fd that was already closed and whose slot was recycled for a
// brand new connection in the same epoll fan-out) is detected instead
// of silently operating on the wrong Session.
type slot struct {
	sess *session.Session
	fd   int32 // captured at Insert time: sess.Fd() reads -1 post-close
	gen  uint32
	free bool
}

// Handle identifies one session table entry. It is never dereferenced
// across worker/thread boundaries.
type Handle struct {
	Index int
	Gen   uint32
}

// SessionTable is the slot-index + generation-counter arena spec's
// DESIGN NOTES prescribe in place of a `vector<shared_ptr>` indexed
// directly by fd: fds get reused by the kernel the instant they're
// closed, and indexing a growing vector by raw fd wastes memory for any
// connection-heavy but sparse fd range. Instead this table is indexed
// by a small dense slot index, with an fd->slot map for readiness-event
// lookup.
//
// A SessionTable is owned by exactly one worker goroutine; nothing here
// is safe for concurrent use.
type SessionTable struct {
	slots   []slot
	freeIdx []int
	byFd    map[int32]int
}

// NewSessionTable returns an empty table pre-sized to capacityHint
// entries (e.g. max_threads-scaled fd budget) to avoid early reallocation.
func NewSessionTable(capacityHint int) *SessionTable {
	return &SessionTable{
		slots: make([]slot, 0, capacityHint),
		byFd:  make(map[int32]int, capacityHint),
	}
}

// Insert adds sess to the table and returns its Handle.
func (t *SessionTable) Insert(sess *session.Session) Handle {
	fd := sess.Fd()

	if n := len(t.freeIdx); n > 0 {
		idx := t.freeIdx[n-1]
		t.freeIdx = t.freeIdx[:n-1]
		s := &t.slots[idx]
		s.sess = sess
		s.fd = fd
		s.free = false
		t.byFd[fd] = idx
		return Handle{Index: idx, Gen: s.gen}
	}

	idx := len(t.slots)
	t.slots = append(t.slots, slot{sess: sess, fd: fd, gen: 0})
	t.byFd[fd] = idx
	return Handle{Index: idx, Gen: 0}
}

// Lookup resolves an fd reported by the poller to its Session. Returns
// (nil, false) if no live session owns that fd (already closed and
// removed this tick, or a stray event for a recycled slot).
func (t *SessionTable) Lookup(fd int32) (*session.Session, Handle, bool) {
	idx, ok := t.byFd[fd]
	if !ok {
		return nil, Handle{}, false
	}
	s := &t.slots[idx]
	if s.free {
		return nil, Handle{}, false
	}
	return s.sess, Handle{Index: idx, Gen: s.gen}, true
}

// Remove evicts the session at h, bumping its generation and returning
// the slot to the free list. A stale Handle from before this call will
// never again resolve (its Gen won't match).
func (t *SessionTable) Remove(h Handle) {
	if h.Index < 0 || h.Index >= len(t.slots) {
		return
	}
	s := &t.slots[h.Index]
	if s.free || s.gen != h.Gen {
		return
	}
	delete(t.byFd, s.fd)
	s.sess = nil
	s.fd = 0
	s.free = true
	s.gen++
	t.freeIdx = append(t.freeIdx, h.Index)
}

// Len returns the number of live sessions, exposed for the metrics
// package's per-worker session-table-size gauge (spec 4.L).
func (t *SessionTable) Len() int {
	return len(t.slots) - len(t.freeIdx)
}

// Each calls fn for every live session, used by the IdleReaper and by
// shutdown to close everything still open.
func (t *SessionTable) Each(fn func(Handle, *session.Session)) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.free {
			continue
		}
		fn(Handle{Index: i, Gen: s.gen}, s.sess)
	}
}
