package session

import "sync/atomic"

// atomicFd wraps the session's socket descriptor so close is idempotent
// and race-safe against the owning worker's read/write path — the only
// field on a Session that spec §5 calls out as needing an atomic (a
// reaper running on the same worker thread and a closing handler path
// could otherwise race a double-close).
type atomicFd struct {
	v int32
}

func (a *atomicFd) store(fd int32) { atomic.StoreInt32(&a.v, fd) }
func (a *atomicFd) load() int32    { return atomic.LoadInt32(&a.v) }

func (a *atomicFd) swap(fd int32) int32 { return atomic.SwapInt32(&a.v, fd) }
