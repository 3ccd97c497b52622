package reactor

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// Wakeup is a per-worker eventfd counter (spec 4.F: "its own ... wakeup
// counter"). Poke is safe to call from any goroutine (e.g. the
// process's signal handler or the fallback Acceptor); Drain must only
// be called from the owning worker after the poller reports it
// readable.
type Wakeup struct {
	fd int32
}

// NewWakeup creates a non-blocking eventfd counter and arms READ
// interest for it on p.
func NewWakeup(p *Poller) (*Wakeup, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	w := &Wakeup{fd: int32(fd)}
	if err := p.AddRead(w.fd); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return w, nil
}

// Fd returns the eventfd descriptor, compared against Readiness.Fd in
// the worker loop to recognize a wakeup event.
func (w *Wakeup) Fd() int32 { return w.fd }

// Poke increments the counter by one, waking a blocked EpollWait.
func (w *Wakeup) Poke() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(int(w.fd), buf[:])
	return err
}

// Drain reads (and discards) the accumulated counter value so the
// eventfd stops reporting readable.
func (w *Wakeup) Drain() {
	var buf [8]byte
	unix.Read(int(w.fd), buf[:])
}

// Close releases the eventfd.
func (w *Wakeup) Close() error { return unix.Close(int(w.fd)) }
