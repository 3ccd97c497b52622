// Package ringbuf provides a fixed-capacity circular byte buffer with
// contiguous view accessors for zero-copy socket I/O.
package ringbuf

// RingBuffer is a bounded single-producer/single-consumer circular byte
// buffer. It exposes contiguous read/write views so that socket I/O can
// operate directly on the backing array without an intermediate copy.
//
// A RingBuffer is not safe for concurrent use and is never resized after
// construction. It is exclusively owned by whichever Session holds it;
// per the reactor's I2 invariant, all calls happen on the worker thread
// that owns the buffer.
type RingBuffer struct {
	buf  []byte
	r    int // read index, 0 <= r < cap
	w    int // write index, 0 <= w < cap
	size int // unread byte count, 0 <= size <= cap
}

// New allocates a RingBuffer with the given fixed capacity.
func New(capacity int) *RingBuffer {
	if capacity <= 0 {
		panic("ringbuf: capacity must be positive")
	}
	return &RingBuffer{buf: make([]byte, capacity)}
}

// Capacity returns the fixed capacity C of the buffer.
func (b *RingBuffer) Capacity() int { return len(b.buf) }

// Size returns the number of unread bytes currently buffered.
func (b *RingBuffer) Size() int { return b.size }

// Free returns the number of bytes that can still be written.
func (b *RingBuffer) Free() int { return len(b.buf) - b.size }

// Clear resets the buffer to empty without touching the backing array.
func (b *RingBuffer) Clear() {
	b.r = 0
	b.w = 0
	b.size = 0
}

// GetReadView returns the longest contiguous run of unread bytes, i.e.
// min(size, capacity-r) bytes starting at the read index. It never spans
// the wrap point. Callers that need a larger contiguous view than this
// returns must copy; GetReadView itself never copies.
func (b *RingBuffer) GetReadView() []byte {
	if b.size == 0 {
		return b.buf[b.r:b.r]
	}
	n := b.size
	if run := len(b.buf) - b.r; run < n {
		n = run
	}
	return b.buf[b.r : b.r+n]
}

// GetWriteView returns the longest contiguous run of free space, i.e.
// min(capacity-size, capacity-w) bytes starting at the write index. It
// never spans the wrap point.
func (b *RingBuffer) GetWriteView() []byte {
	free := b.Free()
	if free == 0 {
		return b.buf[b.w:b.w]
	}
	n := free
	if run := len(b.buf) - b.w; run < n {
		n = run
	}
	return b.buf[b.w : b.w+n]
}

// AdvanceRead moves the read index forward by n bytes and shrinks size
// accordingly. Per the buffer's contract, n is clamped to size: a caller
// asking to advance past the available unread bytes is a caller error,
// not a panic.
func (b *RingBuffer) AdvanceRead(n int) {
	if n <= 0 {
		return
	}
	if n > b.size {
		n = b.size
	}
	b.r = (b.r + n) % len(b.buf)
	b.size -= n
}

// AdvanceWrite moves the write index forward by n bytes and grows size
// accordingly. n is clamped to the free space available before the call.
func (b *RingBuffer) AdvanceWrite(n int) {
	if n <= 0 {
		return
	}
	if free := b.Free(); n > free {
		n = free
	}
	b.w = (b.w + n) % len(b.buf)
	b.size += n
}

// Read copies up to len(dest) unread bytes into dest, handling wrap-around
// with at most two memcpy-equivalent copies, and advances the read index
// by the number of bytes copied. It returns the number of bytes copied.
func (b *RingBuffer) Read(dest []byte) int {
	want := len(dest)
	if want > b.size {
		want = b.size
	}
	if want == 0 {
		return 0
	}

	first := b.GetReadView()
	n1 := copy(dest[:want], first)
	b.AdvanceRead(n1)

	if n1 < want {
		second := b.GetReadView()
		n2 := copy(dest[n1:want], second)
		b.AdvanceRead(n2)
		return n1 + n2
	}
	return n1
}

// Write copies up to len(src) bytes into the buffer's free space,
// handling wrap-around with at most two memcpy-equivalent copies, and
// advances the write index by the number of bytes copied. It returns the
// number of bytes actually written; if the buffer has insufficient free
// space the write is short (never partial-and-erroring — the contract is
// "write as much as fits").
func (b *RingBuffer) Write(src []byte) int {
	want := len(src)
	if free := b.Free(); want > free {
		want = free
	}
	if want == 0 {
		return 0
	}

	first := b.GetWriteView()
	n1 := copy(first, src[:want])
	b.AdvanceWrite(n1)

	if n1 < want {
		second := b.GetWriteView()
		n2 := copy(second, src[n1:want])
		b.AdvanceWrite(n2)
		return n1 + n2
	}
	return n1
}
