package message

// Header is a small ordered vector of (key, value) byte-slice pairs with
// case-insensitive lookup. Handlers read at most a handful of headers per
// request, so a linear scan over a short slice beats a general hash map
// on cache locality — the same reasoning the teacher's inline-array
// Header type uses, adapted here to hold views rather than copies.
//
// Keys and values alias the connection's read RingBuffer: they are only
// valid until later bytes are read into that space, i.e. until the
// handler returns. Handlers that need a value to outlive that window must copy
// it (via Field.ValueString, which allocates).
type Header struct {
	fields []Field
}

// Field is one (key, value) header pair.
type Field struct {
	Key   []byte
	Value []byte
}

// ValueString copies the value out as a string, safe to retain beyond the
// request's lifetime.
func (f Field) ValueString() string { return string(f.Value) }

func equalFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Add appends a header pair, preserving insertion order and allowing
// duplicate keys (as RFC 7230 permits for most header names).
func (h *Header) Add(key, value []byte) {
	h.fields = append(h.fields, Field{Key: key, Value: value})
}

// Get returns the value of the first header matching key
// case-insensitively, and whether it was found.
func (h *Header) Get(key string) ([]byte, bool) {
	kb := []byte(key)
	for _, f := range h.fields {
		if equalFold(f.Key, kb) {
			return f.Value, true
		}
	}
	return nil, false
}

// Len returns the number of stored header fields.
func (h *Header) Len() int { return len(h.fields) }

// All returns the underlying fields slice for iteration (e.g. by the
// response serializer). Callers must not retain it past the request.
func (h *Header) All() []Field { return h.fields }

// Reset truncates the header list for reuse without releasing the
// backing array, so a pooled Header costs no allocation across requests.
func (h *Header) Reset() { h.fields = h.fields[:0] }
