package message

// Request is the typed carrier of one parsed HTTP/1.1 request. It is
// created once per Session and reset() at the start of each request
// cycle so the instance can be reused without allocation across a
// keep-alive connection's requests.
//
// Version, the header keys/values, and Body all alias the Session's read
// RingBuffer. The Session advances the buffer past them before dispatch,
// but the bytes stay in place until the next read into the buffer, which
// happens only after the handler returns and the response has been
// serialized; the views are valid until then. Path is copied out of the buffer
// (by ExtractQueryParams / SetPath) because handlers commonly retain it
// (e.g. to build log lines) past that point.
type Request struct {
	Method  Method
	Path    string
	Version []byte
	Headers Header
	Body    []byte
	Query   map[string]string

	// KeepAlive reflects the Connection header / protocol-version default
	// computed during parsing (step 7 of the parser contract).
	KeepAlive bool

	// ContentLength is -1 when absent, otherwise the parsed decimal value
	// of the Content-Length header.
	ContentLength int64
}

// SetPath stores the request path (with query stripped) and runs
// ExtractQueryParams, populating Query and rewriting Path to the portion
// before '?'. The supplied raw path is a view into the read buffer;
// SetPath copies it into an owned string before splitting so that Path
// and Query remain valid after the buffer is reused.
func (r *Request) SetPath(rawPath []byte) {
	owned := string(rawPath)
	base, query := ExtractQueryParams(owned)
	r.Path = base
	r.Query = query
}

// Reset clears all fields so the Request can be reused for the next
// request cycle without allocating a new instance. The Headers vector
// keeps its backing array (Header.Reset only truncates).
func (r *Request) Reset() {
	r.Method = MethodUnknown
	r.Path = ""
	r.Version = nil
	r.Headers.Reset()
	r.Body = nil
	r.Query = nil
	r.KeepAlive = false
	r.ContentLength = -1
}

// NewRequest returns a freshly reset Request ready for its first parse.
func NewRequest() *Request {
	r := &Request{}
	r.Reset()
	return r
}
