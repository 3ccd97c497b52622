package message

import (
	"strconv"

	"github.com/valyala/bytebufferpool"
	"github.com/yourusername/reactord/internal/ringbuf"
)

// MaxResponseHeaders bounds the ordered header sequence an HttpResponse
// may carry, matching the design-configurable MAX_HEADERS named in the
// spec (4.B).
const MaxResponseHeaders = 32

var crlf = []byte("\r\n")
var headerSep = []byte(": ")

// Response is an HttpResponse under construction: an integer status
// (default 200), a version string, an ordered bounded sequence of
// (key,value) headers, and a body. Serialize writes the whole thing —
// status line, headers, blank line, body — into a RingBuffer in one
// pass, the way the spec's setBody contract describes.
type Response struct {
	Status  int
	Version string

	headerKeys   [MaxResponseHeaders]string
	headerVals   [MaxResponseHeaders]string
	headerCount  int

	Body []byte
}

// Reset clears the response for reuse across a keep-alive connection's
// requests without reallocating the instance.
func (r *Response) Reset() {
	r.Status = 200
	r.Version = "HTTP/1.1"
	r.headerCount = 0
	r.Body = nil
}

// NewResponse returns a freshly reset Response.
func NewResponse() *Response {
	r := &Response{}
	r.Reset()
	return r
}

// SetHeader appends a response header, dropping it (rather than
// panicking) once MaxResponseHeaders is reached — a handler that emits
// too many headers loses the overflow, not the whole response.
func (r *Response) SetHeader(key, value string) {
	if r.headerCount >= MaxResponseHeaders {
		return
	}
	r.headerKeys[r.headerCount] = key
	r.headerVals[r.headerCount] = value
	r.headerCount++
}

// Header returns the value of a previously-set header, case-insensitively.
func (r *Response) Header(key string) (string, bool) {
	for i := 0; i < r.headerCount; i++ {
		if equalFold([]byte(r.headerKeys[i]), []byte(key)) {
			return r.headerVals[i], true
		}
	}
	return "", false
}

// SetBody records the response body and appends the Content-Length
// header computed from its length. It does not itself write to the
// wire — call Serialize to do that — but it is named SetBody (rather
// than a plain field assignment) to mirror the spec's contract that
// setting the body is what produces the Content-Length header.
func (r *Response) SetBody(body []byte) {
	r.Body = body
	r.SetHeader("Content-Length", strconv.Itoa(len(body)))
}

// Serialize writes "VERSION STATUS REASON\r\n" + each header + "\r\n" +
// body into dst in one pass. It stages the full response in a pooled
// byte buffer before copying it into the RingBuffer so a single RingBuffer
// Write call (and its at-most-two-memcpy wrap handling) sees the whole
// message rather than dozens of tiny writes.
func (r *Response) Serialize(dst *ringbuf.RingBuffer) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.WriteString(r.Version)
	buf.WriteByte(' ')
	buf.WriteString(strconv.Itoa(r.Status))
	buf.WriteByte(' ')
	buf.WriteString(ReasonPhrase(r.Status))
	buf.Write(crlf)

	for i := 0; i < r.headerCount; i++ {
		buf.WriteString(r.headerKeys[i])
		buf.Write(headerSep)
		buf.WriteString(r.headerVals[i])
		buf.Write(crlf)
	}
	buf.Write(crlf)

	if len(r.Body) > 0 {
		buf.Write(r.Body)
	}

	dst.Write(buf.Bytes())
}
