// Package parser implements the incremental HTTP/1.1 request-line +
// headers + optional body parser described in spec §4.C. It runs over a
// Session's contiguous read-buffer view and never consumes bytes until it
// reports Complete.
package parser

import (
	"bytes"

	"github.com/yourusername/reactord/internal/message"
)

// Result is the outcome of one Parse call.
type Result int

const (
	// NeedMore: not enough bytes are available yet; the caller should
	// re-arm READ interest and wait for more data.
	NeedMore Result = iota
	// Complete: a full request was parsed; Parse's consumed return value
	// tells the caller how many bytes to advance the read buffer by.
	Complete
	// Malformed: the bytes available can never form a valid request; the
	// caller must not advance the read buffer and should respond 400.
	Malformed
)

func (r Result) String() string {
	switch r {
	case NeedMore:
		return "NeedMore"
	case Complete:
		return "Complete"
	case Malformed:
		return "Malformed"
	default:
		return "?"
	}
}

const (
	// MinRequestSize is the minimum number of bytes that must be present
	// before the parser will even look for a request line (spec step 1).
	MinRequestSize = 16

	// MaxHeaderKeyLen bounds an individual header name (spec edge policy).
	MaxHeaderKeyLen = 256
)

var (
	crlf     = []byte("\r\n")
	crlfcrlf = []byte("\r\n\r\n")

	httpVersion11 = "HTTP/1.1"
)

// Parser is stateless across requests: all of its working state is the
// byte slice handed to Parse and the Request it fills in. A single
// Parser instance is reused for every request on a connection (the
// Session owns exactly one), so Parse performs no allocation of its own
// beyond what filling in Request.Headers requires.
type Parser struct{}

// New returns a ready-to-use Parser.
func New() *Parser { return &Parser{} }

// Parse runs the algorithm in spec §4.C over view, the Session's
// contiguous read-buffer view, filling req on Complete. fullBufCapacity
// is the capacity of the owning read RingBuffer: if no header terminator
// is found within a view that has already grown to the buffer's full
// capacity, the request can never fit and parsing fails Malformed
// ("headers too large") rather than looping on NeedMore forever.
// maxBodySize bounds Content-Length (spec P3).
//
// On Complete, the returned consumed count is how many bytes of view
// (headers + body) the caller must advance the read buffer past. On
// NeedMore or Malformed, consumed is always 0 — the caller must not
// advance the buffer, per the parser's "MUST NOT consume data until it
// returns Complete" contract.
func (p *Parser) Parse(view []byte, fullBufCapacity int, req *message.Request, maxBodySize uint64) (result Result, consumed int, reason string) {
	if len(view) < MinRequestSize {
		return NeedMore, 0, ""
	}

	headersEnd := bytes.Index(view, crlfcrlf)
	if headersEnd < 0 {
		if len(view) >= fullBufCapacity {
			return Malformed, 0, "headers too large"
		}
		return NeedMore, 0, ""
	}

	// The first CRLF of the terminator ends the last header line (or the
	// request line itself when there are no headers), so it is included.
	requestLineEnd := bytes.Index(view[:headersEnd+2], crlf)
	if requestLineEnd < 0 {
		// No bare CRLF before the blank line means the "request line" IS
		// the blank line — malformed either way.
		return Malformed, 0, "missing request line terminator"
	}

	requestLine := view[:requestLineEnd]
	if !parseRequestLine(requestLine, req) {
		return Malformed, 0, "invalid request line"
	}

	headerBlock := view[requestLineEnd+2 : headersEnd+2]
	if ok, why := parseHeaders(headerBlock, req, maxBodySize); !ok {
		return Malformed, 0, why
	}

	computeKeepAlive(req)

	bodyStart := headersEnd + len(crlfcrlf)

	if req.ContentLength <= 0 {
		req.Body = view[bodyStart:bodyStart]
		return Complete, bodyStart, ""
	}

	bodyEnd := bodyStart + int(req.ContentLength)
	if len(view) < bodyEnd {
		return NeedMore, 0, ""
	}

	req.Body = view[bodyStart:bodyEnd]
	return Complete, bodyEnd, ""
}

// parseRequestLine splits "METHOD PATH VERSION" on the first two spaces.
// Returns false (Malformed) if a separating space is absent or the path
// is empty; an unrecognized method still parses successfully (method becomes
// MethodUnknown, handled by the Session as a 405 at dispatch time).
func parseRequestLine(line []byte, req *message.Request) bool {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 < 0 {
		return false
	}
	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 < 0 {
		return false
	}

	methodTok := line[:sp1]
	pathTok := rest[:sp2]
	versionTok := rest[sp2+1:]

	if len(pathTok) == 0 {
		return false
	}

	req.Method = message.ParseMethod(methodTok)
	req.SetPath(pathTok)
	req.Version = versionTok
	return true
}

// parseHeaders walks header lines until the block is exhausted (the
// caller passes every header line with its CRLF and leaves out the
// final blank line). Any line lacking a
// ':' before its end is Malformed — header continuations are rejected by
// design (spec step 5).
func parseHeaders(block []byte, req *message.Request, maxBodySize uint64) (ok bool, reason string) {
	var sawContentLength bool
	pos := 0

	for pos < len(block) {
		lineEnd := bytes.Index(block[pos:], crlf)
		if lineEnd < 0 {
			return false, "header line missing CRLF"
		}
		lineEnd += pos
		line := block[pos:lineEnd]
		pos = lineEnd + 2

		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			return false, "header missing colon"
		}

		key := line[:colon]
		if len(key) == 0 || len(key) > MaxHeaderKeyLen {
			return false, "header key too large"
		}

		value := line[colon+1:]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}

		req.Headers.Add(key, value)

		switch {
		case equalFold(key, "Content-Length"):
			if sawContentLength {
				return false, "duplicate Content-Length"
			}
			sawContentLength = true

			n, ok := parseDecimal(value)
			if !ok {
				return false, "invalid Content-Length"
			}
			if uint64(n) > maxBodySize {
				return false, "Content-Length exceeds max body size"
			}
			req.ContentLength = n

		case equalFold(key, "Connection"):
			if equalFold(value, "keep-alive") {
				req.KeepAlive = true
			} else if equalFold(value, "close") {
				req.KeepAlive = false
			}
		}
	}

	return true, ""
}

// computeKeepAlive applies the version-dependent default (spec step 7)
// when the Connection header didn't already pin a value. parseHeaders
// only sets req.KeepAlive when it sees an explicit Connection header; we
// detect "no explicit header was seen" by checking for the header here
// rather than threading an extra bool through parseHeaders.
func computeKeepAlive(req *message.Request) {
	if _, present := req.Headers.Get("Connection"); present {
		return // already pinned by parseHeaders
	}
	req.KeepAlive = string(req.Version) == httpVersion11
}

// parseDecimal parses an unsigned decimal integer; any non-digit byte,
// or an empty input, is rejected outright (spec step 6).
func parseDecimal(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		next := n*10 + int64(c-'0')
		if next < n {
			return 0, false // overflow
		}
		n = next
	}
	return n, true
}

func equalFold(a []byte, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca := a[i]
		cb := b[i]
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
