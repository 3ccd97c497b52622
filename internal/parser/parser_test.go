package parser

import (
	"testing"

	"github.com/yourusername/reactord/internal/message"
)

const testCapacity = 8192

func newReq() *message.Request { return message.NewRequest() }

func TestParseSimpleGet(t *testing.T) {
	p := New()
	req := newReq()
	raw := []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")

	res, consumed, reason := p.Parse(raw, testCapacity, req, 1<<20)
	if res != Complete {
		t.Fatalf("want Complete, got %v (%s)", res, reason)
	}
	if consumed != len(raw) {
		t.Fatalf("want consumed=%d, got %d", len(raw), consumed)
	}
	if req.Method != message.MethodGET || req.Path != "/" {
		t.Fatalf("unexpected method/path: %v %q", req.Method, req.Path)
	}
	if !req.KeepAlive {
		t.Fatalf("HTTP/1.1 defaults to keep-alive")
	}
}

func TestParseWithBody(t *testing.T) {
	p := New()
	req := newReq()
	raw := []byte("POST /echo HTTP/1.1\r\nHost: x\r\nContent-Length: 5\r\n\r\nhello")

	res, consumed, reason := p.Parse(raw, testCapacity, req, 1<<20)
	if res != Complete {
		t.Fatalf("want Complete, got %v (%s)", res, reason)
	}
	if consumed != len(raw) {
		t.Fatalf("consumed=%d want=%d", consumed, len(raw))
	}
	if string(req.Body) != "hello" {
		t.Fatalf("body=%q", req.Body)
	}
}

// P1: feeding a well-formed request one byte at a time yields NeedMore
// until the final byte, then Complete with the full length consumed.
func TestParseByteAtATimeCompleteness(t *testing.T) {
	raw := []byte("GET /x HTTP/1.1\r\nHost: y\r\nContent-Length: 3\r\n\r\nabc")

	for k := MinRequestSize; k < len(raw); k++ {
		p := New()
		req := newReq()
		res, _, _ := p.Parse(raw[:k], testCapacity, req, 1<<20)
		if res == Complete {
			t.Fatalf("unexpectedly complete at k=%d (want NeedMore before full length)", k)
		}
	}

	p := New()
	req := newReq()
	res, consumed, reason := p.Parse(raw, testCapacity, req, 1<<20)
	if res != Complete {
		t.Fatalf("want Complete at full length, got %v (%s)", res, reason)
	}
	if consumed != len(raw) {
		t.Fatalf("consumed=%d want=%d", consumed, len(raw))
	}
}

func TestParseTooShortYieldsNeedMore(t *testing.T) {
	p := New()
	req := newReq()
	res, _, _ := p.Parse([]byte("GET /"), testCapacity, req, 1<<20)
	if res != NeedMore {
		t.Fatalf("want NeedMore, got %v", res)
	}
}

func TestParseMissingSpaceMalformed(t *testing.T) {
	p := New()
	req := newReq()
	raw := []byte("GETONLYONETOKENHERE\r\nHost: x\r\n\r\n")
	res, consumed, _ := p.Parse(raw, testCapacity, req, 1<<20)
	if res != Malformed {
		t.Fatalf("want Malformed, got %v", res)
	}
	if consumed != 0 {
		t.Fatalf("malformed must not consume, got %d", consumed)
	}
}

func TestParseHeaderWithoutColonMalformed(t *testing.T) {
	p := New()
	req := newReq()
	raw := []byte("GET / HTTP/1.1\r\nBrokenHeaderNoColon\r\n\r\n")
	res, _, _ := p.Parse(raw, testCapacity, req, 1<<20)
	if res != Malformed {
		t.Fatalf("want Malformed, got %v", res)
	}
}

func TestParseDuplicateContentLengthMalformed(t *testing.T) {
	p := New()
	req := newReq()
	raw := []byte("POST / HTTP/1.1\r\nContent-Length: 5\r\nContent-Length: 5\r\n\r\nhello")
	res, _, _ := p.Parse(raw, testCapacity, req, 1<<20)
	if res != Malformed {
		t.Fatalf("want Malformed for duplicate Content-Length, got %v", res)
	}
}

func TestParseContentLengthNonDigitMalformed(t *testing.T) {
	p := New()
	req := newReq()
	raw := []byte("POST / HTTP/1.1\r\nContent-Length: 5x\r\n\r\nhello")
	res, _, _ := p.Parse(raw, testCapacity, req, 1<<20)
	if res != Malformed {
		t.Fatalf("want Malformed, got %v", res)
	}
}

// P3: Content-Length > max_body_size yields Malformed without ever
// building a body view.
func TestParseContentLengthOverMaxBodySize(t *testing.T) {
	p := New()
	req := newReq()
	raw := []byte("POST / HTTP/1.1\r\nContent-Length: 999999999999\r\n\r\n")
	res, _, reason := p.Parse(raw, testCapacity, req, 1<<20)
	if res != Malformed {
		t.Fatalf("want Malformed, got %v (%s)", res, reason)
	}
	if req.Body != nil {
		t.Fatalf("body must stay nil on Malformed")
	}
}

func TestParseBodyNeedsMoreBytes(t *testing.T) {
	p := New()
	req := newReq()
	raw := []byte("POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc")
	res, consumed, _ := p.Parse(raw, testCapacity, req, 1<<20)
	if res != NeedMore {
		t.Fatalf("want NeedMore, got %v", res)
	}
	if consumed != 0 {
		t.Fatalf("NeedMore must not consume")
	}
}

func TestParseHeadersTooLargeMalformed(t *testing.T) {
	p := New()
	req := newReq()
	// No CRLFCRLF anywhere, and the view already equals the buffer's full
	// capacity: can never find the terminator, so it's Malformed rather
	// than an infinite NeedMore.
	raw := make([]byte, 64)
	for i := range raw {
		raw[i] = 'a'
	}
	res, _, reason := p.Parse(raw, 64, req, 1<<20)
	if res != Malformed {
		t.Fatalf("want Malformed, got %v (%s)", res, reason)
	}
}

func TestParseConnectionCloseOverridesDefault(t *testing.T) {
	p := New()
	req := newReq()
	raw := []byte("GET / HTTP/1.1\r\nConnection: close\r\n\r\n")
	res, _, _ := p.Parse(raw, testCapacity, req, 1<<20)
	if res != Complete {
		t.Fatalf("want Complete, got %v", res)
	}
	if req.KeepAlive {
		t.Fatalf("Connection: close must disable keep-alive")
	}
}

func TestParseHTTP10DefaultsToClose(t *testing.T) {
	p := New()
	req := newReq()
	raw := []byte("GET / HTTP/1.0\r\nHost: x\r\n\r\n")
	res, _, _ := p.Parse(raw, testCapacity, req, 1<<20)
	if res != Complete {
		t.Fatalf("want Complete, got %v", res)
	}
	if req.KeepAlive {
		t.Fatalf("HTTP/1.0 without Connection: keep-alive must default to close")
	}
}

func TestParseHTTP10KeepAliveHeader(t *testing.T) {
	p := New()
	req := newReq()
	raw := []byte("GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n")
	res, _, _ := p.Parse(raw, testCapacity, req, 1<<20)
	if res != Complete {
		t.Fatalf("want Complete, got %v", res)
	}
	if !req.KeepAlive {
		t.Fatalf("explicit keep-alive on HTTP/1.0 must be honored")
	}
}

func TestParseUnknownMethodCompletesAsUnknown(t *testing.T) {
	p := New()
	req := newReq()
	raw := []byte("FROBNICATE / HTTP/1.1\r\nHost: x\r\n\r\n")
	res, _, reason := p.Parse(raw, testCapacity, req, 1<<20)
	if res != Complete {
		t.Fatalf("unknown method must still parse as Complete, got %v (%s)", res, reason)
	}
	if req.Method != message.MethodUnknown {
		t.Fatalf("want MethodUnknown, got %v", req.Method)
	}
}

func TestParseQueryParamsExtracted(t *testing.T) {
	p := New()
	req := newReq()
	raw := []byte("GET /search?q=hello+world&x=1 HTTP/1.1\r\nHost: x\r\n\r\n")
	res, _, _ := p.Parse(raw, testCapacity, req, 1<<20)
	if res != Complete {
		t.Fatalf("want Complete, got %v", res)
	}
	if req.Path != "/search" {
		t.Fatalf("path=%q", req.Path)
	}
	if req.Query["q"] != "hello world" || req.Query["x"] != "1" {
		t.Fatalf("query=%v", req.Query)
	}
}

// P2 (parser safety): feeding adversarial/truncated input never panics
// and never reports Complete with a consumed length beyond the view.
func TestParseAdversarialInputsNeverPanicOrOverrun(t *testing.T) {
	inputs := [][]byte{
		{},
		[]byte("\r\n\r\n"),
		[]byte(":::::::::::::::\r\n\r\n"),
		[]byte("GET"),
		[]byte("GET \r\n\r\n"),
		[]byte("GET / HTTP/1.1\r\n\r\n\r\n\r\n"),
		[]byte("GET / HTTP/1.1\r\nContent-Length: -1\r\n\r\n"),
		[]byte("GET / HTTP/1.1\r\nContent-Length: 99999999999999999999999999\r\n\r\n"),
	}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("panic on input %q: %v", in, r)
				}
			}()
			p := New()
			req := newReq()
			res, consumed, _ := p.Parse(in, testCapacity, req, 1<<20)
			if res == Complete && consumed > len(in) {
				t.Fatalf("consumed %d exceeds view length %d for input %q", consumed, len(in), in)
			}
		}()
	}
}
