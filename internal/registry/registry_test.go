package registry

import (
	"testing"

	"github.com/yourusername/reactord/internal/message"
)

func noopHandler(_ *message.Request, resp *message.Response) {
	resp.Status = 200
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	if err := r.Register("/echo", message.MethodPOST, noopHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Start()

	h, ok := r.Lookup("/echo", message.MethodPOST)
	if !ok || h == nil {
		t.Fatalf("expected lookup hit")
	}

	if _, ok := r.Lookup("/echo", message.MethodGET); ok {
		t.Fatalf("method mismatch must miss")
	}
	if _, ok := r.Lookup("/missing", message.MethodPOST); ok {
		t.Fatalf("unregistered path must miss")
	}
}

func TestDuplicateRouteRejected(t *testing.T) {
	r := New()
	if err := r.Register("/", message.MethodGET, noopHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := r.Register("/", message.MethodGET, noopHandler)
	if err == nil {
		t.Fatalf("expected DuplicateRouteError")
	}
	if _, ok := err.(*DuplicateRouteError); !ok {
		t.Fatalf("expected *DuplicateRouteError, got %T", err)
	}
}

func TestDistinctMethodsSamePathAllowed(t *testing.T) {
	r := New()
	if err := r.Register("/x", message.MethodGET, noopHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register("/x", message.MethodPOST, noopHandler); err != nil {
		t.Fatalf("unexpected error registering same path, different method: %v", err)
	}
}

func TestRegisterAfterStartRejected(t *testing.T) {
	r := New()
	r.Start()
	err := r.Register("/late", message.MethodGET, noopHandler)
	if err == nil {
		t.Fatalf("expected RegistryClosedError")
	}
	if _, ok := err.(*RegistryClosedError); !ok {
		t.Fatalf("expected *RegistryClosedError, got %T", err)
	}
}

func TestLookupOnEmptyRegistry(t *testing.T) {
	r := New()
	r.Start()
	if _, ok := r.Lookup("/", message.MethodGET); ok {
		t.Fatalf("expected miss on empty registry")
	}
}
