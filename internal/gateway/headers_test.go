package gateway

import (
	"net/http"
	"testing"
)

func TestHeaders_Lookup(t *testing.T) {
	h := H("Content-Type", "text/plain", "set-cookie", "a=1", "Set-Cookie", "b=2", "dangling")

	if len(h) != 3 {
		t.Fatalf("expected dangling name to be dropped, got %d fields", len(h))
	}
	if h.Get("content-type") != "text/plain" {
		t.Errorf("expected case-insensitive Get, got %q", h.Get("content-type"))
	}
	if got := h.Values("SET-COOKIE"); len(got) != 2 || got[0] != "a=1" || got[1] != "b=2" {
		t.Errorf("expected both cookies in order, got %v", got)
	}
	if h.Has("X-Missing") {
		t.Error("expected Has to report a missing header")
	}
	if h.Get("X-Missing") != "" {
		t.Error("expected empty value for missing header")
	}
}

func TestHeaders_SetDel(t *testing.T) {
	h := H("X-Trace", "1", "x-trace", "2", "Accept", "*/*")
	h.Set("X-TRACE", "3")

	if got := h.Values("x-trace"); len(got) != 1 || got[0] != "3" {
		t.Errorf("expected single replaced value, got %v", got)
	}
	if h[len(h)-1].Name != "X-TRACE" {
		t.Errorf("expected Set to keep the new spelling, got %q", h[len(h)-1].Name)
	}

	h.Del("accept")
	if h.Has("Accept") {
		t.Error("expected Accept deleted")
	}
	h.Add("Accept", "text/csv")
	if h.Get("accept") != "text/csv" {
		t.Error("expected Add after Del to work")
	}
}

func TestHeaders_WriteToKeepsNames(t *testing.T) {
	dst := http.Header{}
	H("x-custom-id", "42", "Vary", "Accept", "Vary", "Origin").WriteTo(dst)

	if got := dst["x-custom-id"]; len(got) != 1 || got[0] != "42" {
		t.Errorf("expected lower-case name written verbatim, got %v", dst)
	}
	if _, ok := dst["X-Custom-Id"]; ok {
		t.Error("name must not be canonicalized")
	}
	if got := dst["Vary"]; len(got) != 2 {
		t.Errorf("expected repeated header kept, got %v", got)
	}
}

func TestHeaders_WriteToCanonicalTransportHeaders(t *testing.T) {
	dst := http.Header{}
	H("content-length", "5", "content-type", "application/json", "transfer-encoding", "identity", "date", "now").WriteTo(dst)

	for _, name := range []string{"Content-Length", "Content-Type", "Transfer-Encoding", "Date"} {
		if got := dst[name]; len(got) != 1 {
			t.Errorf("expected %s under its canonical key, got %v", name, dst)
		}
	}
	if _, ok := dst["content-type"]; ok {
		t.Error("content-type must not be written under a second key")
	}
}

func TestHeaders_WriteToJoinsExistingKey(t *testing.T) {
	dst := http.Header{}
	dst.Set("X-Request-ID", "req-1")
	H("x-request-id", "req-2", "X-Trace", "a").WriteTo(dst)
	H("x-trace", "b").WriteTo(dst)

	if got := dst.Values("X-Request-ID"); len(got) != 2 || got[1] != "req-2" {
		t.Errorf("expected value appended to the existing key, got %v", dst)
	}
	if _, ok := dst["x-request-id"]; ok {
		t.Error("expected no second spelling of X-Request-ID")
	}
	if got := dst["X-Trace"]; len(got) != 2 {
		t.Errorf("expected x-trace joined under X-Trace, got %v", dst)
	}
}
