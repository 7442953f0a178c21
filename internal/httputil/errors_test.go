package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, "req_123", http.StatusBadRequest, "invalid_request_error", "bad_request", "test message")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	if rid := w.Header().Get("X-Request-ID"); rid != "req_123" {
		t.Errorf("expected X-Request-ID req_123, got %s", rid)
	}

	var resp APIError
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if resp.Error.Message != "test message" {
		t.Errorf("expected message 'test message', got %q", resp.Error.Message)
	}
	if resp.Error.Type != "invalid_request_error" {
		t.Errorf("expected type 'invalid_request_error', got %q", resp.Error.Type)
	}
	if resp.Error.RequestID != "req_123" {
		t.Errorf("expected request_id 'req_123', got %q", resp.Error.RequestID)
	}
}

func TestWriteHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, string, string)
		status int
		code   string
	}{
		{"rate limit", WriteRateLimitError, http.StatusTooManyRequests, "rate_limit_exceeded"},
		{"bad request", WriteBadRequestError, http.StatusBadRequest, "invalid_request"},
		{"not found", WriteNotFoundError, http.StatusNotFound, "not_found"},
		{"internal", WriteInternalError, http.StatusInternalServerError, "internal_error"},
		{"unavailable", WriteServiceUnavailableError, http.StatusServiceUnavailable, "service_unavailable"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		tt.write(w, "req_456", "message")

		if w.Code != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.name, tt.status, w.Code)
		}
		var resp APIError
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Error.Code != tt.code {
			t.Errorf("%s: expected code %q, got %q", tt.name, tt.code, resp.Error.Code)
		}
	}
}
