package httputil

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestWriteAuthError_Uniform(t *testing.T) {
	w := httptest.NewRecorder()
	WriteAuthError(w, "req-1")

	if w.Code != 401 {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var body APIError
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body.Error.Message != "Invalid session" {
		t.Errorf("message = %q, want the uniform text", body.Error.Message)
	}
	if body.Error.RequestID != "req-1" {
		t.Errorf("request_id = %q", body.Error.RequestID)
	}
}

func TestWriteBlockedError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteBlockedError(w, "req-2")

	if w.Code != 422 {
		t.Errorf("status = %d, want 422", w.Code)
	}
	var body APIError
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Error.Code != "blocked" {
		t.Errorf("code = %q, want blocked", body.Error.Code)
	}
	if body.Error.Message != "Message not allowed" {
		t.Errorf("message = %q, must stay generic", body.Error.Message)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *httptest.ResponseRecorder)
		code  int
	}{
		{"bad request", func(w *httptest.ResponseRecorder) { WriteBadRequestError(w, "r", "message is required") }, 400},
		{"mission", func(w *httptest.ResponseRecorder) { WriteMissionError(w, "r", "Mission rejected") }, 403},
		{"rate limit", func(w *httptest.ResponseRecorder) { WriteRateLimitError(w, "r", "slow down") }, 429},
		{"upstream", func(w *httptest.ResponseRecorder) { WriteUpstreamError(w, "r") }, 502},
		{"internal", func(w *httptest.ResponseRecorder) { WriteInternalError(w, "r", "oops") }, 500},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		tt.write(w)
		if w.Code != tt.code {
			t.Errorf("%s: status = %d, want %d", tt.name, w.Code, tt.code)
		}
	}
}
