package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMiddleware_InjectsIdentity(t *testing.T) {
	srv := introspectionServer(t, func(token string) (int, introspectionResponse) {
		return 200, introspectionResponse{Active: true, Subject: "user-9"}
	})
	defer srv.Close()

	gate := NewGate(srv.URL, "", time.Second, nil)

	var seen *Identity
	handler := Middleware(gate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
	}))

	r := httptest.NewRequest("POST", "/v1/chat", nil)
	r.Header.Set("Authorization", "Bearer tok")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if seen == nil || seen.Subject != "user-9" {
		t.Fatalf("identity in context = %+v, want subject user-9", seen)
	}
}

func TestMiddleware_MissingHeaderIs401(t *testing.T) {
	srv := introspectionServer(t, func(string) (int, introspectionResponse) {
		t.Error("introspection must not be called without a bearer token")
		return 200, introspectionResponse{}
	})
	defer srv.Close()

	gate := NewGate(srv.URL, "", time.Second, nil)
	handler := Middleware(gate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/v1/chat", nil))

	if w.Code != 401 {
		t.Errorf("status = %d, want 401", w.Code)
	}
	var body map[string]map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"]["message"] != "Invalid session" {
		t.Errorf("message = %q, want uniform text", body["error"]["message"])
	}
}

func TestMiddleware_PreflightBypassesAuth(t *testing.T) {
	gate := NewGate("http://127.0.0.1:1", "", time.Second, nil)
	called := false
	handler := Middleware(gate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/v1/chat", nil))

	if !called {
		t.Error("OPTIONS preflight must pass through without authentication")
	}
}
