package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3)

	for i := range 3 {
		if !rl.Allow() {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	if rl.Allow() {
		t.Fatal("4th request should be rejected")
	}
}

func TestRateLimiter_WindowRefill(t *testing.T) {
	rl := &RateLimiter{
		tokens:   0,
		max:      2,
		lastFill: time.Now().Add(-2 * time.Minute), // window already expired
		interval: time.Minute,
	}

	if !rl.Allow() {
		t.Fatal("request after window expiry should be allowed")
	}
	if !rl.Allow() {
		t.Fatal("second request in new window should be allowed")
	}
	if rl.Allow() {
		t.Fatal("third request should be rejected (limit is 2)")
	}
}

func TestRateLimiter_Wrap_AllowsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(2)
	called := 0
	handler := rl.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
		w.WriteHeader(http.StatusOK)
	}))

	for range 2 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	}

	if called != 2 {
		t.Fatalf("handler should have been called 2 times, got %d", called)
	}
}

func TestRateLimiter_Wrap_RejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter(1)
	handler := rl.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// First request: allowed
	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	if w1.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", w1.Code)
	}

	// Second request: rejected
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w2.Code)
	}
}

func TestRateLimiter_Wrap_RejectsWithJSON(t *testing.T) {
	rl := NewRateLimiter(1)
	handler := rl.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/runs", nil))

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "rate limit exceeded") {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestRateLimit_AppliesToRunStartsOnly(t *testing.T) {
	_, srv := newTestHandler(t, &Config{RateLimit: 1}, &MockSender{})

	// Unknown uploads still consume a token.
	if w := postJSON(srv, "/api/runs", `{"upload_id":"nope","message":"hi"}`); w.Code != http.StatusNotFound {
		t.Fatalf("first request: expected 404, got %d", w.Code)
	}
	if w := postJSON(srv, "/api/runs", `{"upload_id":"nope","message":"hi"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", w.Code)
	}
	if w := postJSON(srv, "/api/runs/x/retry", ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("retry shares the limit: expected 429, got %d", w.Code)
	}
	if w := get(srv, "/api/runs"); w.Code != http.StatusOK {
		t.Fatalf("listing is not limited: expected 200, got %d", w.Code)
	}
}

func TestRequireToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireToken("s3cret", next)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized},
		{"valid", "Bearer s3cret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestAccessToken_ProtectsAPIOnly(t *testing.T) {
	_, srv := newTestHandler(t, &Config{AccessToken: "s3cret"}, &MockSender{})

	if w := get(srv, "/api/runs"); w.Code != http.StatusUnauthorized {
		t.Errorf("api without token: expected 401, got %d", w.Code)
	}
	req := newRequest(http.MethodGet, "/api/runs", "", "")
	req.Header.Set("Authorization", "Bearer s3cret")
	if w := serve(srv, req); w.Code != http.StatusOK {
		t.Errorf("api with token: expected 200, got %d", w.Code)
	}
	for _, path := range []string{"/", "/health", "/ping", "/template.csv"} {
		if w := get(srv, path); w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}
	if w := get(srv, "/"); !strings.Contains(w.Body.String(), "const TOKEN_REQUIRED = true;") {
		t.Error("index should tell the page a token is required")
	}
}

func TestLogRequests_NginxFormat(t *testing.T) {
	h := LogRequests("nginx", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("hello"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if w.Body.String() != "hello" {
		t.Fatalf("expected body %q, got %q", "hello", w.Body.String())
	}
}

func TestLogRequests_SimpleFormat(t *testing.T) {
	h := LogRequests("simple", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/runs", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", w.Body.String())
	}
}

func TestLogRequests_DefaultIsSimple(t *testing.T) {
	h := LogRequests("", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestResponseRecorder_TracksBytes(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &responseRecorder{ResponseWriter: w}

	rec.Write([]byte("abc"))
	rec.Write([]byte("de"))

	if rec.bytes != 5 {
		t.Fatalf("expected 5 bytes, got %d", rec.bytes)
	}
	if rec.status != http.StatusOK {
		t.Fatalf("expected implicit 200, got %d", rec.status)
	}
}

func TestResponseRecorder_ExplicitStatus(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &responseRecorder{ResponseWriter: w}

	rec.WriteHeader(http.StatusNotFound)
	rec.WriteHeader(http.StatusOK) // second call should be ignored by recorder

	if rec.status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.status)
	}
}
