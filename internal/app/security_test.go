package app

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPRateLimiterAllow(t *testing.T) {
	l := NewIPRateLimiter(2, 0)
	if !l.Allow("k") || !l.Allow("k") {
		t.Fatalf("first two requests should pass")
	}
	if l.Allow("k") {
		t.Fatalf("third request should be blocked")
	}
	if !l.Allow("other") {
		t.Fatalf("separate key should have its own window")
	}
}

func TestIPRateLimiterWindowResets(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(1, time.Minute)
	l.now = func() time.Time { return now }

	if !l.Allow("k") {
		t.Fatalf("first request should pass")
	}
	if l.Allow("k") {
		t.Fatalf("second request inside window should be blocked")
	}
	now = now.Add(61 * time.Second)
	if !l.Allow("k") {
		t.Fatalf("request after window should pass")
	}
	if len(l.store) != 1 {
		t.Fatalf("expired buckets should be dropped, got %d", len(l.store))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	next := RateLimitMiddleware(NewIPRateLimiter(1, time.Minute))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/upload-pdf", nil)
		req.RemoteAddr = "10.0.0.7"
		w := httptest.NewRecorder()
		next.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes: %v", codes)
	}
}

func TestRateLimitMiddlewareIgnoresSourcePort(t *testing.T) {
	next := RateLimitMiddleware(NewIPRateLimiter(1, time.Minute))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	codes := make([]int, 0, 4)
	for port := 50001; port <= 50004; port++ {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/upload-pdf", nil)
		req.RemoteAddr = fmt.Sprintf("10.0.0.7:%d", port)
		w := httptest.NewRecorder()
		next.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusCreated {
		t.Fatalf("first request should pass, got %v", codes)
	}
	for _, c := range codes[1:] {
		if c != http.StatusTooManyRequests {
			t.Fatalf("same host on a new port should share the window, got %v", codes)
		}
	}
}

func TestCallerIP(t *testing.T) {
	tests := map[string]string{
		"10.0.0.7:5000": "10.0.0.7",
		"[::1]:8080":    "::1",
		"10.0.0.7":      "10.0.0.7",
		" 192.0.2.1 ":   "192.0.2.1",
	}
	for in, want := range tests {
		if got := callerIP(in); got != want {
			t.Fatalf("callerIP(%q) = %q, want %q", in, got, want)
		}
	}
}
