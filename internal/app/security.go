package app

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"quizdesk/internal/app/apiresp"
)

type rateBucket struct {
	Count      int
	WindowEnds time.Time
}

// IPRateLimiter is a fixed-window counter keyed by caller and route.
type IPRateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	store  map[string]rateBucket
	now    func() time.Time
}

func NewIPRateLimiter(max int, window time.Duration) *IPRateLimiter {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &IPRateLimiter{
		max:    max,
		window: window,
		store:  make(map[string]rateBucket),
		now:    time.Now,
	}
}

func (l *IPRateLimiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, b := range l.store {
		if now.After(b.WindowEnds) {
			delete(l.store, k)
		}
	}

	b, ok := l.store[key]
	if !ok {
		b = rateBucket{WindowEnds: now.Add(l.window)}
	}
	if b.Count >= l.max {
		return false
	}
	b.Count++
	l.store[key] = b
	return true
}

// RateLimitMiddleware guards the AI generation upload. Each call there
// costs an upstream model request.
func RateLimitMiddleware(l *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := callerIP(r.RemoteAddr) + "|" + r.Method + "|" + r.URL.Path
			if !l.Allow(key) {
				apiresp.WriteError(w, r, http.StatusTooManyRequests, "Too many generation requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// callerIP drops the port so every connection from one host shares a bucket.
func callerIP(remoteAddr string) string {
	addr := strings.TrimSpace(remoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
