package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_WindowAndSweep(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(Config{RequestsPerMinute: 2})
	l.SetClock(func() time.Time { return now })

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if l.Allow("a") {
		t.Fatal("third request in the window should be rejected")
	}
	if !l.Allow("b") {
		t.Fatal("other clients have their own budget")
	}
	if l.Hits() != 1 {
		t.Fatalf("hits = %d", l.Hits())
	}

	now = now.Add(time.Minute)
	if !l.Allow("a") {
		t.Fatal("a new window should reset the budget")
	}

	now = now.Add(11 * time.Minute)
	if n := l.Sweep(); n != 2 || l.ActiveClients() != 0 {
		t.Fatalf("swept %d, %d clients left", n, l.ActiveClients())
	}
}

func TestMiddleware_CountsOnlyListedMethods(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 1})
	h := l.Middleware(func(*http.Request) string { return "ip" }, http.MethodPost)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	do := func(method string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/notify/all", nil))
		return rec.Code
	}

	if code := do(http.MethodPost); code != http.StatusNoContent {
		t.Fatalf("first POST = %d", code)
	}
	if code := do(http.MethodPost); code != http.StatusTooManyRequests {
		t.Fatalf("second POST = %d", code)
	}
	if code := do(http.MethodGet); code != http.StatusNoContent {
		t.Fatalf("GET should not be limited, got %d", code)
	}
}
