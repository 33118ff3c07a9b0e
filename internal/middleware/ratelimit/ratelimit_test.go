package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *fakeClock) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl.now = clock.now
	return rl, clock
}

func allowed(rl *Limiter, ip string) bool {
	ok, _ := rl.allow(ip)
	return ok
}

func TestAllowWithinWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !allowed(rl, "10.0.0.1") {
			t.Fatalf("request %d refused", i+1)
		}
	}
	if allowed(rl, "10.0.0.1") {
		t.Fatal("fourth request in the window was allowed")
	}
	if !allowed(rl, "10.0.0.2") {
		t.Fatal("other clients must not share the quota")
	}

	clock.advance(time.Minute)
	if !allowed(rl, "10.0.0.1") {
		t.Fatal("quota not restored after the window")
	}
}

func TestRefusedRequestsDoNotExtendWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, 1)

	allowed(rl, "a")
	for i := 0; i < 5; i++ {
		clock.advance(10 * time.Second)
		allowed(rl, "a")
	}
	clock.advance(10 * time.Second)
	if !allowed(rl, "a") {
		t.Fatal("window should reset one minute after it started")
	}
	if got := rl.GetMetrics().Rejected; got != 5 {
		t.Fatalf("Rejected = %d, want 5", got)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, clock := newTestLimiter(t, 10)
	allowed(rl, "old")
	clock.advance(11 * time.Minute)
	allowed(rl, "new")

	rl.cleanupStaleEntries()

	if got := rl.ActiveClients(); got != 1 {
		t.Fatalf("ActiveClients = %d, want 1", got)
	}
}

func TestMiddlewareReturns429(t *testing.T) {
	rl, clock := newTestLimiter(t, 2)
	ip := func(*http.Request) string { return "203.0.113.9" }
	h := rl.Middleware(ip, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		h.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/expenses", nil))
		codes = append(codes, last.Code)
		clock.advance(15 * time.Second)
	}

	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
	if got := last.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("Retry-After = %q, want 30", got)
	}
}

func TestMiddlewareCustomRefusal(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}
	h := rl.Middleware(func(*http.Request) string { return "x" }, onLimit)(http.NotFoundHandler())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	if rec.Code != http.StatusTooManyRequests || rec.Body.String() != `{"error":"rate limited"}` {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After missing")
	}
}

func TestRetryAfter(t *testing.T) {
	tests := map[time.Duration]string{
		0:                       "1",
		500 * time.Millisecond:  "1",
		time.Second:             "1",
		1500 * time.Millisecond: "2",
		time.Minute:             "60",
	}
	for in, want := range tests {
		if got := retryAfter(in); got != want {
			t.Errorf("retryAfter(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}
