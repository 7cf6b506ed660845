package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPLimiter_Allow(t *testing.T) {
	l := newIPLimiter("test", 60, 2)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if !l.allow("192.0.2.1") {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if l.allow("192.0.2.1") {
		t.Fatal("third request allowed past burst")
	}
	if !l.allow("192.0.2.2") {
		t.Error("other IP denied")
	}

	now = now.Add(time.Second)
	if !l.allow("192.0.2.1") {
		t.Error("request denied after refill interval")
	}
}

func TestIPLimiter_RetryAfter(t *testing.T) {
	tests := []struct {
		perMinute int
		want      int
	}{
		{perMinute: 120, want: 1},
		{perMinute: 60, want: 1},
		{perMinute: 10, want: 6},
		{perMinute: 1, want: 60},
		{perMinute: 0, want: 60},
	}
	for _, tt := range tests {
		if got := newIPLimiter("test", tt.perMinute, 1).retryAfter(); got != tt.want {
			t.Errorf("retryAfter(%d/min) = %d, want %d", tt.perMinute, got, tt.want)
		}
	}
}

func TestIPLimiter_Sweep(t *testing.T) {
	l := newIPLimiter("test", 60, 1)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.allow("192.0.2.1")
	now = now.Add(visitorTTL - time.Minute)
	l.allow("192.0.2.2")
	now = now.Add(2 * time.Minute)

	if removed := l.sweep(); removed != 1 {
		t.Errorf("sweep removed %d, want 1", removed)
	}
	if _, ok := l.visitors["192.0.2.2"]; !ok {
		t.Error("recent visitor was swept")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 1
	cfg.Rate.Burst = 2
	cfg.Rate.ImportsPerMinute = 1
	s := newTestServer(t, cfg, Deps{})

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/alerts", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		return do(s, req)
	}

	for i := 0; i < 2; i++ {
		if rec := send(); rec.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d rate limited within burst", i+1)
		}
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	if got := decodeError(t, rec); got.Code != "RATE001" {
		t.Errorf("code = %q, want RATE001", got.Code)
	}

	// Health checks are never limited.
	for i := 0; i < 5; i++ {
		hreq := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		hreq.RemoteAddr = "198.51.100.7:4000"
		if rec := do(s, hreq); rec.Code != http.StatusOK {
			t.Fatalf("healthz status = %d", rec.Code)
		}
	}
}
