package http

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"untrusted peer ignores headers", "203.0.113.7:5000", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy forwards", "10.0.0.2:80", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"trusted proxy real ip", "127.0.0.1:80", "", "198.51.100.9", "198.51.100.9"},
		{"garbage forwarded", "192.168.1.1:80", "not-an-ip", "", "192.168.1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	m := &securityMetrics{}
	if detectSuspiciousRequest(httptest.NewRequest("GET", "/statement?month=2025-05", nil), m) {
		t.Error("normal request flagged")
	}
	if !detectSuspiciousRequest(httptest.NewRequest("GET", "/.env", nil), m) {
		t.Error("dotenv probe not flagged")
	}
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("User-Agent", "sqlmap/1.7")
	if !detectSuspiciousRequest(r, m) {
		t.Error("scanner agent not flagged")
	}
	if got := m.snapshot()["suspicious_requests"]; got != 2 {
		t.Errorf("suspicious_requests = %d, want 2", got)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2025, 5, 17, 10, 0, 0, 0, time.UTC)
	rl := &rateLimiter{
		clients:     map[string]*clientInfo{},
		limit:       2,
		window:      time.Minute,
		now:         func() time.Time { return now },
		stopCleanup: make(chan struct{}),
	}
	m := &securityMetrics{}

	if !rl.allow("a", m) || !rl.allow("a", m) {
		t.Fatal("first two requests must pass")
	}
	if rl.allow("a", m) {
		t.Fatal("third request in the window must be rejected")
	}
	if !rl.allow("b", m) {
		t.Fatal("other clients are limited separately")
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("a", m) {
		t.Fatal("a new window must reset the counter")
	}
	if m.snapshot()["rate_limit_hits"] != 1 {
		t.Errorf("rate_limit_hits = %d, want 1", m.snapshot()["rate_limit_hits"])
	}

	now = now.Add(11 * time.Minute)
	if n := rl.cleanupStaleEntries(); n != 2 || rl.activeClients() != 0 {
		t.Errorf("cleanup removed %d, %d left", n, rl.activeClients())
	}
	rl.stop()
	rl.stop()
}
