package http

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.7:4312",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded header from trusted proxy",
			remoteAddr: "127.0.0.1:9000",
			xff:        "203.0.113.7, 10.0.0.1",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded header from untrusted peer is ignored",
			remoteAddr: "203.0.113.7:4312",
			xff:        "198.51.100.1",
			want:       "203.0.113.7",
		},
		{
			name:       "x-real-ip from trusted proxy",
			remoteAddr: "192.168.1.10:8080",
			xRealIP:    "203.0.113.9",
			want:       "203.0.113.9",
		},
		{
			name:       "garbage forwarded value falls back to peer",
			remoteAddr: "127.0.0.1:9000",
			xff:        "not-an-ip",
			want:       "127.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/projects", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				r.Header.Set("X-Real-IP", tt.xRealIP)
			}

			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name   string
		target string
		agent  string
		want   bool
	}{
		{name: "normal api request", target: "/api/projects", agent: "farmdeck-ui/1.0", want: false},
		{name: "path traversal", target: "/api/../etc/passwd", agent: "farmdeck-ui/1.0", want: true},
		{name: "wordpress probe", target: "/wp-admin/setup.php", agent: "farmdeck-ui/1.0", want: true},
		{name: "sql injection in query", target: "/api/projects?id=1%20union%20select", agent: "farmdeck-ui/1.0", want: true},
		{name: "scanner user agent", target: "/api/projects", agent: "sqlmap/1.7", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &securityMetrics{}
			r := httptest.NewRequest("GET", tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)

			if got := detectSuspiciousRequest(r, metrics); got != tt.want {
				t.Errorf("detectSuspiciousRequest() = %v, want %v", got, tt.want)
			}

			_, suspicious := metrics.snapshot()
			if tt.want && suspicious != 1 {
				t.Errorf("suspicious counter = %d, want 1", suspicious)
			}
		})
	}
}

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	defer rl.stop()

	metrics := &securityMetrics{}
	for i := 0; i < 3; i++ {
		if !rl.allow("203.0.113.7", metrics) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("203.0.113.7", metrics) {
		t.Fatal("fourth request should be rejected")
	}
	if hits, _ := metrics.snapshot(); hits != 1 {
		t.Errorf("rate limit hits = %d, want 1", hits)
	}

	// Other clients are tracked independently.
	if !rl.allow("203.0.113.8", metrics) {
		t.Fatal("different client should be allowed")
	}
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	rl := newRateLimiter(1, 20*time.Millisecond)
	defer rl.stop()

	if !rl.allow("203.0.113.7", nil) {
		t.Fatal("first request should be allowed")
	}
	if rl.allow("203.0.113.7", nil) {
		t.Fatal("second request inside window should be rejected")
	}

	time.Sleep(30 * time.Millisecond)

	if !rl.allow("203.0.113.7", nil) {
		t.Fatal("request after window reset should be allowed")
	}
}
