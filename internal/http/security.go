package http

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

// securityMetrics counts security-related events across the server's
// lifetime. Fields are updated atomically.
type securityMetrics struct {
	rateLimitHits      int64
	suspiciousRequests int64
}

// snapshot returns the current counter values for shutdown logging.
func (m *securityMetrics) snapshot() (rateLimitHits, suspiciousRequests int64) {
	return atomic.LoadInt64(&m.rateLimitHits), atomic.LoadInt64(&m.suspiciousRequests)
}

// trustedProxies lists the networks allowed to set forwarding headers.
// The app serves a local UI, so only loopback and private ranges qualify.
var trustedProxies = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("parse trusted proxy CIDR %s: %v", cidr, err))
		}
		nets = append(nets, network)
	}
	return nets
}

func isTrustedProxy(ip net.IP) bool {
	for _, network := range trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// extractClientIP resolves the real client IP. Forwarding headers are
// honored only when the direct peer is a trusted proxy.
func extractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	return directIP
}

// probePathFragments are strings that show up in automated scans but never
// in legitimate API traffic.
var probePathFragments = []string{
	"../", "..\\", ".env", ".git", ".ssh",
	"wp-admin", "phpmyadmin", "config.php",
	"etc/passwd", "cmd.exe",
	"<script", "javascript:", "union select",
}

var probeUserAgents = []string{
	"sqlmap", "nikto", "nmap", "gobuster", "dirb",
	"masscan", "scanner",
}

// detectSuspiciousRequest flags requests matching known probe patterns.
// The query is unescaped first so percent-encoded payloads still match.
func detectSuspiciousRequest(r *http.Request, metrics *securityMetrics) bool {
	query := r.URL.RawQuery
	if unescaped, err := url.QueryUnescape(query); err == nil {
		query = unescaped
	}

	suspicious := hasProbeFragment(r.URL.Path) ||
		hasProbeFragment(query) ||
		hasProbeUserAgent(r.Header.Get("User-Agent")) ||
		isUnusualMethod(r.Method) ||
		len(r.URL.String()) > 2048

	if suspicious && metrics != nil {
		atomic.AddInt64(&metrics.suspiciousRequests, 1)
	}
	return suspicious
}

func hasProbeFragment(s string) bool {
	s = strings.ToLower(s)
	for _, fragment := range probePathFragments {
		if strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}

func hasProbeUserAgent(userAgent string) bool {
	userAgent = strings.ToLower(userAgent)
	for _, agent := range probeUserAgents {
		if strings.Contains(userAgent, agent) {
			return true
		}
	}
	return false
}

func isUnusualMethod(method string) bool {
	switch method {
	case "TRACE", "TRACK", "CONNECT":
		return true
	}
	return false
}
