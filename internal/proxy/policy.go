// Package proxy implements the local intercepting HTTP proxy the launcher
// registers as the system proxy while a game session runs. It drops noisy
// telemetry and redirects game-domain traffic to an alternate upstream.
package proxy

import (
	"net"
	"net/http"
	"strings"
)

// Decision is the outcome of evaluating one request against the policy.
type Decision int

const (
	// Forward relays the request to its original destination.
	Forward Decision = iota
	// Block answers immediately with 204 No Content.
	Block
	// Redirect re-issues the request against the configured upstream host.
	Redirect
)

func (d Decision) String() string {
	switch d {
	case Forward:
		return "forward"
	case Block:
		return "block"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// Policy decides per-request handling. Noise patterns are telemetry and
// analytics endpoints; signal patterns are game log-upload APIs. ShowLog
// controls whether matches are logged, SendLog controls whether matched
// requests are still let through.
type Policy struct {
	ShowLog bool
	SendLog bool

	NoisePatterns  []string
	SignalPatterns []string

	// GameDomains are host suffixes whose traffic is redirected to
	// UpstreamHost with the original path, query and headers.
	GameDomains  []string
	UpstreamHost string
}

// Evaluate classifies a request. The second result reports whether the
// URL matched the noise or signal pattern set, for logging. Matching is
// substring-based on the full URL for the pattern sets and suffix-based
// on the host for game domains; private and loopback hosts are never
// redirected.
func (p *Policy) Evaluate(r *http.Request) (Decision, bool) {
	url := r.URL.String()

	if matchesAny(url, p.NoisePatterns) || matchesAny(url, p.SignalPatterns) {
		if !p.SendLog {
			return Block, true
		}
		return Forward, true
	}

	host := r.URL.Hostname()
	if host == "" {
		host = r.Host
	}
	if isGameDomain(host, p.GameDomains) && !isPrivateHost(host) {
		return Redirect, false
	}

	return Forward, false
}

func matchesAny(url string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern != "" && strings.Contains(url, pattern) {
			return true
		}
	}
	return false
}

func isGameDomain(host string, domains []string) bool {
	for _, domain := range domains {
		if domain == "" {
			continue
		}
		if strings.EqualFold(host, domain) || strings.HasSuffix(strings.ToLower(host), "."+strings.ToLower(domain)) {
			return true
		}
	}
	return false
}

// isPrivateHost reports whether host is loopback, link-local or RFC1918.
// Redirecting those would loop the proxy onto itself or onto LAN servers
// the user pointed the game at directly.
func isPrivateHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// DefaultNoisePatterns are the telemetry endpoints the anime-game clients
// hammer while running.
func DefaultNoisePatterns() []string {
	return []string{
		"overseauspider.yuanshen.com",
		"log-upload-os.hoyoverse.com",
		"log-upload-os.mihoyo.com",
		"log-upload.mihoyo.com",
		"apm-log-upload.mihoyo.com",
		"/sdk/dataUpload",
		"/crash/dataUpload",
	}
}

// DefaultSignalPatterns are the client-side event log APIs.
func DefaultSignalPatterns() []string {
	return []string{
		"/common/h5log/log/batch",
		"/client/event/dataUpload",
		"/perf/config/verify",
	}
}

// DefaultGameDomains are the API hosts whose traffic is redirected while
// a session runs.
func DefaultGameDomains() []string {
	return []string{
		"yuanshen.com",
		"hoyoverse.com",
		"mihoyo.com",
		"honkaiimpact3.com",
	}
}
