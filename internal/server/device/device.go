// Package device derives a best-effort session fingerprint from raw request
// metadata. Construction is pure and never fails: unknown inputs degrade to
// defaults instead of blocking request processing.
package device

import (
	"net"
	"strings"

	"github.com/akorchagin/authd/internal/randx"
)

// FallbackIP is used when no usable client address can be derived.
const FallbackIP = "127.0.0.1"

// Info is the per-request device fingerprint attached to refresh records.
type Info struct {
	IPAddress  string
	UserAgent  string
	DeviceName string
}

// FromRequestMeta builds an Info from the transport-level remote address,
// the X-Forwarded-For chain (may be empty) and the User-Agent header.
func FromRequestMeta(remoteAddr, forwardedFor, userAgent string) Info {
	ua := strings.TrimSpace(userAgent)
	if ua == "" {
		ua = "Unknown"
	}
	return Info{
		IPAddress:  clientIP(remoteAddr, forwardedFor),
		UserAgent:  ua,
		DeviceName: describe(ua),
	}
}

// UserAgentHash returns the digest under which the user agent is persisted.
func (i Info) UserAgentHash() string {
	return randx.Digest(i.UserAgent)
}

// clientIP picks the first public address from the forwarded chain, then
// falls back to the transport address, then to loopback.
func clientIP(remoteAddr, forwardedFor string) string {
	for _, part := range strings.Split(forwardedFor, ",") {
		ip := net.ParseIP(strings.TrimSpace(part))
		if ip != nil && isPublic(ip) {
			return ip.String()
		}
	}

	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	if ip := net.ParseIP(strings.TrimSpace(host)); ip != nil {
		return ip.String()
	}

	return FallbackIP
}

func isPublic(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast())
}

// describe maps a raw user-agent string onto a coarse "browser on platform"
// label. Precision does not matter here; the label only annotates sessions
// for device lists and anomaly review.
func describe(userAgent string) string {
	if userAgent == "Unknown" {
		return "Unknown device"
	}

	browser := "Unknown browser"
	switch {
	case strings.Contains(userAgent, "Edg/"):
		browser = "Edge"
	case strings.Contains(userAgent, "OPR/"), strings.Contains(userAgent, "Opera"):
		browser = "Opera"
	case strings.Contains(userAgent, "Firefox/"):
		browser = "Firefox"
	case strings.Contains(userAgent, "Chrome/"):
		browser = "Chrome"
	case strings.Contains(userAgent, "Safari/"):
		browser = "Safari"
	case strings.HasPrefix(userAgent, "curl/"):
		browser = "curl"
	}

	platform := "Unknown platform"
	switch {
	case strings.Contains(userAgent, "iPhone"), strings.Contains(userAgent, "iPad"):
		platform = "iOS"
	case strings.Contains(userAgent, "Android"):
		platform = "Android"
	case strings.Contains(userAgent, "Windows"):
		platform = "Windows"
	case strings.Contains(userAgent, "Macintosh"):
		platform = "macOS"
	case strings.Contains(userAgent, "Linux"):
		platform = "Linux"
	}

	return browser + " on " + platform
}
