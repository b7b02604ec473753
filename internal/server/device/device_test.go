package device

import "testing"

const chromeWindowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

func TestFromRequestMeta_ForwardedPublicIPWins(t *testing.T) {
	info := FromRequestMeta("10.0.0.5:44231", "203.0.113.7, 10.0.0.1", chromeWindowsUA)
	if info.IPAddress != "203.0.113.7" {
		t.Fatalf("expected first public forwarded ip, got %q", info.IPAddress)
	}
}

func TestFromRequestMeta_SkipsPrivateForwarded(t *testing.T) {
	info := FromRequestMeta("198.51.100.9:80", "10.1.2.3, 192.168.0.4", chromeWindowsUA)
	if info.IPAddress != "198.51.100.9" {
		t.Fatalf("expected remote addr fallback, got %q", info.IPAddress)
	}
}

func TestFromRequestMeta_FallbackLoopback(t *testing.T) {
	info := FromRequestMeta("not-an-addr", "", chromeWindowsUA)
	if info.IPAddress != FallbackIP {
		t.Fatalf("expected %q, got %q", FallbackIP, info.IPAddress)
	}
}

func TestFromRequestMeta_EmptyUserAgent(t *testing.T) {
	info := FromRequestMeta("203.0.113.7:1234", "", "  ")
	if info.UserAgent != "Unknown" {
		t.Fatalf("expected Unknown user agent, got %q", info.UserAgent)
	}
	if info.DeviceName != "Unknown device" {
		t.Fatalf("expected Unknown device, got %q", info.DeviceName)
	}
}

func TestDescribe_Labels(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{chromeWindowsUA, "Chrome on Windows"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Gecko/20100101 Firefox/128.0", "Firefox on macOS"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) Version/17.5 Safari/604.1", "Safari on iOS"},
		{"Mozilla/5.0 (X11; Linux x86_64) Chrome/126.0.0.0 Safari/537.36 Edg/126.0.0.0", "Edge on Linux"},
		{"curl/8.9.1", "curl on Unknown platform"},
	}

	for _, tc := range tests {
		if got := describe(tc.ua); got != tc.want {
			t.Fatalf("describe(%q) = %q, want %q", tc.ua, got, tc.want)
		}
	}
}

func TestUserAgentHash_Stable(t *testing.T) {
	a := FromRequestMeta("203.0.113.7:1", "", chromeWindowsUA)
	b := FromRequestMeta("203.0.113.7:2", "", chromeWindowsUA)
	if a.UserAgentHash() != b.UserAgentHash() {
		t.Fatalf("hash must depend only on the user agent")
	}
	if a.UserAgentHash() == "" {
		t.Fatalf("hash must not be empty")
	}
}
