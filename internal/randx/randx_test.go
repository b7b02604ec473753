package randx

import (
	"encoding/base64"
	"encoding/hex"
	"testing"
)

func TestNewSecret_LengthAndEncoding(t *testing.T) {
	s, err := NewSecret(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		t.Fatalf("secret is not valid base64url: %v", err)
	}
	if len(raw) != 32 {
		t.Fatalf("expected 32 random bytes, got %d", len(raw))
	}
}

func TestNewSecret_EntropyHint(t *testing.T) {
	a, err := NewSecret(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewSecret(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Logf("warning: two NewSecret(32) results are identical; extremely unlikely")
	}
}

func TestDigest_StableAndHex(t *testing.T) {
	d1 := Digest("secret-token")
	d2 := Digest("secret-token")
	if d1 != d2 {
		t.Fatalf("digest must be deterministic: %q != %q", d1, d2)
	}
	if _, err := hex.DecodeString(d1); err != nil {
		t.Fatalf("digest is not valid hex: %v", err)
	}
	if len(d1) != 64 {
		t.Fatalf("expected sha256 hex length 64, got %d", len(d1))
	}
	if Digest("other") == d1 {
		t.Fatalf("different inputs must not collide")
	}
}

func TestWipe_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	Wipe(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
	Wipe(nil)
}
