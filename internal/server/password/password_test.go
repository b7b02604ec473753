package password

import (
	"errors"
	"strings"
	"testing"

	"github.com/akorchagin/authd/internal/common"
)

func TestHashAndVerify_Success(t *testing.T) {
	h := NewArgon2Hasher(nil)

	encoded, err := h.Hash("correct horse battery 9")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("unexpected encoding: %q", encoded)
	}

	ok, err := h.Verify("correct horse battery 9", encoded)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match for correct password")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	h := NewArgon2Hasher(nil)

	encoded, err := h.Hash("right-password-1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := h.Verify("wrong-password-1", encoded)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestHash_SaltedPerCall(t *testing.T) {
	h := NewArgon2Hasher(nil)

	a, err := h.Hash("same-password-1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := h.Hash("same-password-1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatalf("identical passwords must hash differently")
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	h := NewArgon2Hasher(nil)

	for _, encoded := range []string{
		"",
		"plainhash",
		"$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=99$m=65536,t=3,p=2$c2FsdA$aGFzaA",
	} {
		if _, err := h.Verify("pw", encoded); err == nil {
			t.Fatalf("expected error for malformed hash %q", encoded)
		}
	}
}

func TestCheckPolicy(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		wantWeak  bool
	}{
		{"ok", "sturdy-pass-42", false},
		{"too short", "ab1", true},
		{"no digits", "onlylettershere", true},
		{"no letters", "123456789012", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckPolicy(tc.candidate)
			if tc.wantWeak && !errors.Is(err, common.ErrorWeakPassword) {
				t.Fatalf("want ErrorWeakPassword, got %v", err)
			}
			if !tc.wantWeak && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
