package models

import (
	"strings"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	a := GenerateKey()
	b := GenerateKey()

	if !strings.HasPrefix(a, KeyPrefix) {
		t.Errorf("generated key %q missing %q prefix", a, KeyPrefix)
	}
	if len(a) != len(KeyPrefix)+64 {
		t.Errorf("generated key length = %d, want %d", len(a), len(KeyPrefix)+64)
	}
	if a == b {
		t.Error("two generated keys must differ")
	}
}

func TestHashKeyDeterministic(t *testing.T) {
	secret := GenerateKey()
	if HashKey(secret) != HashKey(secret) {
		t.Error("hashing the same secret twice must yield the same digest")
	}
	if len(HashKey(secret)) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(HashKey(secret)))
	}
	if HashKey(secret) == secret {
		t.Error("digest must not equal the secret")
	}
}

func TestIsValidCustomKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"gld_abcdefghij1234567890", true},
		{"gld_" + strings.Repeat("a", 64), true},
		{"gld_with-dash_and_underscore_ok", true},
		{"gld_short", false},                      // under 20 chars after prefix
		{"gld_" + strings.Repeat("a", 65), false}, // over 64
		{"abc_abcdefghij1234567890", false},       // wrong prefix
		{"gld_has space in the middle!", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsValidCustomKey(tt.key); got != tt.want {
			t.Errorf("IsValidCustomKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestMaskedKey(t *testing.T) {
	k := &APIKey{Key: "gld_0123456789abcdef"}
	if got := k.MaskedKey(); got != "gld_01234567..." {
		t.Errorf("MaskedKey() = %q, want %q", got, "gld_01234567...")
	}

	short := &APIKey{Key: "gld_short"}
	if got := short.MaskedKey(); got != "gld_short" {
		t.Errorf("MaskedKey() on short key = %q, want unmodified", got)
	}
}
