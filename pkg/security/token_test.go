package security_test

import (
	"testing"

	"github.com/angelmondragon/ummati-backend/pkg/security"
)

func TestRandomHexToken(t *testing.T) {
	first, err := security.RandomHexToken(32)
	if err != nil {
		t.Fatalf("RandomHexToken returned error: %v", err)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
	second, err := security.RandomHexToken(32)
	if err != nil {
		t.Fatalf("RandomHexToken returned error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct tokens")
	}
}

func TestRandomHexTokenRejectsLowEntropy(t *testing.T) {
	if _, err := security.RandomHexToken(8); err == nil {
		t.Fatal("expected error below 128 bits")
	}
}
