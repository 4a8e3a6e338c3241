package storage

import (
	"strings"
	"testing"
)

func TestHashAndVerifyKey(t *testing.T) {
	t.Parallel()
	hash, err := HashKey("admin-token-secret")
	if err != nil {
		t.Fatalf("HashKey failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$12$") {
		t.Errorf("Expected a bcrypt cost-12 hash, got %q", hash)
	}

	if err := VerifyKey("admin-token-secret", hash); err != nil {
		t.Errorf("VerifyKey rejected the correct key: %v", err)
	}
	if err := VerifyKey("wrong-key", hash); err == nil {
		t.Error("VerifyKey accepted a wrong key")
	}
}

func TestHashKeyUnique(t *testing.T) {
	t.Parallel()
	h1, err := HashKey("same-input")
	if err != nil {
		t.Fatalf("HashKey failed: %v", err)
	}
	h2, err := HashKey("same-input")
	if err != nil {
		t.Fatalf("HashKey failed: %v", err)
	}
	if h1 == h2 {
		t.Error("Expected salted hashes to differ for the same input")
	}
}
