package auth

import "testing"

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash == "correct-password" {
		t.Fatalf("hash must not equal the plaintext")
	}

	if !VerifyPassword(hash, "correct-password") {
		t.Fatalf("expected matching password to verify")
	}
	if VerifyPassword(hash, "wrong-password") {
		t.Fatalf("expected mismatched password to fail")
	}
	if VerifyPassword("not-a-bcrypt-hash", "correct-password") {
		t.Fatalf("expected malformed hash to fail")
	}
}

func TestHashPasswordProducesDistinctHashes(t *testing.T) {
	first, err := HashPassword("correct-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := HashPassword("correct-password")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatalf("expected salted hashes to differ")
	}
}
