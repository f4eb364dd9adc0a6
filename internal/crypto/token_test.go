package crypto

import (
	"strings"
	"testing"
)

func TestGenerateResetToken(t *testing.T) {
	token, err := GenerateResetToken()
	if err != nil {
		t.Fatalf("GenerateResetToken() unexpected error: %v", err)
	}
	if len(token) != ResetTokenLength {
		t.Errorf("GenerateResetToken() length = %d, want %d", len(token), ResetTokenLength)
	}
	for _, ch := range token {
		if !strings.ContainsRune(resetTokenAlphabet, ch) {
			t.Errorf("GenerateResetToken() contains unexpected character %q", ch)
		}
	}
}

func TestGenerateResetTokenUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateResetToken()
		if err != nil {
			t.Fatalf("GenerateResetToken() unexpected error: %v", err)
		}
		if seen[token] {
			t.Fatalf("GenerateResetToken() produced duplicate token on iteration %d", i)
		}
		seen[token] = true
	}
}

func TestHashResetToken(t *testing.T) {
	// echo -n "abc" | sha256sum
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashResetToken("abc"); got != want {
		t.Errorf("HashResetToken(\"abc\") = %q, want %q", got, want)
	}

	token, err := GenerateResetToken()
	if err != nil {
		t.Fatalf("GenerateResetToken() unexpected error: %v", err)
	}
	if HashResetToken(token) == token {
		t.Error("HashResetToken() returned the raw token")
	}
}

func TestVerifyResetToken(t *testing.T) {
	token, err := GenerateResetToken()
	if err != nil {
		t.Fatalf("GenerateResetToken() unexpected error: %v", err)
	}
	digest := HashResetToken(token)

	if !VerifyResetToken(token, digest) {
		t.Error("VerifyResetToken() returned false for matching token")
	}

	tampered := []string{"", token[:len(token)-1], token + "x", strings.ToUpper(token), digest}
	for _, candidate := range tampered {
		if candidate == token {
			continue
		}
		if VerifyResetToken(candidate, digest) {
			t.Errorf("VerifyResetToken(%q) returned true for non-matching token", candidate)
		}
	}
}
