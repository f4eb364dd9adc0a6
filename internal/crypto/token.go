package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"math/big"
)

const (
	resetTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// ResetTokenLength gives roughly 285 bits of entropy over a 62-symbol alphabet.
	ResetTokenLength = 48
)

// GenerateResetToken creates a URL-safe random token for password reset links.
func GenerateResetToken() (string, error) {
	result := make([]byte, ResetTokenLength)
	for i := range result {
		ch, err := randChar(resetTokenAlphabet)
		if err != nil {
			return "", err
		}
		result[i] = ch
	}
	return string(result), nil
}

// HashResetToken returns the hex-encoded SHA-256 digest stored in place of the token.
func HashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyResetToken reports whether token hashes to digest, comparing in constant time.
func VerifyResetToken(token, digest string) bool {
	candidate := HashResetToken(token)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(digest)) == 1
}

// randChar picks a random character from charset using crypto/rand.
func randChar(charset string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
	if err != nil {
		return 0, err
	}
	return charset[n.Int64()], nil
}
