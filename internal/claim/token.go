package claim

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const secretBytes = 32

// IssueToken returns a fresh url-safe bearer secret. It is shown to the
// operator once and never stored.
func IssueToken() string {
	b := make([]byte, secretBytes)
	// crypto/rand.Read never returns an error
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// HashToken returns the hex SHA-256 digest stored in place of the secret.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// digestPrefix is the part of a digest that may appear in logs.
func digestPrefix(digest string) string {
	if len(digest) > 8 {
		return digest[:8]
	}
	return digest
}
