package pat

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// TokenPrefix marks the structural form of every raw PAT.
	TokenPrefix = "pat_"

	// DisplayPrefixLen is how many leading characters of the raw token are
	// stored in clear for UI listing and indexed lookup.
	DisplayPrefixLen = 8

	tokenSecretBytes = 32
)

// Generate produces a fresh raw token along with its display prefix and
// lookup digest. The raw value is shown to the caller once and never stored.
func Generate() (raw, prefix, digest string, err error) {
	secret := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", "", fmt.Errorf("generate token: %w", err)
	}
	raw = TokenPrefix + base64.RawURLEncoding.EncodeToString(secret)
	return raw, raw[:DisplayPrefixLen], Digest(raw), nil
}

// Digest returns the one-way lookup hash of a raw token.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// HasTokenForm reports whether a presented credential is structurally a PAT.
// It deliberately checks only the prefix: everything else is decided by the
// digest lookup.
func HasTokenForm(raw string) bool {
	return strings.HasPrefix(raw, TokenPrefix) && len(raw) > DisplayPrefixLen
}

// DigestEqual compares two digests in constant time.
func DigestEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
