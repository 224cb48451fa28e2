package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the algorithm to change without key collisions.
const (
	DomainSnapshot = "webtest/snapshot/v1"
)

// HashWithDomain computes a hex SHA-256 over domain and the given parts,
// each preceded by a 0x00 separator.
func HashWithDomain(domain string, parts ...[]byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Hash canonically encodes each value and hashes the encodings under domain.
func Hash(domain string, values ...any) (string, error) {
	parts := make([][]byte, len(values))
	for i, v := range values {
		b, err := Marshal(v)
		if err != nil {
			return "", fmt.Errorf("hash part %d: %w", i, err)
		}
		parts[i] = b
	}
	return HashWithDomain(domain, parts...), nil
}
