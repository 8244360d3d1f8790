package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
)

// RefreshTokenBytes is the amount of entropy behind one refresh token.
const RefreshTokenBytes = 64

// NewOpaqueToken reads size bytes from r and returns them base64 encoded
// (standard alphabet, padded). A nil reader falls back to crypto/rand.
func NewOpaqueToken(r io.Reader, size int) (string, error) {
	if size <= 0 {
		return "", errors.New("invalid token size")
	}
	if r == nil {
		r = rand.Reader
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}

// HashToken returns a hex SHA-256 digest of an opaque token, used wherever a
// token must be addressable without storing it verbatim in a key.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
