package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrUnknownHash is returned when no verifier recognizes a stored hash.
	ErrUnknownHash = errors.New("unrecognized password hash format")
)

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsRehash(encodedHash string) bool
}

// Chain hashes with Argon2id and verifies both Argon2id and bcrypt hashes, so
// accounts imported with bcrypt hashes keep working and can be upgraded on
// their next successful login.
type Chain struct {
	primary *Argon2
}

var _ Hasher = (*Chain)(nil)

// NewChain returns a [Chain] hashing with cfg.
func NewChain(cfg Config) (*Chain, error) {
	a, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	return &Chain{primary: a}, nil
}

// Hash produces an Argon2id PHC string.
func (c *Chain) Hash(password string) (string, error) {
	return c.primary.Hash(password)
}

// Verify dispatches on the hash prefix.
func (c *Chain) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, argon2Prefix):
		return c.primary.Verify(password, encodedHash)
	case isBcrypt(encodedHash):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, ErrUnknownHash
	}
}

// NeedsRehash is true for any hash the primary hasher would not produce today.
func (c *Chain) NeedsRehash(encodedHash string) bool {
	return c.primary.NeedsRehash(encodedHash)
}

func isBcrypt(h string) bool {
	return strings.HasPrefix(h, "$2a$") || strings.HasPrefix(h, "$2b$") || strings.HasPrefix(h, "$2y$")
}
