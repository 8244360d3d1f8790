package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Prefix = "$argon2id$"

// Lower bounds for both configuration and stored hashes.
const (
	minMemoryKiB   uint32 = 8 * 1024
	minTime        uint32 = 1
	minParallelism uint8  = 1
	minSaltBytes   uint32 = 16
	minKeyBytes    uint32 = 16
)

var (
	errMalformedHash = errors.New("malformed argon2id hash")
	errHashVersion   = errors.New("unsupported argon2 version")
	errHashParams    = errors.New("argon2id parameters below minimum")
)

// Config holds Argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the parameters used when none are configured.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Config) validate() error {
	switch {
	case c.Memory < minMemoryKiB:
		return fmt.Errorf("argon2 memory must be at least %d KiB", minMemoryKiB)
	case c.Time < minTime:
		return errors.New("argon2 time must be at least 1")
	case c.Parallelism < minParallelism:
		return errors.New("argon2 parallelism must be at least 1")
	case c.SaltLength < minSaltBytes:
		return fmt.Errorf("argon2 salt must be at least %d bytes", minSaltBytes)
	case c.KeyLength < minKeyBytes:
		return fmt.Errorf("argon2 key must be at least %d bytes", minKeyBytes)
	}
	return nil
}

// phc is a decoded $argon2id$ string.
type phc struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func (p phc) String() string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version, p.memory, p.time, p.threads,
		base64.StdEncoding.EncodeToString(p.salt),
		base64.StdEncoding.EncodeToString(p.key))
}

func (p phc) derive(password string) []byte {
	return argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key)))
}

func decodePHC(s string) (phc, error) {
	rest, ok := strings.CutPrefix(s, argon2Prefix)
	if !ok {
		return phc{}, errMalformedHash
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return phc{}, errMalformedHash
	}

	version, ok := strings.CutPrefix(fields[0], "v=")
	if !ok {
		return phc{}, errMalformedHash
	}
	if v, err := strconv.Atoi(version); err != nil || v != argon2.Version {
		return phc{}, errHashVersion
	}

	var p phc
	if err := p.decodeParams(fields[1]); err != nil {
		return phc{}, err
	}

	var err error
	if p.salt, err = base64.StdEncoding.DecodeString(fields[2]); err != nil || len(p.salt) < int(minSaltBytes) {
		return phc{}, errMalformedHash
	}
	if p.key, err = base64.StdEncoding.DecodeString(fields[3]); err != nil || len(p.key) == 0 {
		return phc{}, errMalformedHash
	}
	return p, nil
}

// decodeParams reads "m=..,t=..,p=..". Every key must appear exactly once.
func (p *phc) decodeParams(s string) error {
	seen := map[string]bool{}
	for _, pair := range strings.Split(s, ",") {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || seen[key] {
			return errMalformedHash
		}
		seen[key] = true

		bits := 32
		if key == "p" {
			bits = 8
		}
		n, err := strconv.ParseUint(raw, 10, bits)
		if err != nil {
			return errMalformedHash
		}

		switch key {
		case "m":
			p.memory = uint32(n)
		case "t":
			p.time = uint32(n)
		case "p":
			p.threads = uint8(n)
		default:
			return errMalformedHash
		}
	}
	if len(seen) != 3 {
		return errMalformedHash
	}
	if p.memory < minMemoryKiB || p.time < minTime || p.threads < minParallelism {
		return errHashParams
	}
	return nil
}

// Argon2 hashes new passwords with Argon2id and verifies PHC-encoded hashes.
type Argon2 struct {
	config Config
	random io.Reader
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg, random: rand.Reader}, nil
}

// Hash returns a PHC string for password. Policy checks such as minimum
// length belong to the caller; only the empty password is refused here.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	p := phc{
		memory:  a.config.Memory,
		time:    a.config.Time,
		threads: a.config.Parallelism,
		salt:    make([]byte, a.config.SaltLength),
		key:     make([]byte, a.config.KeyLength),
	}
	if _, err := io.ReadFull(a.random, p.salt); err != nil {
		return "", err
	}
	p.key = p.derive(password)

	return p.String(), nil
}

// Verify compares password against encodedHash in constant time.
func (a *Argon2) Verify(password string, encodedHash string) (bool, error) {
	p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(p.derive(password), p.key) == 1, nil
}

// NeedsRehash reports whether encodedHash is weaker than the current
// configuration or not an Argon2id hash at all.
func (a *Argon2) NeedsRehash(encodedHash string) bool {
	p, err := decodePHC(encodedHash)
	if err != nil {
		return true
	}
	return p.memory < a.config.Memory ||
		p.time < a.config.Time ||
		p.threads < a.config.Parallelism ||
		uint32(len(p.key)) != a.config.KeyLength
}
