package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTTL is the fixed validity window of an access token.
const DefaultAccessTTL = 15 * time.Minute

const minSecretBytes = 32

// Config controls access-token signing.
type Config struct {
	Secret    []byte
	AccessTTL time.Duration
	Issuer    string
	Leeway    time.Duration
	Now       func() time.Time
}

// Claims is the access-token payload. The username travels in the "name" claim.
type Claims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// Codec signs and verifies access tokens. It holds no mutable state and is
// safe for unlimited concurrent use.
type Codec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// NewCodec validates cfg and returns a ready [Codec].
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < minSecretBytes {
		return nil, errors.New("hs256 secret must be at least 32 bytes")
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.AccessTTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	return &Codec{
		secret: secret,
		ttl:    cfg.AccessTTL,
		issuer: cfg.Issuer,
		now:    cfg.Now,
		parser: jwt.NewParser(options...),
	}, nil
}

// TTL returns the configured access-token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue signs an access token for username, valid for the configured TTL
// from the current clock reading.
func (c *Codec) Issue(username string) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", errors.New("username required")
	}

	now := c.now()
	claims := Claims{
		Name: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			Issuer:    c.issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks signature, algorithm and expiry and returns the embedded
// username. Every failure yields ok == false with no further detail.
func (c *Codec) Verify(token string) (username string, ok bool) {
	if token == "" {
		return "", false
	}

	parsed, err := c.parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", false
	}

	claims, isClaims := parsed.Claims.(*Claims)
	if !isClaims || claims.Name == "" {
		return "", false
	}

	return claims.Name, true
}
