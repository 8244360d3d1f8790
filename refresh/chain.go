package refresh

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/gateAuth/internal"
)

// DefaultTTL is the lifetime of a freshly generated refresh token.
const DefaultTTL = 7 * 24 * time.Hour

// Revocation reasons recorded on tokens.
const (
	ReasonReplaced = "replaced"
	ReasonReuse    = "attempted reuse of revoked ancestor token"
	ReasonRevoked  = "revoked without replacement"
)

// maxGenerateAttempts bounds the uniqueness loop against a store that
// misreports every candidate as taken.
const maxGenerateAttempts = 1 << 10

// TokenChecker is the uniqueness probe Generate consults per candidate.
type TokenChecker interface {
	Exists(ctx context.Context, token string) (bool, error)
}

// ChainConfig tunes a [Chain]. Zero values select defaults.
type ChainConfig struct {
	TTL    time.Duration
	Now    func() time.Time
	Random io.Reader
}

// Chain implements generation, rotation and revocation over collections.
// It carries no per-principal state and is safe for concurrent use.
type Chain struct {
	checker TokenChecker
	ttl     time.Duration
	now     func() time.Time
	random  io.Reader
}

// NewChain returns a [Chain] that checks candidate uniqueness against checker.
func NewChain(checker TokenChecker, cfg ChainConfig) *Chain {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Chain{
		checker: checker,
		ttl:     cfg.TTL,
		now:     cfg.Now,
		random:  cfg.Random,
	}
}

// Now returns the chain's clock reading.
func (c *Chain) Now() time.Time {
	return c.now()
}

// Generate mints a new token for the collection's owner. The candidate is
// regenerated until neither the store nor the collection already holds it.
// The token is not appended; callers decide where it goes.
func (c *Chain) Generate(ctx context.Context, col *Collection, ip string) (*Token, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		value, err := internal.NewOpaqueToken(c.random, internal.RefreshTokenBytes)
		if err != nil {
			return nil, err
		}
		if col.Find(value) != nil {
			continue
		}
		if c.checker != nil {
			taken, err := c.checker.Exists(ctx, value)
			if err != nil {
				return nil, err
			}
			if taken {
				continue
			}
		}

		now := c.now()
		return &Token{
			Token:       value,
			CreatedAt:   now,
			ExpiresAt:   now.Add(c.ttl),
			CreatedByIP: ip,
		}, nil
	}

	return nil, ErrCollision
}

// Rotate replaces old with a freshly generated token: old is revoked with
// reason "replaced" and points at the successor, which is appended to col.
// old must be active.
func (c *Chain) Rotate(ctx context.Context, col *Collection, old *Token, ip string) (*Token, error) {
	if old == nil {
		return nil, errors.New("rotate requires a token")
	}
	if !old.Active(c.now()) {
		return nil, ErrInactive
	}

	next, err := c.Generate(ctx, col, ip)
	if err != nil {
		return nil, err
	}

	c.Revoke(old, ip, ReasonReplaced, next.Token)
	col.Append(next)

	return next, nil
}

// Revoke stamps the revocation fields on t. A forward pointer is recorded
// only if none exists yet.
func (c *Chain) Revoke(t *Token, ip, reason, replacedBy string) {
	if t == nil {
		return
	}
	now := c.now()
	t.RevokedAt = &now
	t.RevokedByIP = ip
	t.ReasonRevoked = reason
	if replacedBy != "" && t.ReplacedByToken == "" {
		t.ReplacedByToken = replacedBy
	}
}

// RevokeDescendants follows ReplacedByToken from t and revokes every active
// successor. The walk is iterative and stops on a missing link or a cycle.
// It returns the number of tokens revoked.
func (c *Chain) RevokeDescendants(col *Collection, t *Token, ip, reason string) int {
	if col == nil || t == nil {
		return 0
	}

	now := c.now()
	visited := map[string]struct{}{t.Token: {}}
	revoked := 0

	next := t.ReplacedByToken
	for next != "" {
		if _, seen := visited[next]; seen {
			break
		}
		visited[next] = struct{}{}

		child := col.Find(next)
		if child == nil {
			break
		}
		if child.Active(now) {
			c.Revoke(child, ip, reason, "")
			revoked++
		}
		next = child.ReplacedByToken
	}

	return revoked
}
