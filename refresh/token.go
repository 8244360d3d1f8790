package refresh

import "time"

// Token is a single refresh credential and its revocation record.
type Token struct {
	Token           string     `json:"token"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	CreatedByIP     string     `json:"created_by_ip,omitempty"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
	RevokedByIP     string     `json:"revoked_by_ip,omitempty"`
	ReasonRevoked   string     `json:"reason_revoked,omitempty"`
	ReplacedByToken string     `json:"replaced_by_token,omitempty"`
}

// Expired reports whether now has reached the token's expiry.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Revoked reports whether a revocation timestamp is recorded.
func (t *Token) Revoked() bool {
	return t.RevokedAt != nil
}

// Active reports whether the token is neither expired nor revoked.
func (t *Token) Active(now time.Time) bool {
	return !t.Revoked() && !t.Expired(now)
}

// Collection is the set of refresh tokens owned by one principal. Version is
// assigned by the store and used for optimistic concurrency on Persist.
type Collection struct {
	PrincipalID string   `json:"principal_id"`
	Username    string   `json:"username"`
	Tokens      []*Token `json:"tokens"`
	Version     int64    `json:"-"`

	pruned []string
}

// NewCollection returns an empty, never-persisted collection.
func NewCollection(principalID, username string) *Collection {
	return &Collection{PrincipalID: principalID, Username: username}
}

// Find returns the token with the given value, or nil.
func (c *Collection) Find(token string) *Token {
	if c == nil || token == "" {
		return nil
	}
	for _, t := range c.Tokens {
		if t.Token == token {
			return t
		}
	}
	return nil
}

// Append adds t to the collection.
func (c *Collection) Append(t *Token) {
	c.Tokens = append(c.Tokens, t)
}

// ActiveCount returns the number of tokens active at now.
func (c *Collection) ActiveCount(now time.Time) int {
	n := 0
	for _, t := range c.Tokens {
		if t.Active(now) {
			n++
		}
	}
	return n
}

// Pruned returns the token values removed by [PruneExpired] since the
// collection was loaded. Stores use it to drop index entries.
func (c *Collection) Pruned() []string {
	return c.pruned
}

// MarkPersisted records a successful write at version v and forgets pruned
// tokens.
func (c *Collection) MarkPersisted(v int64) {
	c.Version = v
	c.pruned = nil
}

// PruneExpired removes tokens that are inactive and were created at least
// retentionDays ago. retentionDays <= 0 disables pruning. Active tokens and
// recently revoked ones are always kept so reuse of them can still be
// detected. It returns the number of tokens removed.
func PruneExpired(c *Collection, retentionDays int, now time.Time) int {
	if c == nil || retentionDays <= 0 {
		return 0
	}

	retention := time.Duration(retentionDays) * 24 * time.Hour
	kept := c.Tokens[:0]
	removed := 0
	for _, t := range c.Tokens {
		if !t.Active(now) && !t.CreatedAt.Add(retention).After(now) {
			c.pruned = append(c.pruned, t.Token)
			removed++
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(c.Tokens); i++ {
		c.Tokens[i] = nil
	}
	c.Tokens = kept

	return removed
}
