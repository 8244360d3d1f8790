package refresh

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no principal owns the given token.
	ErrNotFound = errors.New("refresh token not found")
	// ErrInactive is returned when an operation requires an active token.
	ErrInactive = errors.New("refresh token inactive")
	// ErrConflict is returned by Persist when the collection changed since it was loaded.
	ErrConflict = errors.New("refresh collection modified concurrently")
	// ErrCollision is returned when a token value is already indexed elsewhere.
	ErrCollision = errors.New("refresh token value already in use")
)

// Store persists refresh-token collections. Implementations must make
// Persist atomic per principal and reject stale versions with [ErrConflict].
type Store interface {
	// FindByToken locates the collection owning token across all principals.
	FindByToken(ctx context.Context, token string) (*Collection, error)
	// Load returns the principal's collection, empty if none was stored yet.
	Load(ctx context.Context, principalID, username string) (*Collection, error)
	// Exists reports whether token is currently stored for any principal.
	Exists(ctx context.Context, token string) (bool, error)
	// Persist commits the collection, including index changes for appended
	// and pruned tokens.
	Persist(ctx context.Context, c *Collection) error
}
