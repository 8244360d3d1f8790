package gateAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/gateAuth/permission"
)

// Principal is an authenticated identity as seen by callers. It never
// carries credential material.
type Principal struct {
	ID                   string `json:"id"`
	Username             string `json:"userName"`
	Email                string `json:"email,omitempty"`
	PhoneNumber          string `json:"phoneNumber,omitempty"`
	EmailConfirmed       bool   `json:"emailConfirmed"`
	PhoneNumberConfirmed bool   `json:"phoneNumberConfirmed"`
}

// IdentityStore resolves principals and checks their passwords.
//
// FindPrincipalByUsername returns [ErrUserNotFound] for an unknown name.
// VerifyPassword reports false for a wrong password and for an unknown ID.
type IdentityStore interface {
	FindPrincipalByUsername(ctx context.Context, username string) (*Principal, error)
	VerifyPassword(ctx context.Context, principalID, password string) (bool, error)
	RolesOf(ctx context.Context, principalID string) ([]string, error)
	CountPrincipals(ctx context.Context) (int64, error)
}

// RoleStore returns role records together with their granted transactions.
// Unknown names are skipped.
type RoleStore interface {
	RolesGranting(ctx context.Context, names []string) ([]permission.Role, error)
}

// NewPrincipal is the directory insert payload.
type NewPrincipal struct {
	Username       string
	Email          string
	PhoneNumber    string
	PasswordHash   string
	EmailConfirmed bool
	Roles          []string
}

// Directory is the account-management surface behind the Engine's user and
// role operations. It is optional; authentication works without it.
//
// Implementations report duplicates with [ErrUserExists] or [ErrRoleExists]
// and missing records with [ErrUserNotFound] or [ErrRoleNotFound].
type Directory interface {
	CreatePrincipal(ctx context.Context, p NewPrincipal) (*Principal, error)
	GetPrincipal(ctx context.Context, id string) (*Principal, error)
	// UpdatePrincipal stores p. A non-empty passwordHash replaces the
	// stored hash.
	UpdatePrincipal(ctx context.Context, p *Principal, passwordHash string) error
	DeletePrincipal(ctx context.Context, id string) error
	ListPrincipals(ctx context.Context) ([]Principal, error)

	CreateRole(ctx context.Context, name string) (*permission.Role, error)
	ListRoles(ctx context.Context) ([]permission.Role, error)
	SetRoles(ctx context.Context, principalID string, roles []string) error

	ListTransactions(ctx context.Context) ([]permission.Transaction, error)
	// GrantAllTransactions grants every known transaction to role and
	// returns how many grants were added.
	GrantAllTransactions(ctx context.Context, role string) (int, error)
}

// AuthResult is returned by Authenticate and RefreshToken.
type AuthResult struct {
	AccessToken      string    `json:"jwtToken"`
	RefreshToken     string    `json:"refreshToken,omitempty"`
	Username         string    `json:"userName"`
	RefreshExpiresAt time.Time `json:"refreshTokenExpiration"`
}

// AuthorizeRequest describes one protected operation. Principal is nil for
// unauthenticated callers.
type AuthorizeRequest struct {
	Principal          *Principal
	Path               string
	Anonymous          bool
	FirstUserOperation bool
}

// UserRef selects a principal by ID or, when ID is empty, by username.
type UserRef struct {
	ID       string
	Username string
}

// CreateUserRequest registers a principal. Email defaults to Username.
type CreateUserRequest struct {
	Username    string
	Password    string
	Email       string
	PhoneNumber string
	Roles       []string
}
