package gateAuth

import "errors"

// Caller-visible failures of the authentication service. Credential and
// token errors never carry the underlying cause.
var (
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenNotFound means the refresh token matches no principal.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenInactive means the refresh token is expired or revoked. A
	// revoked token presented again also yields this error.
	ErrTokenInactive = errors.New("token inactive")
	// ErrTokenInvalid means the access token failed verification.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrUnauthorized means the request was denied by authorization.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInternalFailure hides persistence and collaborator failures.
	ErrInternalFailure = errors.New("internal failure")
)

var (
	ErrLoginRateLimited   = errors.New("login rate limited")
	ErrRefreshRateLimited = errors.New("refresh rate limited")

	ErrUserExists      = errors.New("user already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserInvalid     = errors.New("invalid user")
	ErrRoleExists      = errors.New("role already exists")
	ErrRoleInvalid     = errors.New("invalid role")
	ErrRoleNotFound    = errors.New("role not found")
	ErrPasswordPolicy  = errors.New("password does not meet policy")
	ErrEngineNotReady  = errors.New("engine not initialized")
	ErrDirectoryNeeded = errors.New("account management requires a directory")
)
