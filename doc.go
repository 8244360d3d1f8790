// Package gateAuth is an authentication and authorization service: HS256
// access tokens, rotating opaque refresh tokens kept in Redis, and
// path-based permission checks driven by roles and transactions.
//
// Engine methods are safe to call from multiple goroutines after
// construction through [Builder.Build].
//
// # Token lifecycle
//
// [Engine.Authenticate] verifies a username and password, opens a refresh
// chain and signs a 15 minute access token. [Engine.RefreshToken] rotates
// an active refresh token: the old one is revoked and points at its
// successor. Presenting a token that has already been revoked revokes every
// live descendant in its chain; the caller only ever sees
// [ErrTokenInactive].
//
// # Authorization
//
// [Engine.Authorize] allows anonymous operations, the first-user operation
// while no principal exists, and any path granted by one of the
// principal's roles. Everything else is denied with [ErrUnauthorized].
//
// # Architecture boundaries
//
// gateAuth is the public surface. Flow orchestration, rate limiting and
// audit dispatch live under internal/. Identity data is reached only
// through [IdentityStore], [RoleStore] and [Directory]; gormstore provides
// a PostgreSQL implementation of all three.
package gateAuth
