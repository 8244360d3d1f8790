// Package middleware adapts gateAuth authorization to net/http.
//
// [Guard] reads the Authorization header, resolves the principal through
// Engine.ValidateToken and runs Engine.Authorize with the route's flags.
// [AllowAnonymous], [FirstUserOperation] and [RequirePrincipal] are the
// three route shapes the HTTP API uses. [WithClientIP] records the caller
// address used for throttling and token provenance.
//
// This package makes no decisions itself; it only maps the engine's answer
// to a status code.
package middleware
