// Package httpapi exposes the gateAuth engine over HTTP with gorilla/mux.
//
// Every endpoint lives under /api/v1 and is wrapped by middleware.Guard
// with the route's anonymous or first-user flag. The refresh token only
// ever travels in the HttpOnly refreshToken cookie; JSON bodies carry the
// access token and username. Errors are RFC 7807 problem documents whose
// traceId is the request ID.
package httpapi
