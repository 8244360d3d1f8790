// Package internal holds helpers private to gateAuth: opaque token
// generation and the digests used as Redis index keys.
//
// Sub-packages:
//
//	audit     buffered event dispatch and sinks
//	config    server configuration from YAML, .env and environment
//	flows     engine operations over injected dependencies
//	rate      Redis fixed-window throttles for login and refresh
//	security  the settings report logged at start
package internal
