// Package tokenstore provides the Redis-backed [refresh.Store]: one hash per
// principal holding the encoded token collection and a version counter, plus
// a global token→principal index used by FindByToken and the uniqueness probe.
//
// # Consistency
//
// Persist runs as a single Lua script. It compares the collection version it
// was loaded at, rejects token values indexed to another principal, writes the
// new collection and adjusts the index in one step. Concurrent writers to the
// same principal therefore serialize: the loser receives refresh.ErrConflict
// and must reload.
//
// # Architecture boundaries
//
// This package owns key layout, encoding and Redis scripts. It does not decide
// when tokens rotate or how reuse is handled; that belongs to refresh and the
// Engine.
//
// # What this package must NOT do
//
//   - Import gateAuth or jwt (no upward imports).
//   - Store raw token values in Redis key names.
package tokenstore
