// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunAuthenticate, RunRefresh, RunRevoke, etc.) accepts a
// typed dependency struct and returns a result whose Failure field the root
// package maps onto its public sentinel errors. Flows never touch Redis or
// the identity database directly; every side effect goes through the deps.
//
// # Architecture boundaries
//
// Flow functions coordinate the refresh chain, token store, access-token
// codec, rate limiter, audit and metrics callbacks. They do NOT own any of
// these resources; ownership stays with the Engine.
//
// # Concurrency
//
// Collection mutations run inside [persistWithRetry]: load, mutate, and a
// versioned Persist. A version conflict reloads and re-runs the mutation, so
// two requests racing on one principal serialize without holding a lock.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import gateAuth (to avoid import cycles).
//   - Surface why a credential was rejected.
package flows
