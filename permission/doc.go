// Package permission holds the role→transaction authorization model and the
// pure per-request decision function.
//
// # Transactions
//
// A [Transaction] is one protected endpoint, identified by a lower-cased
// request path and a unique code. Roles grant transactions; a request is
// allowed when any of the caller's roles grants the requested path.
//
// # Architecture boundaries
//
// [Decide] is side-effect free: bootstrap state and the caller's roles are
// resolved by the Engine and passed in. The [Registry] and [Catalog] validate
// transaction definitions in memory. [GrantCache] memoizes role lookups.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import gateAuth, jwt, or tokenstore.
//   - Allow on ambiguity: every unhandled branch denies.
package permission
