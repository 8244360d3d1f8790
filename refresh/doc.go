// Package refresh models a principal's refresh tokens and implements the
// rotation chain: generation with a uniqueness guarantee, rotation, single
// revocation, and the descendant cascade used for reuse detection.
//
// # Token chain
//
// Every rotation revokes the presented token and records the successor in
// ReplacedByToken, so one login produces a strictly linear family
// R1 → R2 → R3. Presenting a revoked member of the family revokes every
// still-active descendant.
//
// # Architecture boundaries
//
// This package owns the [Token] and [Collection] model, the [Store] contract
// and the [Chain] algorithms. Persistence lives in tokenstore; credential
// checks and access-token minting belong to the Engine.
//
// # What this package must NOT do
//
//   - Import gateAuth, jwt, or tokenstore.
//   - Hold locks while generating tokens.
//   - Delete an active token.
package refresh
