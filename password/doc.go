// Package password hashes and verifies principal passwords.
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Chain] additionally verifies bcrypt hashes so imported accounts can sign
// in; [Chain.NeedsRehash] reports them for upgrade.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other gateAuth package.
//   - Log plaintext passwords.
package password
