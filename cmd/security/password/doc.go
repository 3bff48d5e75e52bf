// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes are stored as PHC strings:
//
//	$argon2id$v=19$m=<KiB>,t=<iterations>,p=<lanes>$<salt>$<key>
//
// Stored hashes are treated as untrusted input: Verify rejects strings whose
// parameters fall far outside the configured cost.
package password
