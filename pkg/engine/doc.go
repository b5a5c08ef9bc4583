// Package engine is the reference secrets engine. It accepts serialized
// protocol commands through RunCommand and answers with a serialized
// response envelope, so it can sit behind the SDK gateway directly or
// behind the HTTP server in package remote.
//
// # Sessions
//
// Every secrets and projects command needs a session, created by logging in
// with a machine access token of the form
//
//	0.<token id>.<client secret>:<key>
//
// Tokens are issued with IssueAccessToken and verified against a bcrypt
// hash. A login that names a state file records the session there (bbolt);
// a later login with the same token restores it without re-hashing. The
// state file's directory must already exist.
//
// # Storage
//
// Secret values and notes are sealed with AES-256-GCM under a key derived
// from the engine passphrase with Argon2id. The salt and a key check value
// live in the store's meta table, so opening a store with the wrong
// passphrase fails with ErrWrongPassphrase.
//
// # Failures
//
// Command failures never surface as Go errors. They become a response with
// success=false and the message of an EngineError. RunCommand only returns
// an error after Close.
package engine
