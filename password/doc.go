// Package password implements password hashing and verification with bcrypt,
// matching the credential format already stored by the marketplace backend.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// reuse rejection) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other otpengine package.
//   - Log plaintext passwords at runtime.
package password
