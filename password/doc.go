// Package password provides Argon2id password hashing in PHC string
// format, used by the login flow against credential-store hashes.
package password
