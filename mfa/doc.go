// Package mfa implements TOTP multi-factor enrollment and
// verification, including single-use backup codes. Secrets pending
// first verification expire on a TTL so abandoned setups leave no
// orphaned secret behind.
package mfa
