// Package token issues, verifies, and revokes the signed access,
// refresh, and admin credentials of the authorization core.
//
// Tokens are JWTs signed with HS256 or Ed25519. Every token carries a
// unique jti used as the revocation key; logical destruction is an
// insert into the revocation list, never physical deletion before
// natural expiry, which guards against clock skew and replay inside
// the original validity window.
package token
