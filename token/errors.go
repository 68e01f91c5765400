package token

import "errors"

var (
	// ErrMalformed covers parse and format failures.
	ErrMalformed = errors.New("malformed token")
	// ErrSignatureInvalid is returned when signature verification fails.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrExpired is returned when the token is outside its validity window.
	ErrExpired = errors.New("token expired")
	// ErrWrongAudience is returned on audience or issuer mismatch.
	ErrWrongAudience = errors.New("token audience mismatch")
	// ErrWrongKind is returned when the kind discriminator does not match
	// the expected kind.
	ErrWrongKind = errors.New("token kind mismatch")
	// ErrRevoked is returned when the token's jti is on the revocation
	// list. Callers should treat it as a security signal: the token was
	// otherwise valid.
	ErrRevoked = errors.New("token revoked")
	// ErrInvalidPrincipal is returned when issuance is requested for an
	// empty or incomplete principal.
	ErrInvalidPrincipal = errors.New("invalid principal")
	// ErrMFARequired is returned when admin-token issuance is requested
	// without a live MFA verification.
	ErrMFARequired = errors.New("mfa verification required")
	// ErrStoreUnavailable wraps revocation-store infrastructure failures.
	// Verification fails closed on it.
	ErrStoreUnavailable = errors.New("revocation store unavailable")
)
