package authcore

import (
	"errors"

	"github.com/harborline/authcore/internal/rate"
	"github.com/harborline/authcore/mfa"
	"github.com/harborline/authcore/session"
	"github.com/harborline/authcore/token"
)

var (
	// ErrUnauthorized is the generic credential failure. Boundary
	// callers surface it (and everything IsUnauthorized matches) as a
	// bare 401 without the internal reason.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned for unknown identifiers and
	// wrong passwords alike, so login cannot be used to enumerate
	// accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned when the account is disabled or
	// locked.
	ErrAccountInactive = errors.New("account inactive")
	// ErrMFAChallengeInvalid is returned for unknown or expired login
	// challenges.
	ErrMFAChallengeInvalid = errors.New("mfa challenge invalid")
	// ErrBackendUnavailable classifies infrastructure failures
	// (credential store, revocation list, session table unreachable).
	// Authorization decisions fail closed on it, never open.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Re-exported component sentinels, so callers depend on one package.
var (
	ErrTokenExpired     = token.ErrExpired
	ErrTokenRevoked     = token.ErrRevoked
	ErrTokenMalformed   = token.ErrMalformed
	ErrMFARequired      = token.ErrMFARequired
	ErrSessionNotFound  = session.ErrNotFound
	ErrSessionExpired   = session.ErrExpired
	ErrSessionInactive  = session.ErrInactive
	ErrMFANotEnrolled   = mfa.ErrNotEnrolled
	ErrMFAInvalidCode   = mfa.ErrInvalidCode
	ErrMFASetupExpired  = mfa.ErrSetupExpired
	ErrRateLimited      = rate.ErrRateLimited
)

// IsUnauthorized reports whether err belongs to the credential-failure
// class that must be collapsed to a generic 401 at the boundary. The
// internal distinction stays available through errors.Is for audit.
func IsUnauthorized(err error) bool {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountInactive),
		errors.Is(err, ErrMFAChallengeInvalid),
		errors.Is(err, token.ErrExpired),
		errors.Is(err, token.ErrRevoked),
		errors.Is(err, token.ErrMalformed),
		errors.Is(err, token.ErrSignatureInvalid),
		errors.Is(err, token.ErrWrongAudience),
		errors.Is(err, token.ErrWrongKind),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrExpired),
		errors.Is(err, session.ErrInactive),
		errors.Is(err, mfa.ErrInvalidCode),
		errors.Is(err, mfa.ErrNotEnrolled),
		errors.Is(err, mfa.ErrSetupExpired):
		return true
	}
	return false
}

// IsUnavailable reports whether err is an infrastructure failure the
// caller may retry under its own policy. The core never retries
// internally.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable) ||
		errors.Is(err, token.ErrStoreUnavailable) ||
		errors.Is(err, session.ErrStoreUnavailable) ||
		errors.Is(err, mfa.ErrStoreUnavailable)
}
