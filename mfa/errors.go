package mfa

import "errors"

var (
	// ErrNotEnrolled is returned when verification is attempted for a
	// user with no verified enrollment.
	ErrNotEnrolled = errors.New("mfa not enrolled")
	// ErrInvalidCode covers wrong TOTP codes, consumed backup codes, and
	// replayed codes alike; callers must not tell the user which.
	ErrInvalidCode = errors.New("invalid mfa code")
	// ErrSetupExpired is returned when a setup-flow verification arrives
	// after the pending enrollment's TTL elapsed (or was never begun).
	ErrSetupExpired = errors.New("mfa setup expired")
	// ErrStoreUnavailable wraps enrollment-store infrastructure failures.
	ErrStoreUnavailable = errors.New("mfa store unavailable")

	// errNotFound is the store-level miss; the service maps it per flow.
	errNotFound = errors.New("mfa enrollment not found")
)
