package session

import "errors"

// Validation failures are distinguished internally for audit logs but
// must be collapsed to a generic unauthorized at the boundary so
// callers cannot enumerate sessions.
var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
	ErrInactive = errors.New("session inactive")
	// ErrStoreUnavailable wraps session-store infrastructure failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
)
