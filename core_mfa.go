package authcore

import (
	"context"
	"errors"

	"github.com/harborline/authcore/mfa"
)

// MFASetup is returned by BeginMFASetup. BackupCodes are shown to the
// user exactly once; only their hashes are stored.
type MFASetup = mfa.Setup

// BeginMFASetup starts TOTP enrollment for a user and returns the
// secret, a provisioning URI for authenticator apps, and a fresh set
// of single-use backup codes. The pending enrollment expires unless
// confirmed; restarting replaces the previous pending secret. An
// already-enrolled user can begin setup too, and keeps the existing
// enrollment untouched until the new secret is confirmed.
func (c *Core) BeginMFASetup(ctx context.Context, userID string) (*MFASetup, error) {
	user, err := c.credentials.GetUserByID(ctx, userID)
	if err != nil {
		return nil, errors.Join(ErrBackendUnavailable, err)
	}

	setup, err := c.mfa.BeginSetup(ctx, userID, user.Email)
	if err != nil {
		return nil, err
	}
	c.metrics.Inc(MetricMFASetupStarted)
	c.emit(ctx, AuditEvent{
		EventType:   EventMFASetupStarted,
		PrincipalID: userID,
		Success:     true,
	})
	return setup, nil
}

// ConfirmMFASetup proves possession of the pending secret with a live
// code and promotes it to the enrolled secret. Backup codes only
// become usable here.
func (c *Core) ConfirmMFASetup(ctx context.Context, userID, code string) error {
	if c.mfaLimiter != nil {
		if err := c.mfaLimiter.Allow(userID); err != nil {
			c.metrics.Inc(MetricMFARateLimited)
			return err
		}
	}

	if _, err := c.mfa.Verify(ctx, userID, code, true); err != nil {
		c.metrics.Inc(MetricMFAVerifyFailure)
		c.emit(ctx, AuditEvent{
			EventType:   EventMFAFailed,
			PrincipalID: userID,
			Reason:      "setup confirmation code rejected",
		})
		return err
	}
	c.metrics.Inc(MetricMFAVerifySuccess)
	c.emit(ctx, AuditEvent{
		EventType:   EventMFAEnrolled,
		PrincipalID: userID,
		Success:     true,
	})
	return nil
}

// CancelMFASetup discards a pending enrollment. An enrolled secret, if
// any, is unaffected.
func (c *Core) CancelMFASetup(ctx context.Context, userID string) error {
	return c.mfa.CancelSetup(ctx, userID)
}

// MFAEnrolled reports whether the user has a confirmed enrollment.
func (c *Core) MFAEnrolled(ctx context.Context, userID string) (bool, error) {
	return c.mfa.Enrolled(ctx, userID)
}

// DisableMFA removes the user's enrollment and invalidates every
// remaining backup code. Authorizing the call (re-authentication,
// support workflow) is the caller's responsibility; the event is
// audited either way.
func (c *Core) DisableMFA(ctx context.Context, userID string) error {
	if err := c.mfa.Disable(ctx, userID); err != nil {
		return err
	}
	c.emit(ctx, AuditEvent{
		EventType:   EventMFADisabled,
		PrincipalID: userID,
		Success:     true,
	})
	return nil
}
