package authcore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/harborline/authcore/session"
	"github.com/harborline/authcore/token"
)

// SessionMetadata is the request context callers capture at login.
type SessionMetadata = session.Metadata

// Login authenticates an email/password pair. For MFA-enrolled
// accounts no tokens are issued; the caller gets a single-use
// challenge to pass to [Core.ConfirmLoginMFA] together with a TOTP or
// backup code. Unknown emails and wrong passwords are indistinguishable
// in both the error and, via a decoy hash comparison, in timing.
func (c *Core) Login(ctx context.Context, email, plaintext string, meta SessionMetadata) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	if c.loginLimiter != nil {
		if err := c.loginLimiter.Allow(limitKey(email, meta.IP)); err != nil {
			c.metrics.Inc(MetricLoginRateLimited)
			c.emit(ctx, AuditEvent{
				EventType: EventLoginRateLimited,
				IP:        meta.IP,
				Reason:    "attempt budget exhausted",
			})
			return nil, err
		}
	}

	user, err := c.credentials.GetUserByEmail(ctx, email)
	if err != nil {
		if IsUnavailable(err) {
			return nil, errors.Join(ErrBackendUnavailable, err)
		}
		c.hasher.CompareDummy(plaintext)
		c.loginFailed(ctx, "", meta.IP, "unknown email")
		return nil, ErrInvalidCredentials
	}

	ok, err := c.hasher.Verify(plaintext, user.PasswordHash)
	if err != nil || !ok {
		c.loginFailed(ctx, user.ID, meta.IP, "password mismatch")
		return nil, ErrInvalidCredentials
	}

	if user.Status != AccountActive {
		c.loginFailed(ctx, user.ID, meta.IP, "account inactive")
		return nil, ErrAccountInactive
	}

	enrolled, err := c.mfa.Enrolled(ctx, user.ID)
	if err != nil {
		return nil, errors.Join(ErrBackendUnavailable, err)
	}
	if enrolled {
		return c.issueChallenge(ctx, user, meta)
	}

	return c.finishLogin(ctx, user, meta, false)
}

func (c *Core) issueChallenge(ctx context.Context, user UserRecord, meta SessionMetadata) (*LoginResult, error) {
	id := uuid.NewString()
	challenge := &loginChallenge{
		UserID:    user.ID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		ExpiresAt: c.now().Add(c.cfg.ChallengeTTL),
	}
	if err := c.challenges.Save(ctx, id, challenge, c.cfg.ChallengeTTL); err != nil {
		return nil, errors.Join(ErrBackendUnavailable, err)
	}

	c.emit(ctx, AuditEvent{
		EventType:   EventMFAChallenged,
		PrincipalID: user.ID,
		IP:          meta.IP,
		Success:     true,
	})
	return &LoginResult{MFARequired: true, Challenge: id}, nil
}

// ConfirmLoginMFA completes a challenged login with a TOTP or backup
// code. The challenge is consumed whether or not the code verifies, so
// a failed attempt sends the caller back through Login.
func (c *Core) ConfirmLoginMFA(ctx context.Context, challengeID, code string) (*LoginResult, error) {
	challenge, err := c.challenges.Take(ctx, challengeID)
	if err != nil {
		if errors.Is(err, errChallengeNotFound) {
			return nil, ErrMFAChallengeInvalid
		}
		return nil, errors.Join(ErrBackendUnavailable, err)
	}
	if c.now().After(challenge.ExpiresAt) {
		return nil, ErrMFAChallengeInvalid
	}

	// The budget is per user, not per challenge. Challenges are single
	// use, so a per-challenge key would reset on every login attempt.
	if c.mfaLimiter != nil {
		if err := c.mfaLimiter.Allow(challenge.UserID); err != nil {
			c.metrics.Inc(MetricMFARateLimited)
			return nil, err
		}
	}

	result, err := c.mfa.Verify(ctx, challenge.UserID, code, false)
	if err != nil {
		c.metrics.Inc(MetricMFAVerifyFailure)
		c.emit(ctx, AuditEvent{
			EventType:   EventMFAFailed,
			PrincipalID: challenge.UserID,
			IP:          challenge.IP,
			Reason:      "login challenge code rejected",
		})
		return nil, err
	}
	c.metrics.Inc(MetricMFAVerifySuccess)
	if result.UsedBackupCode {
		c.metrics.Inc(MetricBackupCodeUsed)
	}

	user, err := c.credentials.GetUserByID(ctx, challenge.UserID)
	if err != nil {
		return nil, errors.Join(ErrBackendUnavailable, err)
	}
	if user.Status != AccountActive {
		return nil, ErrAccountInactive
	}

	meta := SessionMetadata{IP: challenge.IP, UserAgent: challenge.UserAgent}
	return c.finishLogin(ctx, user, meta, true)
}

func (c *Core) finishLogin(ctx context.Context, user UserRecord, meta SessionMetadata, mfaVerified bool) (*LoginResult, error) {
	set, err := c.resolver.Resolve(user.Role)
	if err != nil {
		return nil, err
	}

	sess, evicted, err := c.sessions.Create(ctx, user.ID, meta)
	if err != nil {
		return nil, errors.Join(ErrBackendUnavailable, err)
	}
	c.metrics.Inc(MetricSessionCreated)
	for _, id := range evicted {
		c.metrics.Inc(MetricSessionEvicted)
		c.emit(ctx, AuditEvent{
			EventType:   EventSessionEvicted,
			PrincipalID: user.ID,
			SessionID:   id,
			IP:          meta.IP,
			Reason:      "session cap exceeded",
		})
	}

	access, _, err := c.tokens.IssueAccess(user.ID, sess.ID, string(user.Role), set.Names(), mfaVerified)
	if err != nil {
		return nil, err
	}
	refresh, _, err := c.tokens.IssueRefresh(user.ID, sess.ID)
	if err != nil {
		return nil, err
	}
	c.metrics.Inc(MetricTokenIssued)
	c.metrics.Inc(MetricLoginSuccess)

	c.emit(ctx, AuditEvent{
		EventType:   EventLogin,
		PrincipalID: user.ID,
		SessionID:   sess.ID,
		IP:          meta.IP,
		Success:     true,
	})
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sess.ID,
	}, nil
}

func (c *Core) loginFailed(ctx context.Context, userID, ip, reason string) {
	c.metrics.Inc(MetricLoginFailure)
	c.emit(ctx, AuditEvent{
		EventType:   EventLoginDenied,
		PrincipalID: userID,
		IP:          ip,
		Reason:      reason,
	})
}

// Refresh rotates a refresh token. The presented token's session must
// still be live, the old jti is revoked before the new pair exists,
// and role and permissions are re-resolved from the credential store
// rather than copied from the old token. Presenting an
// already-rotated token is treated as theft evidence: the rotation
// fails and the bound session is invalidated so the holder of the
// live pair is logged out too.
func (c *Core) Refresh(ctx context.Context, rawRefresh string) (*LoginResult, error) {
	claims, err := c.tokens.Verify(ctx, rawRefresh, token.KindRefresh)
	if err != nil {
		if errors.Is(err, token.ErrRevoked) {
			c.onRefreshReuse(ctx, rawRefresh)
		}
		c.noteVerifyFailure(err)
		return nil, err
	}

	if claims.SessionID != "" {
		if _, err := c.sessions.Validate(ctx, claims.SessionID); err != nil {
			c.noteSessionFailure(err)
			return nil, err
		}
	}

	access, refresh, accessClaims, err := c.tokens.Rotate(ctx, rawRefresh, c)
	if err != nil {
		return nil, err
	}
	c.metrics.Inc(MetricRefreshRotated)
	c.metrics.Inc(MetricTokenIssued)

	c.emit(ctx, AuditEvent{
		EventType:   EventRefreshRotated,
		PrincipalID: accessClaims.Subject,
		SessionID:   accessClaims.SessionID,
		Success:     true,
	})
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    accessClaims.SessionID,
	}, nil
}

// onRefreshReuse reacts to a revoked refresh token being presented
// again. The claims cannot be trusted for authorization, but their
// session binding is enough to force the suspect session out.
func (c *Core) onRefreshReuse(ctx context.Context, rawRefresh string) {
	c.metrics.Inc(MetricRefreshReuseDetected)

	claims, err := token.ParseUnverified(rawRefresh)
	if err != nil {
		return
	}
	event := AuditEvent{
		EventType:   EventRefreshReuse,
		PrincipalID: claims.Subject,
		SessionID:   claims.SessionID,
		Reason:      "revoked refresh token presented",
	}
	if claims.SessionID != "" {
		if err := c.sessions.Invalidate(ctx, claims.SessionID); err == nil {
			c.metrics.Inc(MetricSessionInvalidated)
		}
	}
	c.emit(ctx, event)
}

// Logout revokes the presented access token and invalidates its bound
// session. Already-dead tokens and sessions are not errors; logging
// out twice succeeds.
func (c *Core) Logout(ctx context.Context, rawAccess string) error {
	claims, err := c.tokens.Verify(ctx, rawAccess, token.KindAccess)
	if err != nil {
		if errors.Is(err, token.ErrExpired) || errors.Is(err, token.ErrRevoked) {
			return nil
		}
		return err
	}

	if err := c.tokens.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}
	c.metrics.Inc(MetricTokenRevoked)

	if claims.SessionID != "" {
		if err := c.sessions.Invalidate(ctx, claims.SessionID); err != nil {
			return errors.Join(ErrBackendUnavailable, err)
		}
		c.metrics.Inc(MetricSessionInvalidated)
	}

	c.emit(ctx, AuditEvent{
		EventType:   EventLogout,
		PrincipalID: claims.Subject,
		SessionID:   claims.SessionID,
		Success:     true,
	})
	return nil
}

// LogoutAll force-ends every active session of a user, for password
// changes and compromise response. Access tokens already in flight die
// at their next session check or TTL expiry, whichever comes first.
func (c *Core) LogoutAll(ctx context.Context, userID string) error {
	if err := c.sessions.InvalidateAllForUser(ctx, userID); err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}
	c.metrics.Inc(MetricSessionInvalidated)
	c.emit(ctx, AuditEvent{
		EventType:   EventLogoutAll,
		PrincipalID: userID,
		Success:     true,
	})
	return nil
}

// RevokeToken revokes a presented token of any kind by its jti.
// Revocation is visible to verification immediately and is idempotent.
func (c *Core) RevokeToken(ctx context.Context, raw string) error {
	claims, err := token.ParseUnverified(raw)
	if err != nil {
		return token.ErrMalformed
	}
	// Verify under the token's own kind so forged strings cannot seed
	// the revocation list.
	verified, err := c.tokens.Verify(ctx, raw, claims.Kind)
	if err != nil {
		if errors.Is(err, token.ErrRevoked) {
			return nil
		}
		return err
	}

	if err := c.tokens.Revoke(ctx, verified.ID, verified.ExpiresAt.Time); err != nil {
		return errors.Join(ErrBackendUnavailable, err)
	}
	c.metrics.Inc(MetricTokenRevoked)
	c.emit(ctx, AuditEvent{
		EventType:   EventTokenRevoked,
		PrincipalID: verified.Subject,
		SessionID:   verified.SessionID,
		Success:     true,
	})
	return nil
}

// StepUp upgrades an access token to MFA-verified after checking a
// fresh TOTP or backup code. The old token is revoked; the returned
// replacement carries the verified flag and the same session binding.
func (c *Core) StepUp(ctx context.Context, rawAccess, code string) (string, error) {
	claims, err := c.tokens.Verify(ctx, rawAccess, token.KindAccess)
	if err != nil {
		c.noteVerifyFailure(err)
		return "", err
	}

	if c.mfaLimiter != nil {
		if err := c.mfaLimiter.Allow(claims.Subject); err != nil {
			c.metrics.Inc(MetricMFARateLimited)
			return "", err
		}
	}

	result, err := c.mfa.Verify(ctx, claims.Subject, code, false)
	if err != nil {
		c.metrics.Inc(MetricMFAVerifyFailure)
		c.emit(ctx, AuditEvent{
			EventType:   EventMFAFailed,
			PrincipalID: claims.Subject,
			SessionID:   claims.SessionID,
			Reason:      "step-up code rejected",
		})
		return "", err
	}
	c.metrics.Inc(MetricMFAVerifySuccess)
	if result.UsedBackupCode {
		c.metrics.Inc(MetricBackupCodeUsed)
	}

	if err := c.tokens.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return "", errors.Join(ErrBackendUnavailable, err)
	}

	// Role and permissions come from the store of record, not the old
	// token, so a demotion cannot ride along on the upgrade.
	attrs, err := c.Attributes(ctx, claims.Subject)
	if err != nil {
		return "", err
	}
	access, _, err := c.tokens.IssueAccess(claims.Subject, claims.SessionID, attrs.Role, attrs.Permissions, true)
	if err != nil {
		return "", err
	}
	c.metrics.Inc(MetricTokenIssued)
	c.emit(ctx, AuditEvent{
		EventType:   EventStepUp,
		PrincipalID: claims.Subject,
		SessionID:   claims.SessionID,
		Success:     true,
	})
	return access, nil
}

// IssueAdminToken exchanges an MFA-verified access token held by an
// admin-capable principal for a short-lived admin token. Without a
// live MFA verification the exchange fails closed unless the audited
// development override is configured.
func (c *Core) IssueAdminToken(ctx context.Context, rawAccess string) (string, error) {
	p, err := c.VerifyBearerToken(ctx, rawAccess)
	if err != nil {
		return "", err
	}

	if !c.resolver.Check(p.Role, p.ID, "admin:access", nil).Allowed {
		c.emit(ctx, AuditEvent{
			EventType:   EventAdminDenied,
			PrincipalID: p.ID,
			SessionID:   p.SessionID,
			Reason:      "role lacks admin:access",
		})
		return "", ErrUnauthorized
	}

	if !p.MFAVerified {
		if !c.tokens.AdminOverrideActive() {
			c.metrics.Inc(MetricAdminTokenDeniedMFA)
			c.emit(ctx, AuditEvent{
				EventType:   EventAdminDenied,
				PrincipalID: p.ID,
				SessionID:   p.SessionID,
				Reason:      "mfa verification required",
			})
			return "", ErrMFARequired
		}
		c.emit(ctx, AuditEvent{
			EventType:   EventAdminOverride,
			PrincipalID: p.ID,
			SessionID:   p.SessionID,
			Reason:      "admin token issued without mfa by configured override",
			Success:     true,
		})
	}

	admin, _, err := c.tokens.IssueAdmin(p.ID, p.SessionID, string(p.Role), p.Permissions, p.MFAVerified)
	if err != nil {
		return "", err
	}
	c.metrics.Inc(MetricAdminTokenIssued)
	c.emit(ctx, AuditEvent{
		EventType:   EventAdminIssued,
		PrincipalID: p.ID,
		SessionID:   p.SessionID,
		Success:     true,
	})
	return admin, nil
}

func limitKey(email, ip string) string {
	if ip == "" {
		return email
	}
	return email + "|" + ip
}
