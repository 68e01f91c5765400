package authcore

import (
	"context"
	"errors"
	"time"

	internalaudit "github.com/harborline/authcore/internal/audit"
	internalmetrics "github.com/harborline/authcore/internal/metrics"
	"github.com/harborline/authcore/internal/rate"
	"github.com/harborline/authcore/mfa"
	"github.com/harborline/authcore/password"
	"github.com/harborline/authcore/permission"
	"github.com/harborline/authcore/session"
	"github.com/harborline/authcore/token"
)

// Audit event types emitted by the core.
const (
	EventLogin            = "auth.login"
	EventLoginDenied      = "auth.login.denied"
	EventLoginRateLimited = "auth.login.rate_limited"
	EventMFAChallenged    = "auth.login.mfa_challenged"
	EventLogout           = "auth.logout"
	EventLogoutAll        = "auth.logout_all"
	EventTokenRevoked     = "token.revoked"
	EventRefreshRotated   = "token.refresh.rotated"
	EventRefreshReuse     = "token.refresh.reuse_detected"
	EventAdminIssued      = "token.admin.issued"
	EventAdminDenied      = "token.admin.denied"
	EventAdminOverride    = "token.admin.mfa_override"
	EventStepUp           = "auth.step_up"
	EventPermissionDenied = "authz.denied"
	EventSessionEvicted   = "session.evicted"
	EventMFASetupStarted  = "mfa.setup.started"
	EventMFAEnrolled      = "mfa.enrolled"
	EventMFADisabled      = "mfa.disabled"
	EventMFAFailed        = "mfa.verify.failed"
)

// Core is the assembled authorization engine. It is transport-agnostic:
// callers hand it raw token strings and credentials and get back typed
// results and sentinel errors; HTTP status mapping and cookie handling
// stay outside. All methods are safe for concurrent use.
type Core struct {
	cfg         Config
	credentials CredentialStore
	tokens      *token.Service
	resolver    *permission.Resolver
	sessions    *session.Manager
	mfa         *mfa.Service
	hasher      *password.Hasher
	challenges  challengeStore

	loginLimiter *rate.Limiter
	mfaLimiter   *rate.Limiter

	audit   *internalaudit.Dispatcher
	metrics *internalmetrics.Metrics

	now func() time.Time
}

func (c *Core) emit(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = c.now().UTC()
	}
	c.audit.Emit(ctx, event)
}

// VerifyBearerToken verifies an access token and, when the token is
// bound to a tracked session, validates that session. It returns the
// principal the caller should act as. Revoked, expired, or malformed
// tokens and dead sessions all fail; use [IsUnauthorized] at the
// boundary to collapse them into a generic 401.
func (c *Core) VerifyBearerToken(ctx context.Context, raw string) (*Principal, error) {
	start := c.now()
	claims, err := c.tokens.Verify(ctx, raw, token.KindAccess)
	c.metrics.Observe(c.now().Sub(start))
	if err != nil {
		c.noteVerifyFailure(err)
		return nil, err
	}
	return c.principalFrom(ctx, claims)
}

// VerifyAdminToken verifies an admin token. Admin tokens are always
// session-bound, so a forced logout kills admin access immediately.
func (c *Core) VerifyAdminToken(ctx context.Context, raw string) (*Principal, error) {
	claims, err := c.tokens.Verify(ctx, raw, token.KindAdmin)
	if err != nil {
		c.noteVerifyFailure(err)
		return nil, err
	}
	if claims.SessionID == "" {
		c.metrics.Inc(MetricTokenVerifyFailure)
		return nil, token.ErrMalformed
	}
	return c.principalFrom(ctx, claims)
}

func (c *Core) principalFrom(ctx context.Context, claims *token.Claims) (*Principal, error) {
	if claims.SessionID != "" {
		if _, err := c.sessions.Validate(ctx, claims.SessionID); err != nil {
			c.noteSessionFailure(err)
			return nil, err
		}
	}
	return &Principal{
		ID:          claims.Subject,
		Role:        Role(claims.Role),
		Permissions: claims.Permissions,
		MFAVerified: claims.MFAVerified,
		SessionID:   claims.SessionID,
	}, nil
}

func (c *Core) noteVerifyFailure(err error) {
	c.metrics.Inc(MetricTokenVerifyFailure)
	if errors.Is(err, token.ErrRevoked) {
		c.metrics.Inc(MetricRevokedTokenSeen)
	}
}

func (c *Core) noteSessionFailure(err error) {
	switch {
	case errors.Is(err, session.ErrExpired):
		c.metrics.Inc(MetricSessionExpired)
	case errors.Is(err, session.ErrInactive), errors.Is(err, session.ErrNotFound):
		c.metrics.Inc(MetricTokenVerifyFailure)
	}
}

// CheckPermission evaluates whether the principal holds perm, applying
// contextual guards when pctx is supplied. Denials are audited with the
// internal reason; the returned Decision carries it for logging, not
// for end-user display.
func (c *Core) CheckPermission(ctx context.Context, p *Principal, perm string, pctx *permission.Context) permission.Decision {
	decision := c.resolver.Check(p.Role, p.ID, perm, pctx)
	if decision.Allowed {
		c.metrics.Inc(MetricPermissionAllowed)
		return decision
	}

	c.metrics.Inc(MetricPermissionDenied)
	event := AuditEvent{
		EventType:   EventPermissionDenied,
		PrincipalID: p.ID,
		SessionID:   p.SessionID,
		Resource:    perm,
		Reason:      decision.Reason,
	}
	if pctx != nil {
		event.IP = pctx.IP
	}
	c.emit(ctx, event)
	return decision
}

// HasPermission is CheckPermission without guard context, for static
// role checks.
func (c *Core) HasPermission(ctx context.Context, p *Principal, perm string) bool {
	return c.CheckPermission(ctx, p, perm, nil).Allowed
}

// PermissionsForRole returns the effective permission set for role,
// inheritance flattened, in sorted order.
func (c *Core) PermissionsForRole(role Role) ([]string, error) {
	set, err := c.resolver.Resolve(role)
	if err != nil {
		return nil, err
	}
	return set.Names(), nil
}

// Attributes implements [token.AttributeSource]. Refresh rotation calls
// it to re-resolve role and permissions from the store of record, so a
// role change or demotion takes effect on the next rotation even while
// old access tokens run out their short TTL. MFA verification is never
// carried across a rotation; admin flows re-verify.
func (c *Core) Attributes(ctx context.Context, subjectID string) (token.Attributes, error) {
	role, err := c.credentials.GetUserRole(ctx, subjectID)
	if err != nil {
		return token.Attributes{}, errors.Join(ErrBackendUnavailable, err)
	}
	set, err := c.resolver.Resolve(role)
	if err != nil {
		return token.Attributes{}, err
	}
	return token.Attributes{
		Role:        string(role),
		Permissions: set.Names(),
		MFAVerified: false,
	}, nil
}

// MetricsSnapshot returns a point-in-time copy of all counters and the
// verification latency histogram.
func (c *Core) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped reports how many audit events were shed under
// back-pressure.
func (c *Core) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close drains the audit dispatcher. The core itself holds no other
// resources; callers own the Redis client they attached.
func (c *Core) Close() {
	c.audit.Close()
}
