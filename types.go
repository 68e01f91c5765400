package authcore

import (
	"context"
	"io"

	internalaudit "github.com/harborline/authcore/internal/audit"
	internalmetrics "github.com/harborline/authcore/internal/metrics"
	"github.com/harborline/authcore/permission"
)

// Role names an entry in the static role table.
type Role = permission.Role

const (
	RoleUser          = permission.RoleUser
	RoleDealer        = permission.RoleDealer
	RolePremiumDealer = permission.RolePremiumDealer
	RoleViewer        = permission.RoleViewer
	RoleModerator     = permission.RoleModerator
	RoleAdmin         = permission.RoleAdmin
	RoleSuperAdmin    = permission.RoleSuperAdmin
)

// AccountStatus is the lifecycle state of a user account.
type AccountStatus uint8

const (
	AccountActive AccountStatus = iota
	AccountDisabled
	AccountLocked
)

// Principal is the authenticated identity resolved from a token.
// It is a projection of token claims, constructed fresh on every
// verification and never persisted.
type Principal struct {
	ID          string
	Email       string
	Role        Role
	Permissions []string
	MFAVerified bool
	SessionID   string
}

// UserRecord is the narrow account view the core consumes.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	Status       AccountStatus
}

// CredentialStore is the adapter to the user record repository. The
// marketplace's document store sits behind this interface; the core
// never touches its query mechanics. Implementations must return
// errors wrapped in (or mappable to) ErrBackendUnavailable for
// infrastructure failures, and ErrUserNotFound-style misses as plain
// sentinel errors of their own; the core treats any lookup failure on
// the login path as invalid credentials.
type CredentialStore interface {
	GetUserByID(ctx context.Context, id string) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserRole(ctx context.Context, id string) (Role, error)
}

// LoginResult is returned by [Core.Login] and [Core.ConfirmLoginMFA].
// When MFARequired is set, Challenge identifies the pending MFA step
// and no tokens are issued yet.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	SessionID    string

	MFARequired bool
	Challenge   string
}

// AuditEvent is the structured audit record emitted by the core.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the core's async dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards all audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based AuditSink.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an io.Writer.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a JSONWriterSink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess         = internalmetrics.MetricLoginSuccess
	MetricLoginFailure         = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited     = internalmetrics.MetricLoginRateLimited
	MetricTokenIssued          = internalmetrics.MetricTokenIssued
	MetricTokenVerifyFailure   = internalmetrics.MetricTokenVerifyFailure
	MetricTokenRevoked         = internalmetrics.MetricTokenRevoked
	MetricRevokedTokenSeen     = internalmetrics.MetricRevokedTokenSeen
	MetricRefreshRotated       = internalmetrics.MetricRefreshRotated
	MetricRefreshReuseDetected = internalmetrics.MetricRefreshReuseDetected
	MetricAdminTokenIssued     = internalmetrics.MetricAdminTokenIssued
	MetricAdminTokenDeniedMFA  = internalmetrics.MetricAdminTokenDeniedMFA
	MetricPermissionAllowed    = internalmetrics.MetricPermissionAllowed
	MetricPermissionDenied     = internalmetrics.MetricPermissionDenied
	MetricSessionCreated       = internalmetrics.MetricSessionCreated
	MetricSessionEvicted       = internalmetrics.MetricSessionEvicted
	MetricSessionInvalidated   = internalmetrics.MetricSessionInvalidated
	MetricSessionExpired       = internalmetrics.MetricSessionExpired
	MetricMFASetupStarted      = internalmetrics.MetricMFASetupStarted
	MetricMFAVerifySuccess     = internalmetrics.MetricMFAVerifySuccess
	MetricMFAVerifyFailure     = internalmetrics.MetricMFAVerifyFailure
	MetricMFARateLimited       = internalmetrics.MetricMFARateLimited
	MetricBackupCodeUsed       = internalmetrics.MetricBackupCodeUsed
	MetricVerifyLatency        = internalmetrics.MetricVerifyLatency
)

// Metrics holds the core's atomic counters and optional latency
// histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// MetricsLatencyBoundsMicros are the verification latency histogram
// bucket upper bounds, in microseconds. The last bucket is +Inf.
var MetricsLatencyBoundsMicros = internalmetrics.LatencyBoundsMicros
