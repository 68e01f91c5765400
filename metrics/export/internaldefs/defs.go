package internaldefs

import (
	authcore "github.com/harborline/authcore"
)

// CounterDef maps a core counter to its exported metric name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authcore.MetricTokenIssued, Name: "authcore_token_issued_total", Help: "Issued token pairs."},
	{ID: authcore.MetricTokenVerifyFailure, Name: "authcore_token_verify_failure_total", Help: "Failed token verifications."},
	{ID: authcore.MetricTokenRevoked, Name: "authcore_token_revoked_total", Help: "Explicit token revocations."},
	{ID: authcore.MetricRevokedTokenSeen, Name: "authcore_revoked_token_seen_total", Help: "Revoked tokens presented for verification."},
	{ID: authcore.MetricRefreshRotated, Name: "authcore_refresh_rotated_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Rotated refresh tokens presented again."},
	{ID: authcore.MetricAdminTokenIssued, Name: "authcore_admin_token_issued_total", Help: "Issued admin tokens."},
	{ID: authcore.MetricAdminTokenDeniedMFA, Name: "authcore_admin_token_denied_mfa_total", Help: "Admin token requests denied for missing MFA."},
	{ID: authcore.MetricPermissionAllowed, Name: "authcore_permission_allowed_total", Help: "Allowed permission checks."},
	{ID: authcore.MetricPermissionDenied, Name: "authcore_permission_denied_total", Help: "Denied permission checks."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Created sessions."},
	{ID: authcore.MetricSessionEvicted, Name: "authcore_session_evicted_total", Help: "Sessions evicted by the per-user cap."},
	{ID: authcore.MetricSessionInvalidated, Name: "authcore_session_invalidated_total", Help: "Explicitly invalidated sessions."},
	{ID: authcore.MetricSessionExpired, Name: "authcore_session_expired_total", Help: "Sessions found expired at validation."},
	{ID: authcore.MetricMFASetupStarted, Name: "authcore_mfa_setup_started_total", Help: "Started MFA enrollments."},
	{ID: authcore.MetricMFAVerifySuccess, Name: "authcore_mfa_verify_success_total", Help: "Successful MFA verifications."},
	{ID: authcore.MetricMFAVerifyFailure, Name: "authcore_mfa_verify_failure_total", Help: "Failed MFA verifications."},
	{ID: authcore.MetricMFARateLimited, Name: "authcore_mfa_rate_limited_total", Help: "Rate-limited MFA attempts."},
	{ID: authcore.MetricBackupCodeUsed, Name: "authcore_backup_code_used_total", Help: "Backup codes consumed."},
}

// VerifyLatencyName is the exported name of the verification latency
// histogram.
const VerifyLatencyName = "authcore_verify_latency_seconds"

// VerifyLatencyHelp documents the histogram.
const VerifyLatencyHelp = "Token verification latency."

// VerifyLatencyBoundsSeconds are the histogram upper bounds converted
// from the core's microsecond buckets. The implicit last bucket is
// +Inf.
var VerifyLatencyBoundsSeconds = func() []float64 {
	out := make([]float64, len(authcore.MetricsLatencyBoundsMicros))
	for i, micros := range authcore.MetricsLatencyBoundsMicros {
		out[i] = float64(micros) / 1e6
	}
	return out
}()

// VerifyLatencyBoundSuffix names each bucket for backends without
// native histogram support.
var VerifyLatencyBoundSuffix = []string{
	"50us",
	"100us",
	"250us",
	"500us",
	"1ms",
	"5ms",
	"25ms",
	"inf",
}

// CumulativeBuckets converts per-bucket counts into the cumulative
// form exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
