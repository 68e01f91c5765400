package authcore

import (
	"time"

	"github.com/harborline/authcore/mfa"
	"github.com/harborline/authcore/password"
	"github.com/harborline/authcore/permission"
	"github.com/harborline/authcore/session"
	"github.com/harborline/authcore/token"
)

// Config aggregates all core settings. Start from [DefaultConfig] and
// override; Build validates everything and fails fast on
// misconfiguration (missing signing key, cyclic role table, out-of-range
// windows) so no configuration error is ever handled per-request.
type Config struct {
	Token      token.Config
	Session    session.Config
	MFA        mfa.Config
	Password   password.Params
	Permission PermissionConfig
	RateLimit  RateLimitConfig
	Audit      AuditConfig
	Metrics    MetricsConfig

	// KeyPrefix namespaces all Redis keys when a client is attached.
	KeyPrefix string
	// SessionRetention keeps ended sessions readable for this long.
	SessionRetention time.Duration
	// ChallengeTTL bounds the login MFA step.
	ChallengeTTL time.Duration
}

// PermissionConfig selects the role table and guard coverage.
type PermissionConfig struct {
	// Roles overrides the built-in table when non-nil.
	Roles  map[Role]permission.Definition
	Guards permission.GuardConfig
}

// RateLimitConfig tunes the in-process attempt budgets.
type RateLimitConfig struct {
	Enabled       bool
	LoginAttempts int
	LoginCooldown time.Duration
	MFAAttempts   int
	MFACooldown   time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking the decision path.
	// Dropped events are counted; see [Core.AuditDropped].
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics system.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration. Signing key
// material and the audit sink are the only things a caller must
// supply.
func DefaultConfig() Config {
	return Config{
		Token: token.Config{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			AdminTTL:      30 * time.Minute,
			SigningMethod: token.MethodEd25519,
			Issuer:        "harborline",
			Audience:      "harborline-api",
			Leeway:        30 * time.Second,
		},
		Session: session.Config{
			Timeout:     30 * time.Minute,
			MaxLifetime: 12 * time.Hour,
			MaxPerUser:  5,
		},
		MFA: mfa.Config{
			Issuer:          "Harborline",
			Digits:          6,
			Period:          30,
			Skew:            1,
			PendingTTL:      15 * time.Minute,
			BackupCodeCount: 10,
			BackupCodeBytes: 10,
		},
		Password: password.Params{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Permission: PermissionConfig{
			Guards: permission.GuardConfig{
				SelfGuarded: []string{"user:delete", "user:role", "user:suspend", "admin:manage"},
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			LoginAttempts: 5,
			LoginCooldown: time.Minute,
			MFAAttempts:   5,
			MFACooldown:   time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		KeyPrefix:        "hl",
		SessionRetention: time.Hour,
		ChallengeTTL:     5 * time.Minute,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = append([]byte(nil), cfg.Token.PrivateKey...)
	out.Token.PublicKey = append([]byte(nil), cfg.Token.PublicKey...)

	if cfg.Permission.Roles != nil {
		roles := make(map[Role]permission.Definition, len(cfg.Permission.Roles))
		for role, def := range cfg.Permission.Roles {
			roles[role] = permission.Definition{
				Inherits: append([]Role(nil), def.Inherits...),
				Grants:   append([]string(nil), def.Grants...),
			}
		}
		out.Permission.Roles = roles
	}
	out.Permission.Guards.SelfGuarded = append([]string(nil), cfg.Permission.Guards.SelfGuarded...)
	if cfg.Permission.Guards.TimeWindows != nil {
		windows := make(map[string]permission.Window, len(cfg.Permission.Guards.TimeWindows))
		for perm, w := range cfg.Permission.Guards.TimeWindows {
			windows[perm] = w
		}
		out.Permission.Guards.TimeWindows = windows
	}
	if cfg.Permission.Guards.IPAllowlists != nil {
		lists := make(map[string][]string, len(cfg.Permission.Guards.IPAllowlists))
		for perm, cidrs := range cfg.Permission.Guards.IPAllowlists {
			lists[perm] = append([]string(nil), cidrs...)
		}
		out.Permission.Guards.IPAllowlists = lists
	}

	return out
}
