package authcore

import (
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
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Core]. Stores are chosen by deployment shape:
// with a Redis client attached, revocations, sessions, enrollments,
// and login challenges live in Redis and are shared across processes;
// without one, mutex-guarded in-memory stores serve a single process.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	credentials CredentialStore
	auditSink   AuditSink

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates the configuration and wires every component. All
// programmer and configuration errors surface here; a Core that builds
// successfully never fails a request for configuration reasons.
func (b *Builder) Build() (*Core, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}
	cfg := b.config

	roles := cfg.Permission.Roles
	if roles == nil {
		roles = permission.DefaultRoles()
	}
	resolver, err := permission.NewResolver(roles, cfg.Permission.Guards)
	if err != nil {
		return nil, err
	}

	var (
		revocations token.RevocationStore
		sessions    session.Store
		enrollments mfa.Store
		challenges  challengeStore
	)
	if b.redis != nil {
		revocations = token.NewRedisRevocationStore(b.redis, cfg.KeyPrefix+":rvk")
		sessions = session.NewRedisStore(b.redis, cfg.KeyPrefix+":ses", cfg.SessionRetention)
		enrollments = mfa.NewRedisStore(b.redis, cfg.KeyPrefix+":mfa")
		challenges = newRedisChallengeStore(b.redis, cfg.KeyPrefix)
	} else {
		revocations = token.NewMemoryRevocationStore()
		sessions = session.NewMemoryStore()
		enrollments = mfa.NewMemoryStore()
		challenges = newMemoryChallengeStore()
	}

	tokens, err := token.NewService(cfg.Token, revocations)
	if err != nil {
		return nil, err
	}
	sessionMgr, err := session.NewManager(cfg.Session, sessions)
	if err != nil {
		return nil, err
	}
	mfaSvc, err := mfa.NewService(cfg.MFA, enrollments)
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}
	if cfg.ChallengeTTL <= 0 {
		return nil, errors.New("challenge ttl must be positive")
	}

	var loginLimiter, mfaLimiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		loginLimiter = rate.New(rate.Config{
			MaxAttempts: cfg.RateLimit.LoginAttempts,
			Cooldown:    cfg.RateLimit.LoginCooldown,
		})
		mfaLimiter = rate.New(rate.Config{
			MaxAttempts: cfg.RateLimit.MFAAttempts,
			Cooldown:    cfg.RateLimit.MFACooldown,
		})
	}

	sink := b.auditSink
	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, sink)

	metrics := internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Metrics.Enabled,
		EnableLatency: cfg.Metrics.EnableLatencyHistograms,
	})

	b.built = true
	return &Core{
		cfg:          cfg,
		credentials:  b.credentials,
		tokens:       tokens,
		resolver:     resolver,
		sessions:     sessionMgr,
		mfa:          mfaSvc,
		hasher:       hasher,
		challenges:   challenges,
		loginLimiter: loginLimiter,
		mfaLimiter:   mfaLimiter,
		audit:        dispatcher,
		metrics:      metrics,
		now:          time.Now,
	}, nil
}
