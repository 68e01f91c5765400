package token

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// Config holds token service settings. Key material is validated at
// construction; a missing or malformed signing key fails Build, never
// a request.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	AdminTTL   time.Duration

	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte

	Issuer   string
	Audience string
	Leeway   time.Duration

	// AllowAdminWithoutMFA permits admin-token issuance without a live
	// MFA verification. Off by default; every use is audited by the
	// caller. Intended for isolated development environments only.
	AllowAdminWithoutMFA bool
}

// Attributes is the fresh role/permission state of a subject, looked
// up at access-token issuance time so refresh cycles pick up role
// changes without waiting for revocation.
type Attributes struct {
	Role        string
	Permissions []string
	MFAVerified bool
}

// AttributeSource resolves current subject attributes during refresh
// rotation.
type AttributeSource interface {
	Attributes(ctx context.Context, subjectID string) (Attributes, error)
}

// Service issues, verifies, and revokes signed tokens. Verification is
// read-only with respect to the revocation list.
type Service struct {
	cfg         Config
	method      jwt.SigningMethod
	signKey     any
	verifyKey   any
	revocations RevocationStore

	now func() time.Time
}

// NewService validates the configuration and key material.
func NewService(cfg Config, revocations RevocationStore) (*Service, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.AdminTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token leeway out of range")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("token issuer required")
	}
	if revocations == nil {
		return nil, errors.New("revocation store required")
	}

	s := &Service{
		cfg:         cfg,
		revocations: revocations,
		now:         time.Now,
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires a private key")
		}
		s.method = jwt.SigningMethodHS256
		s.signKey = cfg.PrivateKey
		s.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		s.method = jwt.SigningMethodEdDSA
		s.signKey = priv
		if len(cfg.PublicKey) > 0 {
			if len(cfg.PublicKey) != ed25519.PublicKeySize {
				return nil, errors.New("invalid ed25519 public key size")
			}
			s.verifyKey = ed25519.PublicKey(cfg.PublicKey)
		} else {
			s.verifyKey = priv.Public()
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return s, nil
}

func parseEdPrivateKey(raw []byte) (ed25519.PrivateKey, error) {
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(raw), nil
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	default:
		return nil, errors.New("invalid ed25519 private key size")
	}
}

// IssueAccess creates a short-lived access token snapshotting the
// subject's current role and resolved permissions.
func (s *Service) IssueAccess(subjectID, sessionID, role string, permissions []string, mfaVerified bool) (string, *Claims, error) {
	if subjectID == "" || role == "" {
		return "", nil, ErrInvalidPrincipal
	}
	return s.sign(KindAccess, subjectID, sessionID, role, permissions, mfaVerified, s.cfg.AccessTTL)
}

// IssueRefresh creates a long-lived refresh token carrying only the
// subject and session identity. Refresh tokens never carry permissions.
func (s *Service) IssueRefresh(subjectID, sessionID string) (string, *Claims, error) {
	if subjectID == "" {
		return "", nil, ErrInvalidPrincipal
	}
	return s.sign(KindRefresh, subjectID, sessionID, "", nil, false, s.cfg.RefreshTTL)
}

// IssueAdmin creates the shortest-lived token family. It fails closed
// with ErrMFARequired unless the principal holds a live MFA
// verification or the audited AllowAdminWithoutMFA override is set.
func (s *Service) IssueAdmin(subjectID, sessionID, role string, permissions []string, mfaVerified bool) (string, *Claims, error) {
	if subjectID == "" || role == "" {
		return "", nil, ErrInvalidPrincipal
	}
	if !mfaVerified && !s.cfg.AllowAdminWithoutMFA {
		return "", nil, ErrMFARequired
	}
	return s.sign(KindAdmin, subjectID, sessionID, role, permissions, mfaVerified, s.cfg.AdminTTL)
}

func (s *Service) sign(kind Kind, subjectID, sessionID, role string, permissions []string, mfaVerified bool, ttl time.Duration) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Kind:        kind,
		Role:        role,
		Permissions: permissions,
		MFAVerified: mfaVerified,
		SessionID:   sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	if s.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.cfg.Audience}
	}

	raw, err := jwt.NewWithClaims(s.method, claims).SignedString(s.signKey)
	if err != nil {
		return "", nil, err
	}
	return raw, claims, nil
}

// Verify checks signature, expiry, audience/issuer (access and admin
// kinds), the kind discriminator, and revocation-list membership. Aside
// from telemetry it has no side effects.
func (s *Service) Verify(ctx context.Context, raw string, expected Kind) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithLeeway(s.cfg.Leeway),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.verifyKey, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrSignatureInvalid
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrMalformed
	}
	if claims.Kind != expected {
		return nil, ErrWrongKind
	}
	if expected == KindAccess || expected == KindAdmin {
		if claims.Issuer != s.cfg.Issuer {
			return nil, ErrWrongAudience
		}
		if s.cfg.Audience != "" && !containsAudience(claims.Audience, s.cfg.Audience) {
			return nil, ErrWrongAudience
		}
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		// Fail closed: an unreachable revocation list never defaults to allow.
		return nil, err
	}
	if revoked {
		return nil, ErrRevoked
	}

	return claims, nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

// Revoke inserts the jti into the revocation list. Idempotent: a second
// call with the same jti is a no-op. The entry is kept past the token's
// natural expiry by the verification leeway, so a revoked token cannot
// verify again during the clock-skew grace window.
func (s *Service) Revoke(ctx context.Context, jti string, originalExpiry time.Time) error {
	return s.revocations.Revoke(ctx, jti, originalExpiry.Add(s.cfg.Leeway))
}

// Rotate verifies the old refresh token, revokes its jti, re-resolves
// the subject's attributes fresh from source, and issues a new pair.
// Revoking on use means a stolen-but-unused refresh token dies the
// moment the legitimate holder rotates.
func (s *Service) Rotate(ctx context.Context, rawRefresh string, source AttributeSource) (access, refresh string, accessClaims *Claims, err error) {
	old, err := s.Verify(ctx, rawRefresh, KindRefresh)
	if err != nil {
		return "", "", nil, err
	}

	if err := s.Revoke(ctx, old.ID, old.ExpiresAt.Time); err != nil {
		return "", "", nil, err
	}

	attrs, err := source.Attributes(ctx, old.Subject)
	if err != nil {
		return "", "", nil, err
	}

	access, accessClaims, err = s.IssueAccess(old.Subject, old.SessionID, attrs.Role, attrs.Permissions, attrs.MFAVerified)
	if err != nil {
		return "", "", nil, err
	}
	refresh, _, err = s.IssueRefresh(old.Subject, old.SessionID)
	if err != nil {
		return "", "", nil, err
	}
	return access, refresh, accessClaims, nil
}

// AccessTTL exposes the configured access-token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// AdminOverrideActive reports whether the audited no-MFA admin override
// is configured.
func (s *Service) AdminOverrideActive() bool { return s.cfg.AllowAdminWithoutMFA }
