package mfa

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Config holds MFA settings. The defaults (6 digits, 30s step, ±1 step
// skew, 10 backup codes of 10 random bytes) follow standard TOTP
// practice; they are configuration, not derived requirements.
type Config struct {
	Issuer          string
	Digits          int
	Period          uint
	Skew            uint
	PendingTTL      time.Duration
	BackupCodeCount int
	BackupCodeBytes int
}

// Setup is handed to the user exactly once at enrollment start. The
// plaintext backup codes are not recoverable afterwards.
type Setup struct {
	Secret          string
	ProvisioningURI string
	BackupCodes     []string
}

// Result reports how a verification succeeded.
type Result struct {
	UsedBackupCode bool
}

// Service drives the enrollment state machine:
//
//	Unenrolled -> (BeginSetup) -> pending(ttl) -> (Verify setup) -> enrolled
//	pending -> (ttl expiry | CancelSetup) -> Unenrolled
type Service struct {
	cfg   Config
	store Store

	now func() time.Time
}

func NewService(cfg Config, store Store) (*Service, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("mfa issuer required")
	}
	if cfg.Digits != 6 && cfg.Digits != 8 {
		return nil, errors.New("mfa digits must be 6 or 8")
	}
	if cfg.Period == 0 || cfg.PendingTTL <= 0 {
		return nil, errors.New("mfa period and pending ttl must be positive")
	}
	if cfg.BackupCodeCount <= 0 || cfg.BackupCodeBytes < 8 {
		return nil, errors.New("mfa backup codes need count >= 1 and >= 8 bytes entropy")
	}
	if store == nil {
		return nil, errors.New("mfa store required")
	}
	return &Service{cfg: cfg, store: store, now: time.Now}, nil
}

// BeginSetup generates a fresh TOTP secret and backup codes and stores
// them as a pending enrollment. An existing verified enrollment is not
// touched until the new secret is confirmed, so a user can never lock
// themselves out mid-setup.
func (s *Service) BeginSetup(ctx context.Context, userID, accountName string) (*Setup, error) {
	if userID == "" {
		return nil, errors.New("mfa setup requires a user id")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.cfg.Issuer,
		AccountName: accountName,
		Period:      s.cfg.Period,
		Digits:      otp.Digits(s.cfg.Digits),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	codes := make([]string, s.cfg.BackupCodeCount)
	hashes := make([]string, s.cfg.BackupCodeCount)
	buf := make([]byte, s.cfg.BackupCodeBytes)
	for i := range codes {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return nil, err
		}
		codes[i] = hex.EncodeToString(buf)
		hashes[i] = hashCode(codes[i])
	}

	e := &Enrollment{
		UserID:      userID,
		Secret:      key.Secret(),
		BackupCodes: hashes,
		CreatedAt:   s.now(),
	}
	if err := s.store.SavePending(ctx, e, s.cfg.PendingTTL); err != nil {
		return nil, err
	}

	return &Setup{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		BackupCodes:     codes,
	}, nil
}

// CancelSetup discards a pending enrollment.
func (s *Service) CancelSetup(ctx context.Context, userID string) error {
	return s.store.DeletePending(ctx, userID)
}

// Enrolled reports whether the user has a verified enrollment.
func (s *Service) Enrolled(ctx context.Context, userID string) (bool, error) {
	_, err := s.store.Enrolled(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Disable removes the user's verified enrollment.
func (s *Service) Disable(ctx context.Context, userID string) error {
	return s.store.DeleteEnrolled(ctx, userID)
}

// Verify checks a TOTP or backup code.
//
// In the setup flow it validates against the pending secret and, on
// success, promotes it to the verified enrollment, replacing any
// previous secret. Outside setup it validates against the verified
// enrollment, falling back to the backup code set; a matched backup
// code is consumed atomically with the success. A code accepted for a
// time step at or before the last accepted step is rejected, so a
// sniffed code cannot be replayed within its window.
func (s *Service) Verify(ctx context.Context, userID, code string, setupFlow bool) (Result, error) {
	if setupFlow {
		return s.verifySetup(ctx, userID, code)
	}
	return s.verifyEnrolled(ctx, userID, code)
}

func (s *Service) verifySetup(ctx context.Context, userID, code string) (Result, error) {
	e, err := s.store.Pending(ctx, userID)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return Result{}, ErrSetupExpired
		}
		return Result{}, err
	}

	step, ok := s.validateTOTP(code, e.Secret)
	if !ok {
		return Result{}, ErrInvalidCode
	}

	e.Verified = true
	e.ExpiresAt = time.Time{}
	e.LastUsedStep = step
	if err := s.store.SaveEnrolled(ctx, e); err != nil {
		return Result{}, err
	}
	if err := s.store.DeletePending(ctx, userID); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

func (s *Service) verifyEnrolled(ctx context.Context, userID, code string) (Result, error) {
	e, err := s.store.Enrolled(ctx, userID)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return Result{}, ErrNotEnrolled
		}
		return Result{}, err
	}

	if step, ok := s.validateTOTP(code, e.Secret); ok {
		if step <= e.LastUsedStep {
			return Result{}, ErrInvalidCode
		}
		e.LastUsedStep = step
		if err := s.store.SaveEnrolled(ctx, e); err != nil {
			return Result{}, err
		}
		return Result{}, nil
	}

	used, err := s.store.ConsumeBackupCode(ctx, userID, hashCode(code))
	if err != nil {
		return Result{}, err
	}
	if used {
		return Result{UsedBackupCode: true}, nil
	}
	return Result{}, ErrInvalidCode
}

// validateTOTP checks each candidate step inside the skew window and
// returns the step the code actually matched. Recording the matched
// step, not the current one, is what makes the replay guard airtight:
// a next-step code accepted early must be rejected when its own step
// arrives.
func (s *Service) validateTOTP(code, secret string) (int64, bool) {
	period := int64(s.cfg.Period)
	base := s.now().Unix() / period

	for offset := -int64(s.cfg.Skew); offset <= int64(s.cfg.Skew); offset++ {
		step := base + offset
		if step < 0 {
			continue
		}
		at := time.Unix(step*period, 0)
		ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
			Period:    s.cfg.Period,
			Skew:      0,
			Digits:    otp.Digits(s.cfg.Digits),
			Algorithm: otp.AlgorithmSHA1,
		})
		if err == nil && ok {
			return step, true
		}
	}
	return 0, false
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
