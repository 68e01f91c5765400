package authcore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisCore(t *testing.T) (*Core, *memoryCredentials, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	creds := newMemoryCredentials()
	core, err := New().
		WithConfig(testCoreConfig(t)).
		WithCredentialStore(creds).
		WithRedis(client).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(core.Close)
	return core, creds, mr
}

func TestRedisBackedLoginLifecycle(t *testing.T) {
	core, creds, _ := newRedisCore(t)
	seedUser(t, core, creds, "u1", "alice@example.com", RoleDealer, "correct-password-123")

	result := login(t, core, "alice@example.com", "correct-password-123")
	if _, err := core.VerifyBearerToken(context.Background(), result.AccessToken); err != nil {
		t.Fatalf("VerifyBearerToken failed: %v", err)
	}

	rotated, err := core.Refresh(context.Background(), result.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := core.Refresh(context.Background(), result.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected rotated-away token revoked, got %v", err)
	}

	if err := core.Logout(context.Background(), rotated.AccessToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := core.VerifyBearerToken(context.Background(), rotated.AccessToken); err == nil {
		t.Fatal("token survived logout")
	}
}

func TestRedisBackedMFAChallenge(t *testing.T) {
	core, creds, _ := newRedisCore(t)
	seedUser(t, core, creds, "u1", "alice@example.com", RoleUser, "correct-password-123")
	backupCodes := enrollMFA(t, core, "u1")

	result := login(t, core, "alice@example.com", "correct-password-123")
	if !result.MFARequired {
		t.Fatal("expected MFA challenge")
	}

	confirmed, err := core.ConfirmLoginMFA(context.Background(), result.Challenge, backupCodes[0])
	if err != nil {
		t.Fatalf("ConfirmLoginMFA failed: %v", err)
	}
	if _, err := core.VerifyBearerToken(context.Background(), confirmed.AccessToken); err != nil {
		t.Fatalf("VerifyBearerToken failed: %v", err)
	}

	// Challenges are single-use in Redis too.
	if _, err := core.ConfirmLoginMFA(context.Background(), result.Challenge, backupCodes[1]); !errors.Is(err, ErrMFAChallengeInvalid) {
		t.Fatalf("expected consumed challenge rejected, got %v", err)
	}
}

func TestRedisBackedChallengeExpiry(t *testing.T) {
	core, creds, mr := newRedisCore(t)
	seedUser(t, core, creds, "u1", "alice@example.com", RoleUser, "correct-password-123")
	backupCodes := enrollMFA(t, core, "u1")

	result := login(t, core, "alice@example.com", "correct-password-123")

	mr.FastForward(core.cfg.ChallengeTTL * 2)

	if _, err := core.ConfirmLoginMFA(context.Background(), result.Challenge, backupCodes[0]); !errors.Is(err, ErrMFAChallengeInvalid) {
		t.Fatalf("expected expired challenge rejected, got %v", err)
	}
}

func TestRedisOutageFailsClosed(t *testing.T) {
	core, creds, mr := newRedisCore(t)
	seedUser(t, core, creds, "u1", "alice@example.com", RoleUser, "correct-password-123")

	result := login(t, core, "alice@example.com", "correct-password-123")
	mr.Close()

	_, err := core.VerifyBearerToken(context.Background(), result.AccessToken)
	if err == nil {
		t.Fatal("verification succeeded with the backend down")
	}
	if !IsUnavailable(err) {
		t.Fatalf("expected unavailable classification, got %v", err)
	}
	if IsUnauthorized(err) {
		t.Fatal("an outage must not masquerade as a credential failure")
	}
}
