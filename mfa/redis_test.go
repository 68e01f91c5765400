package mfa

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "t:mfa"), mr
}

func hashOf(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func TestRedisPendingTTL(t *testing.T) {
	store, mr := newRedisTestStore(t)

	e := &Enrollment{UserID: "u1", Secret: "SECRET", CreatedAt: time.Now()}
	if err := store.SavePending(context.Background(), e, time.Minute); err != nil {
		t.Fatalf("SavePending failed: %v", err)
	}

	if _, err := store.Pending(context.Background(), "u1"); err != nil {
		t.Fatalf("Pending failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Pending(context.Background(), "u1"); !errors.Is(err, errNotFound) {
		t.Fatalf("expected miss after TTL, got %v", err)
	}
}

func TestRedisEnrolledRoundTrip(t *testing.T) {
	store, _ := newRedisTestStore(t)

	e := &Enrollment{
		UserID:       "u1",
		Secret:       "SECRET",
		BackupCodes:  []string{hashOf("c1"), hashOf("c2")},
		Verified:     true,
		CreatedAt:    time.Now().UTC(),
		LastUsedStep: 42,
	}
	if err := store.SaveEnrolled(context.Background(), e); err != nil {
		t.Fatalf("SaveEnrolled failed: %v", err)
	}

	got, err := store.Enrolled(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Enrolled failed: %v", err)
	}
	if got.Secret != "SECRET" || !got.Verified || got.LastUsedStep != 42 {
		t.Fatalf("unexpected enrollment: %+v", got)
	}
	if len(got.BackupCodes) != 2 {
		t.Fatalf("expected 2 backup codes, got %d", len(got.BackupCodes))
	}
}

func TestRedisConsumeBackupCodeAtomic(t *testing.T) {
	store, _ := newRedisTestStore(t)

	e := &Enrollment{
		UserID:      "u1",
		Secret:      "SECRET",
		BackupCodes: []string{hashOf("c1"), hashOf("c2")},
		Verified:    true,
	}
	if err := store.SaveEnrolled(context.Background(), e); err != nil {
		t.Fatalf("SaveEnrolled failed: %v", err)
	}

	used, err := store.ConsumeBackupCode(context.Background(), "u1", hashOf("c1"))
	if err != nil {
		t.Fatalf("ConsumeBackupCode failed: %v", err)
	}
	if !used {
		t.Fatal("expected code consumed")
	}

	// Same code again: refused.
	used, err = store.ConsumeBackupCode(context.Background(), "u1", hashOf("c1"))
	if err != nil {
		t.Fatalf("ConsumeBackupCode failed: %v", err)
	}
	if used {
		t.Fatal("consumed code must not work twice")
	}

	got, err := store.Enrolled(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Enrolled failed: %v", err)
	}
	if len(got.BackupCodes) != 1 || got.BackupCodes[0] != hashOf("c2") {
		t.Fatalf("unexpected remaining codes: %v", got.BackupCodes)
	}
}

func TestRedisConsumeLastBackupCode(t *testing.T) {
	store, _ := newRedisTestStore(t)

	e := &Enrollment{UserID: "u1", Secret: "SECRET", BackupCodes: []string{hashOf("c1")}, Verified: true}
	if err := store.SaveEnrolled(context.Background(), e); err != nil {
		t.Fatalf("SaveEnrolled failed: %v", err)
	}

	used, err := store.ConsumeBackupCode(context.Background(), "u1", hashOf("c1"))
	if err != nil || !used {
		t.Fatalf("expected last code consumed, got used=%v err=%v", used, err)
	}

	// The emptied record still loads and refuses further consumes.
	got, err := store.Enrolled(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Enrolled failed after emptying codes: %v", err)
	}
	if len(got.BackupCodes) != 0 {
		t.Fatalf("expected no codes left, got %v", got.BackupCodes)
	}
	used, err = store.ConsumeBackupCode(context.Background(), "u1", hashOf("c1"))
	if err != nil || used {
		t.Fatalf("expected consume on empty set refused, got used=%v err=%v", used, err)
	}
}

func TestRedisConsumeForUnknownUser(t *testing.T) {
	store, _ := newRedisTestStore(t)

	used, err := store.ConsumeBackupCode(context.Background(), "ghost", hashOf("c1"))
	if err != nil {
		t.Fatalf("ConsumeBackupCode failed: %v", err)
	}
	if used {
		t.Fatal("unknown user must not consume")
	}
}

func TestRedisServiceFlow(t *testing.T) {
	store, _ := newRedisTestStore(t)
	svc, err := NewService(testServiceConfig(), store)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	setup, err := svc.BeginSetup(context.Background(), "u1", "u1@example.com")
	if err != nil {
		t.Fatalf("BeginSetup failed: %v", err)
	}

	now := time.Now()
	svc.now = func() time.Time { return now }
	if _, err := svc.Verify(context.Background(), "u1", codeAt(t, setup.Secret, now), true); err != nil {
		t.Fatalf("setup verification failed: %v", err)
	}

	enrolled, err := svc.Enrolled(context.Background(), "u1")
	if err != nil || !enrolled {
		t.Fatalf("expected enrolled, got %v %v", enrolled, err)
	}

	result, err := svc.Verify(context.Background(), "u1", setup.BackupCodes[0], false)
	if err != nil || !result.UsedBackupCode {
		t.Fatalf("backup code path failed: %+v %v", result, err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newRedisTestStore(t)
	mr.Close()

	if _, err := store.Enrolled(context.Background(), "u1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := store.ConsumeBackupCode(context.Background(), "u1", hashOf("c1")); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
