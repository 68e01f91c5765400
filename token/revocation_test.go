package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryRevocationExpiredEntryIgnored(t *testing.T) {
	store := NewMemoryRevocationStore()

	if err := store.Revoke(context.Background(), "j1", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	revoked, err := store.IsRevoked(context.Background(), "j1")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("naturally expired entry must not report revoked")
	}
}

func TestMemoryRevocationEmptyJTI(t *testing.T) {
	store := NewMemoryRevocationStore()

	if err := store.Revoke(context.Background(), "", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("empty jti must not be stored")
	}
}

func newRedisRevocations(t *testing.T) (*RedisRevocationStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRevocationStore(client, "t:rvk"), mr
}

func TestRedisRevocationRoundTrip(t *testing.T) {
	store, _ := newRedisRevocations(t)

	if err := store.Revoke(context.Background(), "j1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	revoked, err := store.IsRevoked(context.Background(), "j1")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if !revoked {
		t.Fatal("expected revoked")
	}

	revoked, err = store.IsRevoked(context.Background(), "other")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("unexpected revocation for unknown jti")
	}
}

func TestRedisRevocationTTLMatchesRemainingLifetime(t *testing.T) {
	store, mr := newRedisRevocations(t)

	if err := store.Revoke(context.Background(), "j1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	mr.FastForward(2 * time.Hour)
	revoked, err := store.IsRevoked(context.Background(), "j1")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("entry should have been expired by redis")
	}
}

func TestRedisRevocationInsideLeewayStillWrites(t *testing.T) {
	store, _ := newRedisRevocations(t)
	svc, err := NewService(testConfig(t), store)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	// Nominal expiry just passed; the verification window is still open,
	// so the entry must be written.
	if err := svc.Revoke(context.Background(), "j1", time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	revoked, err := store.IsRevoked(context.Background(), "j1")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if !revoked {
		t.Fatal("expected a revocation entry for a token inside the leeway window")
	}
}

func TestRedisRevocationUnavailableFailsClosed(t *testing.T) {
	store, mr := newRedisRevocations(t)
	mr.Close()

	if _, err := store.IsRevoked(context.Background(), "j1"); err == nil {
		t.Fatal("expected store error when redis is down")
	}
}
