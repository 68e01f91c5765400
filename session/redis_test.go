package session

import (
	"context"
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
	return NewRedisStore(client, "t:ses", time.Hour), mr
}

func testSession(id, userID string) *Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &Session{
		ID:           id,
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(30 * time.Minute),
		IP:           "10.0.0.1",
		UserAgent:    "test",
		Active:       true,
	}
}

func TestRedisSaveGetRoundTrip(t *testing.T) {
	store, _ := newRedisTestStore(t)

	want := testSession("s1", "u1")
	if err := store.Save(context.Background(), want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.UserID != "u1" || !got.Active || got.IP != "10.0.0.1" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("expiry drifted: want %v, got %v", want.ExpiresAt, got.ExpiresAt)
	}
}

func TestRedisGetMissing(t *testing.T) {
	store, _ := newRedisTestStore(t)

	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisTouchUpdatesActiveSession(t *testing.T) {
	store, _ := newRedisTestStore(t)

	s := testSession("s1", "u1")
	if err := store.Save(context.Background(), s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	newActivity := time.Now().UTC().Add(5 * time.Minute).Truncate(time.Millisecond)
	newExpiry := newActivity.Add(30 * time.Minute)
	if err := store.Touch(context.Background(), "s1", newActivity, newExpiry); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	got, err := store.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.LastActivity.Equal(newActivity) || !got.ExpiresAt.Equal(newExpiry) {
		t.Fatalf("touch not applied: %+v", got)
	}
}

func TestRedisTouchCannotResurrect(t *testing.T) {
	store, _ := newRedisTestStore(t)

	s := testSession("s1", "u1")
	if err := store.Save(context.Background(), s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.MarkInactive(context.Background(), "s1", time.Now()); err != nil {
		t.Fatalf("MarkInactive failed: %v", err)
	}

	err := store.Touch(context.Background(), "s1", time.Now(), time.Now().Add(time.Hour))
	if !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}

	got, err := store.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Active {
		t.Fatal("touch resurrected an inactive session")
	}
}

func TestRedisTouchMissing(t *testing.T) {
	store, _ := newRedisTestStore(t)

	err := store.Touch(context.Background(), "nope", time.Now(), time.Now().Add(time.Hour))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisMarkInactiveIdempotent(t *testing.T) {
	store, _ := newRedisTestStore(t)

	s := testSession("s1", "u1")
	if err := store.Save(context.Background(), s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.MarkInactive(context.Background(), "s1", time.Now()); err != nil {
			t.Fatalf("MarkInactive %d failed: %v", i, err)
		}
	}
	if err := store.MarkInactive(context.Background(), "missing", time.Now()); err != nil {
		t.Fatalf("MarkInactive of missing failed: %v", err)
	}
}

func TestRedisMarkInactiveRemovesFromUserIndex(t *testing.T) {
	store, _ := newRedisTestStore(t)

	for _, id := range []string{"s1", "s2"} {
		if err := store.Save(context.Background(), testSession(id, "u1")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if err := store.MarkInactive(context.Background(), "s1", time.Now()); err != nil {
		t.Fatalf("MarkInactive failed: %v", err)
	}

	active, err := store.ActiveByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ActiveByUser failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != "s2" {
		t.Fatalf("expected only s2 active, got %+v", active)
	}
}

func TestRedisActiveByUserHealsReapedEntries(t *testing.T) {
	store, mr := newRedisTestStore(t)

	if err := store.Save(context.Background(), testSession("s1", "u1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// Simulate the TTL reaping the blob but not the index entry.
	mr.Del("t:ses:s:s1")

	active, err := store.ActiveByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ActiveByUser failed: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active sessions, got %+v", active)
	}
	if members, _ := mr.Members("t:ses:u:u1"); len(members) != 0 {
		t.Fatal("index entry for reaped session was not healed")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newRedisTestStore(t)
	mr.Close()

	if _, err := store.Get(context.Background(), "s1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := store.Save(context.Background(), testSession("s1", "u1")); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
