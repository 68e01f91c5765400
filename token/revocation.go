package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore records revoked jtis until expiresAt, which callers
// must set to the end of the token's verification window (natural
// expiry plus leeway), not its nominal expiry. Revoke is idempotent;
// IsRevoked runs on every authenticated request and must be a point
// lookup. A write must be visible to all subsequent IsRevoked calls on
// any goroutine immediately.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevocationStore is a mutex-guarded in-memory revocation list
// for single-process deployments. Entries are pruned lazily once the
// token's verification window has closed.
type MemoryRevocationStore struct {
	mu        sync.RWMutex
	entries   map[string]time.Time
	lastPrune time.Time

	now func() time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		entries:   make(map[string]time.Time),
		lastPrune: time.Now(),
		now:       time.Now,
	}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastPrune) > time.Minute {
		for id, exp := range s.entries {
			if exp.Before(now) {
				delete(s.entries, id)
			}
		}
		s.lastPrune = now
	}

	// Second revoke of the same jti is a no-op.
	if _, ok := s.entries[jti]; !ok {
		s.entries[jti] = expiresAt
	}
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	exp, ok := s.entries[jti]
	s.mu.RUnlock()

	// Once the verification window has closed, expiry rejects the token
	// before the revocation list is consulted.
	return ok && exp.After(s.now()), nil
}

// Len reports the current entry count, for tests and introspection.
func (s *MemoryRevocationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

const revocationKeyPrefix = "rvk"

// RedisRevocationStore is the multi-process revocation list. Each jti
// is a key with a TTL running to the end of the token's verification
// window, so pruning is Redis's job.
type RedisRevocationStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisRevocationStore(client redis.UniversalClient, prefix string) *RedisRevocationStore {
	if prefix == "" {
		prefix = revocationKeyPrefix
	}
	return &RedisRevocationStore{redis: client, prefix: prefix}
}

func (s *RedisRevocationStore) key(jti string) string {
	return s.prefix + ":" + jti
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Verification window already closed; expiry rejects the token.
		return nil
	}
	if err := s.redis.Set(ctx, s.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}
