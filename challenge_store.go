package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var errChallengeNotFound = errors.New("login challenge not found")

// loginChallenge parks a credential-verified login until its MFA step
// completes. Challenges are single-use and expire on a short TTL.
type loginChallenge struct {
	UserID    string    `json:"user_id"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type challengeStore interface {
	Save(ctx context.Context, id string, c *loginChallenge, ttl time.Duration) error
	// Take returns and deletes the challenge atomically enough that a
	// challenge can complete at most one login.
	Take(ctx context.Context, id string) (*loginChallenge, error)
}

type memoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*loginChallenge
}

func newMemoryChallengeStore() *memoryChallengeStore {
	return &memoryChallengeStore{challenges: make(map[string]*loginChallenge)}
}

func (s *memoryChallengeStore) Save(_ context.Context, id string, c *loginChallenge, ttl time.Duration) error {
	cp := *c
	cp.ExpiresAt = time.Now().Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[id] = &cp
	return nil
}

func (s *memoryChallengeStore) Take(_ context.Context, id string) (*loginChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, errChallengeNotFound
	}
	delete(s.challenges, id)
	if time.Now().After(c.ExpiresAt) {
		return nil, errChallengeNotFound
	}
	return c, nil
}

type redisChallengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newRedisChallengeStore(client redis.UniversalClient, prefix string) *redisChallengeStore {
	return &redisChallengeStore{redis: client, prefix: prefix}
}

func (s *redisChallengeStore) key(id string) string {
	return s.prefix + ":lc:" + id
}

func (s *redisChallengeStore) Save(ctx context.Context, id string, c *loginChallenge, ttl time.Duration) error {
	cp := *c
	cp.ExpiresAt = time.Now().Add(ttl)
	data, err := json.Marshal(&cp)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (s *redisChallengeStore) Take(ctx context.Context, id string) (*loginChallenge, error) {
	data, err := s.redis.GetDel(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	var c loginChallenge
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: corrupt challenge blob: %v", ErrBackendUnavailable, err)
	}
	return &c, nil
}
