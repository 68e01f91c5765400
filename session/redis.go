package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// Scripts keep slide and invalidate atomic against concurrent writers:
// a Touch can never resurrect a session another caller just marked
// inactive.

const touchScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return "missing"
end
local s = cjson.decode(data)
if s.active == false then
  return "inactive"
end
s.last_activity = ARGV[1]
s.expires_at = ARGV[2]
redis.call("SET", KEYS[1], cjson.encode(s), "PX", tonumber(ARGV[3]))
return "ok"
`

var touchLua = redis.NewScript(touchScript)

const markInactiveScript = `
redis.call("SREM", KEYS[2], ARGV[2])
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
local s = cjson.decode(data)
if s.active == false then
  return 1
end
s.active = false
s.invalidated_at = ARGV[1]
redis.call("SET", KEYS[1], cjson.encode(s), "KEEPTTL")
return 1
`

var markInactiveLua = redis.NewScript(markInactiveScript)

// RedisStore is the multi-process session store. Sessions live as JSON
// blobs with a TTL covering the remaining validity plus a retention
// grace so recently ended sessions stay inspectable; a per-user set
// provides the secondary lookup and self-heals as dead members are
// discovered.
type RedisStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

func NewRedisStore(client redis.UniversalClient, prefix string, retention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "ses"
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &RedisStore{redis: client, prefix: prefix, retention: retention}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + ":s:" + id
}

func (r *RedisStore) userKey(userID string) string {
	return r.prefix + ":u:" + userID
}

func (r *RedisStore) ttl(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt) + r.retention
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, r.key(s.ID), data, r.ttl(s.ExpiresAt))
	pipe.SAdd(ctx, r.userKey(s.UserID), s.ID)
	pipe.Expire(ctx, r.userKey(s.UserID), r.ttl(s.ExpiresAt))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.redis.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: corrupt session blob: %v", ErrStoreUnavailable, err)
	}
	return &s, nil
}

func (r *RedisStore) Touch(ctx context.Context, id string, lastActivity, expiresAt time.Time) error {
	res, err := touchLua.Run(ctx, r.redis,
		[]string{r.key(id)},
		lastActivity.UTC().Format(time.RFC3339Nano),
		expiresAt.UTC().Format(time.RFC3339Nano),
		r.ttl(expiresAt).Milliseconds(),
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch res {
	case "ok":
		return nil
	case "inactive":
		return ErrInactive
	default:
		return ErrNotFound
	}
}

func (r *RedisStore) MarkInactive(ctx context.Context, id string, at time.Time) error {
	// Need the owner to clean the user index; a missing blob means the
	// TTL already reaped it and there is nothing to transition.
	s, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	_, err = markInactiveLua.Run(ctx, r.redis,
		[]string{r.key(id), r.userKey(s.UserID)},
		at.UTC().Format(time.RFC3339Nano),
		id,
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisStore) ActiveByUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := r.redis.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		s, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Reaped by TTL; heal the index.
				_ = r.redis.SRem(ctx, r.userKey(userID), id).Err()
				continue
			}
			return nil, err
		}
		if !s.Active {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
