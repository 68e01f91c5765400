package mfa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const consumeBackupCodeScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return -1
end
local e = cjson.decode(data)
if not e.backup_codes or e.backup_codes == cjson.null then
  return 0
end
for i, h in ipairs(e.backup_codes) do
  if h == ARGV[1] then
    table.remove(e.backup_codes, i)
    if #e.backup_codes == 0 then
      e.backup_codes = cjson.null
    end
    redis.call("SET", KEYS[1], cjson.encode(e), "KEEPTTL")
    return 1
  end
end
return 0
`

var consumeBackupCodeLua = redis.NewScript(consumeBackupCodeScript)

// RedisStore is the multi-process enrollment store. Pending records
// carry their TTL on the key itself, so abandoned setups vanish
// without a reaper.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "mfa"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (r *RedisStore) pendingKey(userID string) string {
	return r.prefix + ":p:" + userID
}

func (r *RedisStore) enrolledKey(userID string) string {
	return r.prefix + ":e:" + userID
}

func (r *RedisStore) SavePending(ctx context.Context, e *Enrollment, ttl time.Duration) error {
	cp := *e
	cp.ExpiresAt = time.Now().Add(ttl)
	data, err := json.Marshal(&cp)
	if err != nil {
		return err
	}
	if err := r.redis.Set(ctx, r.pendingKey(e.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Pending(ctx context.Context, userID string) (*Enrollment, error) {
	return r.get(ctx, r.pendingKey(userID))
}

func (r *RedisStore) DeletePending(ctx context.Context, userID string) error {
	if err := r.redis.Del(ctx, r.pendingKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisStore) SaveEnrolled(ctx context.Context, e *Enrollment) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := r.redis.Set(ctx, r.enrolledKey(e.UserID), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Enrolled(ctx context.Context, userID string) (*Enrollment, error) {
	return r.get(ctx, r.enrolledKey(userID))
}

func (r *RedisStore) DeleteEnrolled(ctx context.Context, userID string) error {
	if err := r.redis.Del(ctx, r.enrolledKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (r *RedisStore) get(ctx context.Context, key string) (*Enrollment, error) {
	data, err := r.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var e Enrollment
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: corrupt enrollment blob: %v", ErrStoreUnavailable, err)
	}
	return &e, nil
}

func (r *RedisStore) ConsumeBackupCode(ctx context.Context, userID, hashHex string) (bool, error) {
	res, err := consumeBackupCodeLua.Run(ctx, r.redis,
		[]string{r.enrolledKey(userID)},
		hashHex,
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return res == 1, nil
}
