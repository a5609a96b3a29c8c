package bruteforce

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "bruteforce:"

// KEYS[1] counter, KEYS[2] lock
// ARGV[1] ttl in milliseconds, ARGV[2] max attempts
// Returns {count, tripped, locked}
var recordFailureScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local tripped = 0
if count == tonumber(ARGV[2]) then
	redis.call("SET", KEYS[2], "1", "PX", ARGV[1])
	tripped = 1
end
return {count, tripped, redis.call("EXISTS", KEYS[2])}
`)

// RedisStore is an AttemptStore shared by every process using the same Redis
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func countKey(id string) string { return keyPrefix + id + ":count" }
func lockKey(id string) string  { return keyPrefix + id + ":lock" }

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) IsLocked(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, lockKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("error while checking lock. Err: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) RecordFailure(ctx context.Context, id string, maxAttempts int64, lockout time.Duration) (Attempt, error) {
	res, err := recordFailureScript.Run(
		ctx,
		s.client,
		[]string{countKey(id), lockKey(id)},
		lockout.Milliseconds(),
		maxAttempts,
	).Int64Slice()
	if err != nil {
		return Attempt{}, fmt.Errorf("error while recording failure. Err: %w", err)
	}
	if len(res) != 3 {
		return Attempt{}, fmt.Errorf("unexpected script result %v", res)
	}

	return Attempt{
		Count:   res[0],
		Tripped: res[1] == 1,
		Locked:  res[2] == 1,
	}, nil
}

func (s *RedisStore) Clear(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, countKey(id), lockKey(id)).Err(); err != nil {
		return fmt.Errorf("error while clearing attempts. Err: %w", err)
	}
	return nil
}
