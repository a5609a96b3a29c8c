package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// KEYS[1] window
// ARGV[1] now ms, ARGV[2] window ms, ARGV[3] limit, ARGV[4] unique member
// Returns {allowed, count}
var hitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local length = tonumber(ARGV[2])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - length)
local count = redis.call("ZCARD", KEYS[1])
if count >= tonumber(ARGV[3]) then
	return {0, count}
end
redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], length)
return {1, count + 1}
`)

// RedisStore is a WindowStore shared by every process using the same Redis
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, now func() time.Time) *RedisStore {
	if now == nil {
		now = time.Now
	}
	return &RedisStore{client: client, now: now}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Hit(ctx context.Context, key string, limit int64, length time.Duration) (Window, error) {
	res, err := hitScript.Run(
		ctx,
		s.client,
		[]string{keyPrefix + key},
		s.now().UnixMilli(),
		length.Milliseconds(),
		limit,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Window{}, fmt.Errorf("error while recording hit. Err: %w", err)
	}
	if len(res) != 2 {
		return Window{}, fmt.Errorf("unexpected script result %v", res)
	}

	return Window{Allowed: res[0] == 1, Count: res[1]}, nil
}
