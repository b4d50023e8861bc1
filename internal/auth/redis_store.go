package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/elskow/lottery-web/internal/config"
)

const loginAttemptsPrefix = "login_attempts:"

// decrementScript lowers a counter without resurrecting an expired key.
var decrementScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]))
if not n then
	return 0
end
if n <= 1 then
	redis.call('DEL', KEYS[1])
	return 0
end
return redis.call('DECR', KEYS[1])
`)

// RedisSessionStore shares attempt counters between application instances.
// Counters expire with the session.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if opts.Password == "" && cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (s *RedisSessionStore) Increment(ctx context.Context, sessionID string) (int, error) {
	key := loginAttemptsPrefix + sessionID

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return int(incr.Val()), nil
}

func (s *RedisSessionStore) Decrement(ctx context.Context, sessionID string) error {
	key := loginAttemptsPrefix + sessionID
	if err := decrementScript.Run(ctx, s.client, []string{key}).Err(); err != nil {
		return fmt.Errorf("decrement %s: %w", key, err)
	}
	return nil
}

func (s *RedisSessionStore) Count(ctx context.Context, sessionID string) (int, error) {
	n, err := s.client.Get(ctx, loginAttemptsPrefix+sessionID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *RedisSessionStore) Reset(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, loginAttemptsPrefix+sessionID).Err()
}
