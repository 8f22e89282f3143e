package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAttemptRepo counts failed logins per key inside a fixed window. The
// window starts at the first failure and is not extended by later ones.
type RedisAttemptRepo struct {
	client redis.UniversalClient
	max    int
	window time.Duration
}

func NewRedisAttemptRepo(client redis.UniversalClient, max int, window time.Duration) *RedisAttemptRepo {
	return &RedisAttemptRepo{client: client, max: max, window: window}
}

func attemptKey(key string) string {
	return "login:fail:" + key
}

// Allowed fails open: on a Redis error it reports true alongside the error.
func (r *RedisAttemptRepo) Allowed(ctx context.Context, key string) (bool, error) {
	val, err := r.client.Get(ctx, attemptKey(key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return true, nil
	case err != nil:
		return true, err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return true, err
	}
	return n < r.max, nil
}

// Fail creates the counter with its TTL and increments it in one MULTI, so a
// counter never exists without an expiry.
func (r *RedisAttemptRepo) Fail(ctx context.Context, key string) error {
	k := attemptKey(key)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, k, 0, safeTTL(r.window))
		pipe.Incr(ctx, k)
		return nil
	})
	return err
}

func (r *RedisAttemptRepo) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, attemptKey(key)).Err()
}

func safeTTL(window time.Duration) time.Duration {
	if window <= 0 {
		return time.Hour
	}
	return window
}
