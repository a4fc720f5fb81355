package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dtroode/authgate/internal/model"
)

const keyPrefix = "ratelimit:"

// incrWindow increments the counter and starts the window on the first hit.
var incrWindow = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

var _ model.RateLimiter = (*Redis)(nil)

// Redis is a fixed-window limiter whose counters live in Redis and are shared by
// every instance of the service.
type Redis struct {
	client redis.Scripter
	limit  int
	window time.Duration
}

// NewRedis creates a Redis limiter allowing limit attempts per window.
func NewRedis(client redis.Scripter, limit int, window time.Duration) *Redis {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	// PEXPIRE 0 deletes the key, so the window has millisecond granularity.
	if window < time.Millisecond {
		window = time.Millisecond
	}

	return &Redis{client: client, limit: limit, window: window}
}

// NewRedisClient parses url, connects and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// Allow records an attempt for clientID and reports whether it is within the limit.
func (r *Redis) Allow(ctx context.Context, clientID string) (bool, error) {
	count, err := incrWindow.Run(ctx, r.client, []string{keyPrefix + clientID}, r.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	return count <= int64(r.limit), nil
}
