package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow removes attempts older than the window, then admits the
// new one only if fewer than limit remain. Returns {allowed, remaining, retry_after_ms}
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local counter_key = KEYS[2]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)

	if count < limit then
		local counter = redis.call('INCR', counter_key)
		redis.call('ZADD', key, now, now .. ':' .. counter)
		redis.call('PEXPIRE', key, window_ms)
		redis.call('PEXPIRE', counter_key, window_ms)
		return {1, limit - count - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry_after = 0
	if #oldest >= 2 then
		retry_after = tonumber(oldest[2]) + window_ms - now
	end
	return {0, 0, retry_after}
`)

// Redis is a sliding window limiter shared by every server instance
type Redis struct {
	client *redis.Client
	cfg    Config
	prefix string
}

func NewRedis(client *redis.Client, cfg Config, prefix string) (*Redis, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Redis{
		client: client,
		cfg:    cfg,
		prefix: prefix,
	}, nil
}

func (l *Redis) Allow(ctx context.Context, key string) (*Result, error) {
	now := time.Now()
	redisKey := l.prefix + key

	res, err := slidingWindow.Run(ctx, l.client,
		[]string{redisKey, redisKey + ":counter"},
		now.UnixMilli(),
		now.Add(-l.cfg.Window).UnixMilli(),
		l.cfg.Max,
		l.cfg.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to run rate limit script, %w", err)
	}

	if len(res) != 3 {
		return nil, fmt.Errorf("unexpected rate limit script result length: %d", len(res))
	}

	r := &Result{
		Allowed:   res[0] == 1,
		Remaining: int(res[1]),
	}

	if !r.Allowed {
		r.RetryAfter = time.Duration(res[2]) * time.Millisecond
		if r.RetryAfter <= 0 {
			r.RetryAfter = l.cfg.Window
		}
	}

	return r, nil
}

// Reset forgets every attempt recorded for key
func (l *Redis) Reset(ctx context.Context, key string) error {
	redisKey := l.prefix + key
	return l.client.Del(ctx, redisKey, redisKey+":counter").Err()
}
