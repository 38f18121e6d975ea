package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisclient "github.com/songon-extension/access-server/internal/redis"
)

// slidingWindow keeps one sorted-set member per hit, scored in milliseconds.
// It returns {allowed, remaining, reset_at_ms}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local used = redis.call('ZCARD', key)

if used >= max then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local reset = now + window
    if #oldest == 2 then
        reset = tonumber(oldest[2]) + window
    end
    return {0, 0, reset}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {1, max - used - 1, tonumber(oldest[2]) + window}
`)

var errRateLimitReply = errors.New("unexpected rate limit reply")

// RatePolicy bounds how often one subject may hit a scope.
type RatePolicy struct {
	Scope  string
	Max    int
	Window time.Duration
}

type RateVerdict struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is a Redis sliding window shared by every instance. It guards the
// public code endpoints against enumeration.
type RateLimiter struct {
	client redis.Scripter
	now    func() time.Time
}

func NewRateLimiter(client redis.Scripter) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow counts one hit of subject under policy. When Redis cannot answer the hit is
// refused for a full window.
func (rl *RateLimiter) Allow(ctx context.Context, policy RatePolicy, subject string) RateVerdict {
	now := rl.now()
	key := redisclient.RateLimitKey(policy.Scope, subject)

	res, err := slidingWindow.Run(ctx, rl.client, []string{key},
		now.UnixMilli(),
		policy.Window.Milliseconds(),
		policy.Max,
		uuid.NewString(),
	).Int64Slice()
	if err == nil && len(res) != 3 {
		err = errRateLimitReply
	}
	if err != nil {
		log.Warn().
			Err(err).
			Str("scope", policy.Scope).
			Msg("rate limit check failed, refusing request")
		return RateVerdict{ResetAt: now.Add(policy.Window)}
	}

	return RateVerdict{
		Allowed:   res[0] == 1,
		Remaining: int(res[1]),
		ResetAt:   time.UnixMilli(res[2]),
	}
}
