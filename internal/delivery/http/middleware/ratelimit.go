package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/LavaJover/lockin-market-service/internal/config"
	"github.com/LavaJover/lockin-market-service/internal/delivery/http/dto/response"
)

// KEYS[1] bucket key
// ARGV: capacity, refill tokens, refill interval ms, now ms, ttl ms
// Returns {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
  tokens = capacity
  ts = now
end

local elapsed = now - ts
if elapsed > 0 then
  local periods = math.floor(elapsed / interval)
  if periods > 0 then
    tokens = math.min(capacity, tokens + periods * refill)
    ts = ts + periods * interval
  end
end

local allowed = 0
local retry = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  retry = interval - (now - ts)
end

redis.call("HSET", key, "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", key, ttl)
return {allowed, tokens, retry}
`)

// TokenBucket limits requests per authenticated user. Requests are let
// through when Redis is unreachable.
func TokenBucket(cfg config.RateLimit, rdb *redis.Client, scope string) echo.MiddlewareFunc {
	interval := cfg.RefillInterval
	if interval <= 0 {
		interval = time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			subject := UserID(c)
			if subject == "" {
				subject = "ip:" + c.RealIP()
			}
			key := "market:ratelimit:" + scope + ":" + subject

			res, err := tokenBucketScript.Run(c.Request().Context(), rdb, []string{key},
				cfg.Capacity,
				cfg.RefillTokens,
				interval.Milliseconds(),
				time.Now().UnixMilli(),
				cfg.TTL.Milliseconds(),
			).Int64Slice()
			if err != nil || len(res) != 3 {
				slog.Warn("rate limiter unavailable", "scope", scope, "error", err)
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
			if res[0] == 1 {
				return next(c)
			}

			retry := time.Duration(res[2]) * time.Millisecond
			h.Set("Retry-After", strconv.Itoa(int(retry.Seconds()+0.999)))
			return c.JSON(http.StatusTooManyRequests, response.ErrorResponse{
				Success: false,
				Code:    "too_many_requests",
				Error:   "rate limit exceeded",
			})
		}
	}
}
