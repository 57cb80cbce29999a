package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// slidingWindowScript 在一次往返内完成清理、计数与登记，多实例并发时计数不会超过上限
// 返回 {allowed, count}
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
  return {0, count}
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window * 2)
return {1, count + 1}
`)

// RateLimiter 基于有序集合的滑动窗口限流，登录与生成接口按客户端分别计数
type RateLimiter struct {
	client *Client
}

// NewRateLimiter 创建限流器
func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow 判断 key 在窗口内是否仍有额度，key 会被放入 storybook:ratelimit 命名空间
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := RateLimitKey(key)
	ctx, span := tracer.Start(ctx, "redis.RateLimiter.Allow")
	defer span.End()
	span.SetAttributes(
		attribute.String("ratelimit.key", redisKey),
		attribute.Int("ratelimit.limit", limit),
		attribute.Int64("ratelimit.window_ms", window.Milliseconds()),
	)

	now := time.Now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, l.client.rdb, []string{redisKey},
		now, window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	allowed := len(res) == 2 && res[0] == 1
	if len(res) == 2 {
		span.SetAttributes(attribute.Int64("ratelimit.count", res[1]))
	}
	span.SetAttributes(attribute.Bool("ratelimit.allowed", allowed))
	return allowed, nil
}

// RateLimitKey 限流计数键，调用方传入的 key 已包含作用域与客户端标识
func RateLimitKey(key string) string {
	return Key("ratelimit", key)
}
