// Package redis 为绘本服务的登录与生成限流提供共享计数存储
// 所有键都位于 storybook: 命名空间下，可与其他服务共用同一 Redis 库
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"storybook-studio/internal/config"
	"storybook-studio/pkg/logger"
)

// KeyNamespace 本服务写入 Redis 的键前缀
const KeyNamespace = "storybook"

const defaultConnectTimeout = 5 * time.Second

var tracer = otel.Tracer("storybook/redis")

// Key 拼接命名空间内的键，例如 Key("ratelimit", "generate") = "storybook:ratelimit:generate"
func Key(parts ...string) string {
	return KeyNamespace + ":" + strings.Join(parts, ":")
}

// Client 持有限流使用的连接
type Client struct {
	rdb *redis.Client
}

func optionsFrom(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// NewClient 连接 Redis 并以 PING 确认可用；不可达时返回错误，由调用方决定是否降级
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	opts := optionsFrom(cfg)
	rdb := redis.NewClient(opts)

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", opts.Addr, err)
	}
	logger.Info(ctx, "redis connected", "addr", opts.Addr, "db", opts.DB)
	return &Client{rdb: rdb}, nil
}

// NewClientFrom 包装已有连接，测试中使用
func NewClientFrom(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Redis 底层连接
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Close 释放连接池
func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck 就绪检查中的 Redis 探活
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.HealthCheck")
	defer span.End()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
