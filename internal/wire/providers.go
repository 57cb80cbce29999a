package wire

import (
	"context"
	"fmt"
	"strings"

	"storybook-studio/internal/application/story"
	"storybook-studio/internal/application/story/illustration"
	"storybook-studio/internal/application/story/storygen"
	"storybook-studio/internal/config"
	"storybook-studio/internal/domain/repository"
	"storybook-studio/internal/infrastructure/imagegen"
	"storybook-studio/internal/infrastructure/llm"
	"storybook-studio/internal/infrastructure/persistence/memory"
	"storybook-studio/internal/infrastructure/persistence/postgres"
	"storybook-studio/internal/infrastructure/persistence/redis"
	"storybook-studio/internal/infrastructure/storage/filesystem"
	"storybook-studio/internal/interfaces/http/handler"
	"storybook-studio/internal/interfaces/http/middleware"
	"storybook-studio/internal/interfaces/http/router"
	"storybook-studio/pkg/logger"
	"storybook-studio/pkg/utils"
)

// BookStore 绘本记录存储及其就绪检查
type BookStore struct {
	Repo   repository.BookRepository
	Health handler.HealthChecker
}

// ProvideBookStore 按 storage.driver 选择绘本存储
func ProvideBookStore(ctx context.Context, cfg *config.Config) (*BookStore, func(), error) {
	switch strings.ToLower(cfg.Storage.Driver) {
	case "", "file":
		repo := filesystem.NewBookRepository(cfg.Storage.DataDir, cfg.Storage.ReadConcurrency)
		logger.Info(ctx, "using file book store", "dir", repo.Dir())
		return &BookStore{Repo: repo, Health: repo}, func() {}, nil
	case "postgres":
		client, err := postgres.NewClient(&cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			_ = client.Close()
		}
		logger.Info(ctx, "using postgres book store", "host", cfg.Database.Postgres.Host)
		return &BookStore{Repo: postgres.NewBookRepository(client), Health: client}, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// ProvideBookRepository 提供绘本仓储，cache_ttl > 0 时叠加读缓存
func ProvideBookRepository(cfg *config.Config, store *BookStore) repository.BookRepository {
	if cfg.Storage.CacheTTL <= 0 {
		return store.Repo
	}
	return memory.NewCachedBookRepository(store.Repo, cfg.Storage.CacheTTL)
}

// ProvidePageImageRepository 提供页面插图仓储
func ProvidePageImageRepository(cfg *config.Config) repository.PageImageRepository {
	return filesystem.NewPageImageRepository(cfg.Storage.DataDir)
}

// ProvideRedisClientOptional 提供可选 Redis 客户端，未启用或不可达时返回 nil
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Warn(ctx, "redis not available, rate limiting disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRateLimiter 提供限流器，Redis 不可用时返回 nil
func ProvideRateLimiter(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideSessionSigner 配置了会话密钥时提供签名器
func ProvideSessionSigner(cfg *config.Config) *utils.SessionSigner {
	secret := strings.TrimSpace(cfg.Security.Auth.SessionSecret)
	if secret == "" {
		return nil
	}
	return utils.NewSessionSigner(secret, cfg.App.Name)
}

// ProvideTextGenerator 提供草稿生成器，默认提供商未配置 Key 时离线
func ProvideTextGenerator(ctx context.Context, cfg *config.Config, factory *llm.EinoFactory) story.TextGenerator {
	name, p, _ := cfg.LLM.Default()
	offline := !factory.Online()
	if offline {
		logger.Info(ctx, "llm api key not configured, story drafts will use placeholders")
	}
	return storygen.NewGenerator(factory, storygen.Options{
		Provider:    name,
		Model:       p.Model,
		Temperature: float32(p.Temperature),
		MaxTokens:   p.MaxTokens,
		Offline:     offline,
	})
}

// ProvideImageGenerator 提供插图生成器
func ProvideImageGenerator(ctx context.Context, cfg *config.Config) (story.ImageGenerator, error) {
	client, err := imagegen.NewContentGenerator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return illustration.NewGenerator(client, illustration.Options{
		Model:             cfg.Image.Model,
		RequestsPerMinute: cfg.Image.RequestsPerMinute,
	}), nil
}

// ProvideBookHandler 提供绘本处理器
func ProvideBookHandler(
	cfg *config.Config,
	generator handler.BookGenerator,
	books repository.BookRepository,
	pageImages repository.PageImageRepository,
) *handler.BookHandler {
	return handler.NewBookHandler(generator, books, pageImages, cfg.Server.HTTP.GenerationTimeout)
}

// ProvideAuthHandler 提供口令登录处理器
func ProvideAuthHandler(cfg *config.Config, signer *utils.SessionSigner) *handler.AuthHandler {
	auth := cfg.Security.Auth
	return handler.NewAuthHandler(handler.AuthConfig{
		Passcode:   auth.Passcode,
		CookieName: auth.CookieName,
		SessionTTL: auth.SessionTTL,
		Secure:     cfg.App.IsProduction(),
		Signer:     signer,
	})
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, store *BookStore, redisClient *redis.Client) *handler.HealthHandler {
	h := handler.NewHealthHandler(cfg.App.Version).Require("storage", store.Health)
	if redisClient != nil {
		h.Optional("redis", redisClient)
	}
	return h
}

// ProvideRouterDeps 提供路由中间件依赖
func ProvideRouterDeps(limiter middleware.RateLimiter, signer *utils.SessionSigner) router.RouterDeps {
	return router.RouterDeps{Limiter: limiter, Signer: signer}
}
