//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"storybook-studio/internal/application/story"
	"storybook-studio/internal/config"
	"storybook-studio/internal/infrastructure/llm"
	"storybook-studio/internal/interfaces/http/handler"
	"storybook-studio/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		StorageSet,
		RedisSet,
		GenerationSet,
		RouterSet,
	)
	return nil, nil, nil
}

// StorageSet 绘本与插图存储提供者集合
var StorageSet = wire.NewSet(
	ProvideBookStore,
	ProvideBookRepository,
	ProvidePageImageRepository,
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClientOptional,
	ProvideRateLimiter,
)

// GenerationSet 绘本生成提供者集合
var GenerationSet = wire.NewSet(
	llm.NewEinoFactory,
	ProvideTextGenerator,
	ProvideImageGenerator,
	story.NewOrchestrator,
	wire.Bind(new(handler.BookGenerator), new(*story.Orchestrator)),
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideSessionSigner,
	ProvideAuthHandler,
	ProvideHealthHandler,
	ProvideBookHandler,
	ProvideRouterDeps,
	wire.Struct(new(router.RouterHandlers), "*"),
	router.NewWithDeps,
)
