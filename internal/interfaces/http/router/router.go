// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storybook-studio/internal/config"
	"storybook-studio/internal/interfaces/http/handler"
	"storybook-studio/internal/interfaces/http/middleware"
	"storybook-studio/pkg/utils"
)

// RouterHandlers 路由依赖的处理器集合
type RouterHandlers struct {
	Health *handler.HealthHandler
	Auth   *handler.AuthHandler
	Book   *handler.BookHandler
}

// RouterDeps 中间件依赖
type RouterDeps struct {
	// Limiter 为空时不限流
	Limiter middleware.RateLimiter
	// Signer 为空时会话 cookie 只校验存在性
	Signer *utils.SessionSigner
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers RouterHandlers
	deps     RouterDeps
}

// NewWithDeps 创建路由器
func NewWithDeps(cfg *config.Config, handlers RouterHandlers, deps RouterDeps) *Router {
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		cfg:      cfg,
		handlers: handlers,
		deps:     deps,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) metricsPath() string {
	if r.cfg.Observability.Metrics.Path == "" {
		return "/metrics"
	}
	return r.cfg.Observability.Metrics.Path
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name, "/health", "/live", "/ready", r.metricsPath()))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}

	// 口令门禁放在最后，系统端点不受影响
	r.engine.Use(middleware.Session(middleware.SessionConfig{
		CookieName:  r.cfg.Security.Auth.CookieName,
		Signer:      r.deps.Signer,
		PublicPaths: []string{"/login", "/api/login", "/health", "/ready", "/live", r.metricsPath()},
	}))
}

func (r *Router) rateLimit(scope string) gin.HandlerFunc {
	rl := r.cfg.Security.RateLimit
	return middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:   rl.Enabled,
		Limit:     rl.Limit,
		Window:    rl.Window,
		KeyPrefix: scope,
	}, r.deps.Limiter)
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	h := r.handlers

	// 系统端点
	r.engine.GET("/health", h.Health.Health)
	r.engine.GET("/ready", h.Health.Ready)
	r.engine.GET("/live", h.Health.Live)

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.metricsPath(), gin.WrapH(promhttp.Handler()))
	}

	r.engine.GET("/", h.Health.Health)
	r.engine.GET("/login", h.Auth.LoginPage)

	api := r.engine.Group("/api")
	{
		api.POST("/login", r.rateLimit("login"), h.Auth.Login)

		books := api.Group("/books")
		{
			books.GET("", h.Book.ListBooks)
			books.POST("", r.rateLimit("generate"), h.Book.CreateBook)
			books.POST("/stream", r.rateLimit("generate"), h.Book.StreamBook)
			books.GET("/:id", h.Book.GetBook)
			books.DELETE("/:id", h.Book.DeleteBook)
			books.GET("/:id/export", h.Book.ExportBook)
			books.GET("/:id/pages/:pageNumber/image", h.Book.PageImage)
		}
	}
}
