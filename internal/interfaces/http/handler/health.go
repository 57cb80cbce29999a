package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker 就绪检查依赖
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	// checks 必需依赖，任一失败即未就绪
	checks map[string]HealthChecker
	// optional 可选依赖，失败只标记 degraded
	optional map[string]HealthChecker
	version  string
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		checks:   make(map[string]HealthChecker),
		optional: make(map[string]HealthChecker),
		version:  version,
	}
}

// Require 注册必需依赖
func (h *HealthHandler) Require(name string, checker HealthChecker) *HealthHandler {
	if checker != nil {
		h.checks[name] = checker
	}
	return h
}

// Optional 注册可选依赖
func (h *HealthHandler) Optional(name string, checker HealthChecker) *HealthHandler {
	if checker != nil {
		h.optional[name] = checker
	}
	return h
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

// Ready 就绪检查接口
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]*readinessCheck, len(h.checks)+len(h.optional))
	ready := true

	for name, checker := range h.checks {
		res := runCheck(ctx, checker)
		if res.Status != "ok" {
			ready = false
		}
		checks[name] = res
	}
	for name, checker := range h.optional {
		res := runCheck(ctx, checker)
		if res.Status != "ok" {
			res.Status = "degraded"
		}
		checks[name] = res
	}

	resp := readinessResponse{Status: "ok", Checks: checks}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func runCheck(ctx context.Context, checker HealthChecker) *readinessCheck {
	start := time.Now()
	err := checker.HealthCheck(ctx)
	res := &readinessCheck{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = "error"
		res.Error = err.Error()
	}
	return res
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
