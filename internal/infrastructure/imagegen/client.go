// Package imagegen 封装 Gemini 图像模型客户端
package imagegen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"storybook-studio/internal/application/story/illustration"
	"storybook-studio/internal/config"
	"storybook-studio/pkg/logger"
	"storybook-studio/pkg/tracer"
)

// Client 带超时与追踪的内容生成客户端
type Client struct {
	models  illustration.ContentGenerator
	timeout time.Duration
}

// NewClient 包装底层内容生成器
func NewClient(models illustration.ContentGenerator, timeout time.Duration) *Client {
	return &Client{models: models, timeout: timeout}
}

// NewContentGenerator 根据配置创建图像模型客户端
// 未配置 API Key 时返回 nil，插图生成器随之进入占位图模式
func NewContentGenerator(ctx context.Context, cfg *config.Config) (illustration.ContentGenerator, error) {
	apiKey := strings.TrimSpace(cfg.Image.APIKey)
	if apiKey == "" {
		logger.Info(ctx, "image api key not configured, illustrations will use placeholders")
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return NewClient(client.Models, cfg.Image.Timeout), nil
}

// GenerateContent 实现 illustration.ContentGenerator
func (c *Client) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "imagegen.GenerateContent",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("image.model", model)),
	)
	defer span.End()

	resp, err := c.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	return resp, nil
}
