// Package illustration 通过图像模型为绘本逐页生成插图
package illustration

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"storybook-studio/internal/application/story"
	storymodel "storybook-studio/internal/application/story/model"
	"storybook-studio/internal/domain/entity"
	"storybook-studio/internal/domain/service"
	"storybook-studio/internal/workflow/node"
	"storybook-studio/pkg/logger"
)

// DefaultModel 默认图像模型
const DefaultModel = "gemini-2.5-flash-image-preview"

const textFallbackPreviewRunes = 160

// ContentGenerator 图像模型的最小依赖
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options 插图生成器配置
type Options struct {
	Model string
	// RequestsPerMinute <=0 时不限速
	RequestsPerMinute int
}

// Generator 插图生成器
type Generator struct {
	client  ContentGenerator
	model   string
	limiter *rate.Limiter
}

// NewGenerator 创建插图生成器，client 为 nil 时只返回占位图
func NewGenerator(client ContentGenerator, opts Options) *Generator {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	g := &Generator{client: client, model: model}
	if opts.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return g
}

// Generate 生成单页插图，返回 data URL 或占位图地址
// 限流与服务端错误降级为占位图
func (g *Generator) Generate(ctx context.Context, book *storymodel.IllustrationBook, page *entity.StoryPage, opts storymodel.IllustrationOptions) (string, error) {
	placeholder := service.BuildPlaceholderURL(page.PageNumber, book.Intent.Theme)
	if g.client == nil {
		return placeholder, nil
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", story.NewGenerationError("Gemini image generation failed", err)
		}
	}

	contents := []*genai.Content{{Role: "user", Parts: BuildParts(book, page, opts)}}
	cfg := &genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}}

	image, err := g.render(ctx, contents, cfg)
	if err != nil {
		if IsTransient(err) {
			logger.Warn(ctx, "image model unavailable, using placeholder", "page", page.PageNumber, "error", err.Error())
			return placeholder, nil
		}
		return "", story.NewGenerationError("Gemini image generation failed", err)
	}
	if image == "" {
		return placeholder, nil
	}
	return image, nil
}

// render 调用模型并提取首个图像分片，仅有文本时返回错误
func (g *Generator) render(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := g.client.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", err
	}
	if blob := extractInlineImage(resp); blob != nil {
		return "data:" + blob.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(blob.Data), nil
	}
	if text := extractText(resp); text != "" {
		return "", stderrors.New("Gemini returned text instead of an image: " + node.TruncateByRunes(text, textFallbackPreviewRunes))
	}
	return "", nil
}

func extractInlineImage(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 && strings.HasPrefix(p.InlineData.MIMEType, "image") {
				return p.InlineData
			}
		}
	}
	return nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if p != nil && p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}

var transientMarkers = []string{
	"quota exceeded",
	"too many requests",
	"internal error encountered",
	"server error",
}

// IsTransient 判断错误是否应降级为占位图：429、5xx 或已知的限流/服务端报文
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if code := apiStatus(err); code == 429 || code >= 500 {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func apiStatus(err error) int {
	var apiErr genai.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if stderrors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code
	}
	return 0
}
