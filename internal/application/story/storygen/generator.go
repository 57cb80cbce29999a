// Package storygen 通过文本模型生成绘本草稿
package storygen

import (
	"context"
	"strings"

	"storybook-studio/internal/application/story"
	storymodel "storybook-studio/internal/application/story/model"
	"storybook-studio/internal/domain/entity"
	workflowchain "storybook-studio/internal/workflow/chain"
	wfmodel "storybook-studio/internal/workflow/model"
	workflowport "storybook-studio/internal/workflow/port"
	"storybook-studio/pkg/logger"
)

// Options 文本模型调用参数
type Options struct {
	Provider    string
	Model       string
	Temperature float32
	MaxTokens   int
	// Offline 为 true 时不调用模型，返回确定性草稿
	Offline bool
}

// Generator 绘本草稿生成器
type Generator struct {
	chain *workflowchain.StoryChain
	opts  Options
}

// NewGenerator 创建草稿生成器，factory 为 nil 时进入离线模式
func NewGenerator(factory workflowport.ChatModelFactory, opts Options) *Generator {
	g := &Generator{opts: opts}
	if factory != nil && !opts.Offline {
		g.chain = workflowchain.NewStoryChain(factory)
	}
	return g
}

// Offline 是否处于离线模式
func (g *Generator) Offline() bool {
	return g.chain == nil
}

// Generate 生成草稿，页数与 intent.PageCount 一致
func (g *Generator) Generate(ctx context.Context, intent *entity.StoryIntent) (*storymodel.StoryDraft, error) {
	if g.Offline() {
		logger.Debug(ctx, "story generator offline, using placeholder draft")
		return MockDraft(intent), nil
	}

	in := &wfmodel.StoryGenerateInput{
		Intent:   intent,
		Provider: g.opts.Provider,
		Model:    g.opts.Model,
	}
	if g.opts.Temperature > 0 {
		t := g.opts.Temperature
		in.Temperature = &t
	}
	if g.opts.MaxTokens > 0 {
		n := g.opts.MaxTokens
		in.MaxTokens = &n
	}

	outMsg, err := g.chain.Invoke(ctx, in)
	if err != nil {
		return nil, story.NewGenerationError("Story generator request failed", err)
	}

	raw := ""
	if outMsg != nil {
		raw = strings.TrimSpace(outMsg.Content)
	}
	if raw == "" {
		return nil, story.NewGenerationError("Story generator returned empty response", nil)
	}

	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		logger.Info(ctx, "story draft received",
			"prompt_tokens", outMsg.ResponseMeta.Usage.PromptTokens,
			"completion_tokens", outMsg.ResponseMeta.Usage.CompletionTokens,
		)
	}
	return ParseStoryDraft(raw, intent.PageCount)
}
