// Package service 提供领域服务
package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow llmCtxKey = "llm_workflow"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
	llmCtxKeyModel    llmCtxKey = "llm_model"
)

const unknownLabel = "unknown"

func withLabel(ctx context.Context, key llmCtxKey, value string) context.Context {
	if ctx == nil {
		return nil
	}
	v := strings.TrimSpace(value)
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func labelFrom(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return unknownLabel
	}
	s, ok := ctx.Value(key).(string)
	if !ok || s == "" {
		return unknownLabel
	}
	return s
}

// WithLLMCall 标记一次模型调用的工作流、提供商和模型，供回调打点使用
func WithLLMCall(ctx context.Context, workflow, provider, model string) context.Context {
	ctx = withLabel(ctx, llmCtxKeyWorkflow, workflow)
	ctx = withLabel(ctx, llmCtxKeyProvider, provider)
	return withLabel(ctx, llmCtxKeyModel, model)
}

func WorkflowFromContext(ctx context.Context) string { return labelFrom(ctx, llmCtxKeyWorkflow) }

func ProviderFromContext(ctx context.Context) string { return labelFrom(ctx, llmCtxKeyProvider) }

func ModelFromContext(ctx context.Context) string { return labelFrom(ctx, llmCtxKeyModel) }
