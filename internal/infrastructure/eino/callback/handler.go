// Package callback 注册 Eino 全局回调，用于模型调用的指标与追踪
package callback

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storybook-studio/internal/domain/service"
	"storybook-studio/pkg/logger"
	"storybook-studio/pkg/metrics"
	"storybook-studio/pkg/tracer"
)

type startTimeKey struct{}

// callLabels 一次模型调用的指标标签
type callLabels struct {
	workflow string
	provider string
	model    string
}

func labelsFrom(ctx context.Context, cfgModel string) callLabels {
	m := cfgModel
	if m == "" {
		m = service.ModelFromContext(ctx)
	}
	return callLabels{
		workflow: service.WorkflowFromContext(ctx),
		provider: service.ProviderFromContext(ctx),
		model:    m,
	}
}

func newChatModelCallbackHandler() *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())

			l := labelsFrom(ctx, modelNameFromInput(input))
			attrs := []attribute.KeyValue{
				attribute.String("eino.workflow", l.workflow),
				attribute.String("llm.provider", l.provider),
				attribute.String("llm.model", l.model),
			}
			if info != nil {
				attrs = append(attrs, attribute.String("eino.node_name", info.Name))
			}

			ctx, _ = tracer.Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			l := labelsFrom(ctx, modelNameFromOutput(output))

			metrics.LLMCallTotal.WithLabelValues(l.workflow, l.provider, l.model, "success").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.LLMCallDuration.WithLabelValues(l.workflow, l.provider, l.model).Observe(d)
			}

			span := trace.SpanFromContext(ctx)
			if output != nil && output.TokenUsage != nil {
				usage := output.TokenUsage
				metrics.LLMTokensUsed.WithLabelValues(l.workflow, l.provider, l.model, "prompt").Add(float64(usage.PromptTokens))
				metrics.LLMTokensUsed.WithLabelValues(l.workflow, l.provider, l.model, "completion").Add(float64(usage.CompletionTokens))
				span.SetAttributes(
					attribute.Int("llm.prompt_tokens", usage.PromptTokens),
					attribute.Int("llm.completion_tokens", usage.CompletionTokens),
				)
			}
			span.End()
			return ctx
		},

		OnError: func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			l := labelsFrom(ctx, "")

			metrics.LLMCallTotal.WithLabelValues(l.workflow, l.provider, l.model, "error").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.LLMCallDuration.WithLabelValues(l.workflow, l.provider, l.model).Observe(d)
			}
			logger.Warn(ctx, "llm call failed", "workflow", l.workflow, "provider", l.provider, "error", err.Error())

			span := trace.SpanFromContext(ctx)
			tracer.RecordError(span, err)
			span.End()
			return ctx
		},
	}
}

func elapsedSeconds(ctx context.Context) float64 {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromOutput(out *model.CallbackOutput) string {
	if out == nil || out.Config == nil {
		return ""
	}
	return out.Config.Model
}
