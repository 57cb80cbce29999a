package callback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"storybook-studio/internal/domain/service"
	"storybook-studio/pkg/metrics"
)

func TestChatModelHandler_RecordsSuccess(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := service.WithLLMCall(context.Background(), "story_generate", "openai", "gpt-4.1")

	before := testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("story_generate", "openai", "gpt-4.1", "success"))
	promptBefore := testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("story_generate", "openai", "gpt-4.1", "prompt"))

	ctx = h.OnStart(ctx, nil, &model.CallbackInput{})
	time.Sleep(time.Millisecond)
	h.OnEnd(ctx, nil, &model.CallbackOutput{
		Message:    schema.AssistantMessage("{}", nil),
		TokenUsage: &model.TokenUsage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150},
	})

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("story_generate", "openai", "gpt-4.1", "success")))
	assert.Equal(t, promptBefore+120, testutil.ToFloat64(metrics.LLMTokensUsed.WithLabelValues("story_generate", "openai", "gpt-4.1", "prompt")))
}

func TestChatModelHandler_RecordsError(t *testing.T) {
	h := newChatModelCallbackHandler()
	ctx := service.WithLLMCall(context.Background(), "story_generate", "openai", "gpt-4.1")

	before := testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("story_generate", "openai", "gpt-4.1", "error"))
	ctx = h.OnStart(ctx, nil, nil)
	h.OnError(ctx, nil, errors.New("timeout"))

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.LLMCallTotal.WithLabelValues("story_generate", "openai", "gpt-4.1", "error")))
}

func TestElapsedSeconds_WithoutStart(t *testing.T) {
	assert.Zero(t, elapsedSeconds(context.Background()))
}
