package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"storybook-studio/internal/domain/entity"
	llmctx "storybook-studio/internal/domain/service"
	wfmodel "storybook-studio/internal/workflow/model"
	wfnode "storybook-studio/internal/workflow/node"
	workflowport "storybook-studio/internal/workflow/port"
	workflowprompt "storybook-studio/internal/workflow/prompt"
	"storybook-studio/pkg/logger"
)

const storyWorkflow = "story_generate"

// StoryChain 故事草稿生成链：模板 -> 模型 -> 输出
type StoryChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.StoryGenerateInput, *schema.Message]
	chainErr  error
}

func NewStoryChain(factory workflowport.ChatModelFactory) *StoryChain {
	return &StoryChain{factory: factory}
}

func (c *StoryChain) Invoke(ctx context.Context, in *wfmodel.StoryGenerateInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil || in.Intent == nil {
		return nil, fmt.Errorf("input is nil")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

type storyChainState struct {
	In       *wfmodel.StoryGenerateInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *StoryChain) getChain() (compose.Runnable[*wfmodel.StoryGenerateInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *StoryChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.StoryGenerateInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.StoryGenerateInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, in *wfmodel.StoryGenerateInput) (*storyChainState, error) {
			msgs, err := FormatStoryMessages(ctx, in.Intent)
			if err != nil {
				return nil, err
			}
			return &storyChainState{In: in, Messages: msgs}, nil
		}),
		compose.WithNodeName("story.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *storyChainState) (*storyChainState, error) {
			provider := strings.TrimSpace(st.In.Provider)
			ctx = llmctx.WithLLMCall(ctx, storyWorkflow, provider, st.In.Model)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, buildStoryModelOptions(st.In, true)...)
			if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json response format not supported, fallback to prompt-only",
					"provider", provider,
					"model", st.In.Model,
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildStoryModelOptions(st.In, false)...)
			}
			if err != nil {
				return nil, err
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("story.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *storyChainState) (*schema.Message, error) {
			if st.OutMsg == nil {
				return &schema.Message{Role: schema.Assistant}, nil
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("story.finalize"),
	)

	return chain.Compile(ctx)
}

var storyPromptRegistry = workflowprompt.NewRegistry()

// FormatStoryMessages 渲染故事生成的系统与用户消息
func FormatStoryMessages(ctx context.Context, intent *entity.StoryIntent) ([]*schema.Message, error) {
	tpl, err := storyPromptRegistry.ChatTemplate(workflowprompt.PromptStoryV1)
	if err != nil {
		return nil, err
	}
	return tpl.Format(ctx, StoryPromptVars(intent))
}

// StoryPromptVars 从创作意图构造模板变量
func StoryPromptVars(intent *entity.StoryIntent) map[string]any {
	styleCues := strings.Join(intent.StyleKeywords, ", ")
	if styleCues == "" {
		styleCues = "cozy, luminous"
	}

	characters := "create protagonists that align with the theme"
	if len(intent.Characters) > 0 {
		parts := make([]string, 0, len(intent.Characters))
		for _, ch := range intent.Characters {
			line := ch.Name + ": " + ch.Description
			if ch.ReferenceImageDataURL != "" {
				line += " (reference image provided)"
			}
			parts = append(parts, line)
		}
		characters = strings.Join(parts, "; ")
	}

	return map[string]any{
		"age_range":  intent.AgeRange,
		"theme":      intent.Theme,
		"lesson":     intent.Lesson,
		"tone":       intent.EffectiveTone(),
		"page_count": intent.PageCount,
		"style_cues": styleCues,
		"characters": characters,
	}
}

func buildStoryModelOptions(in *wfmodel.StoryGenerateInput, jsonMode bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if m := strings.TrimSpace(in.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	if jsonMode {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{"type": "json_object"},
		}))
	}
	return opts
}
