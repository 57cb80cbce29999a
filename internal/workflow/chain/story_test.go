package chain

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storybook-studio/internal/domain/entity"
	wfmodel "storybook-studio/internal/workflow/model"
)

type scriptedChatModel struct {
	replies []func() (*schema.Message, error)
	inputs  [][]*schema.Message
}

func (m *scriptedChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.inputs = append(m.inputs, input)
	next := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return next()
}

func (m *scriptedChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

type staticFactory struct{ m model.BaseChatModel }

func (f staticFactory) Get(context.Context, string) (model.BaseChatModel, error) { return f.m, nil }

func sampleIntent() *entity.StoryIntent {
	return &entity.StoryIntent{
		Audience:      entity.AudienceChild,
		Theme:         "Moonlit garden",
		Lesson:        "patience",
		AgeRange:      "Ages 3-5",
		Tone:          entity.ToneCustom,
		CustomTone:    "whispery",
		PageCount:     8,
		StyleKeywords: []string{"pastel", "felt"},
		Characters: []entity.CharacterInput{
			{ID: "1", Name: "Mina", Description: "A shy firefly", ReferenceImageDataURL: "data:image/png;base64,AA"},
			{ID: "2", Name: "Oto", Description: "A sleepy owl"},
		},
	}
}

func TestStoryPromptVars(t *testing.T) {
	vars := StoryPromptVars(sampleIntent())
	assert.Equal(t, "whispery", vars["tone"])
	assert.Equal(t, "pastel, felt", vars["style_cues"])
	assert.Equal(t, "Mina: A shy firefly (reference image provided); Oto: A sleepy owl", vars["characters"])

	empty := sampleIntent()
	empty.StyleKeywords = nil
	empty.Characters = nil
	empty.Tone = entity.TonePlayful
	vars = StoryPromptVars(empty)
	assert.Equal(t, "playful", vars["tone"])
	assert.Equal(t, "cozy, luminous", vars["style_cues"])
	assert.Equal(t, "create protagonists that align with the theme", vars["characters"])
}

func TestFormatStoryMessages(t *testing.T) {
	msgs, err := FormatStoryMessages(context.Background(), sampleIntent())
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, schema.System, msgs[0].Role)
	assert.True(t, strings.HasPrefix(msgs[0].Content, "You are StoryWeaver"))
	assert.Contains(t, msgs[1].Content, "- audience: Ages 3-5")
	assert.Contains(t, msgs[1].Content, "- desired page count: 8")
	assert.Contains(t, msgs[1].Content, "4. For each page (up to 8 entries):")
}

func TestStoryChain_FallsBackWhenJSONModeUnsupported(t *testing.T) {
	cm := &scriptedChatModel{replies: []func() (*schema.Message, error){
		func() (*schema.Message, error) { return nil, errors.New("unknown parameter: response_format") },
		func() (*schema.Message, error) { return schema.AssistantMessage(`{"title":"x"}`, nil), nil },
	}}

	out, err := NewStoryChain(staticFactory{m: cm}).Invoke(context.Background(), &wfmodel.StoryGenerateInput{
		Intent:   sampleIntent(),
		Provider: "openai",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"x"}`, out.Content)
	assert.Len(t, cm.inputs, 2)
}

func TestStoryChain_PropagatesModelError(t *testing.T) {
	cm := &scriptedChatModel{replies: []func() (*schema.Message, error){
		func() (*schema.Message, error) { return nil, errors.New("connection reset") },
	}}

	_, err := NewStoryChain(staticFactory{m: cm}).Invoke(context.Background(), &wfmodel.StoryGenerateInput{Intent: sampleIntent()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Len(t, cm.inputs, 1)
}
