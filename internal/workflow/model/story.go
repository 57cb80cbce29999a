package model

import "storybook-studio/internal/domain/entity"

// StoryGenerateInput 故事草稿生成输入
type StoryGenerateInput struct {
	Intent *entity.StoryIntent

	Provider string
	Model    string

	Temperature *float32
	MaxTokens   *int
}
