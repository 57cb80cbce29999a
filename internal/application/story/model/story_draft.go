// Package model 定义绘本生成过程中的中间模型
package model

import "storybook-studio/internal/domain/entity"

// StoryDraft 文本模型产出的绘本草稿（尚未分配 ID 与插图）
type StoryDraft struct {
	Title          string             `json:"title"`
	Subtitle       string             `json:"subtitle"`
	Dedication     string             `json:"dedication"`
	Moral          string             `json:"moral"`
	AestheticNotes string             `json:"aestheticNotes"`
	Pages          []entity.StoryPage `json:"pages"`
}

// IllustrationBook 插图生成所需的绘本上下文
type IllustrationBook struct {
	Title          string
	Moral          string
	AestheticNotes string
	Intent         entity.StoryIntent
}

// IllustrationOptions 单页插图的连续性参数
type IllustrationOptions struct {
	// FrameSeed 固定为 "<bookId>-<pageNumber>"
	FrameSeed string
	// PriorFrames 最近至多两张已生成的内联图片
	PriorFrames []string
	// PriorSummaries 最近至多三页的摘要
	PriorSummaries []entity.PageSummary
}
