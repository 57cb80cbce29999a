// Package entity 定义领域实体
package entity

// Audience 目标读者
type Audience string

const (
	AudienceChild Audience = "child"
	AudienceAdult Audience = "adult"
)

// Tone 叙事语气
type Tone string

const (
	ToneGentle      Tone = "gentle"
	TonePlayful     Tone = "playful"
	ToneAdventurous Tone = "adventurous"
	ToneSoothing    Tone = "soothing"
	ToneWondrous    Tone = "wondrous"
	ToneCustom      Tone = "custom"
)

// Tones 全部合法语气
var Tones = []Tone{ToneGentle, TonePlayful, ToneAdventurous, ToneSoothing, ToneWondrous, ToneCustom}

// BookStatus 绘本生成状态
type BookStatus string

const (
	BookStatusPendingStory  BookStatus = "pending-story"
	BookStatusPendingImages BookStatus = "pending-images"
	BookStatusCompleted     BookStatus = "completed"
	// BookStatusErrored 仅出现在进度事件中，不会持久化
	BookStatusErrored BookStatus = "errored"
)

// CharacterInput 用户提供的角色设定
type CharacterInput struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	Description           string `json:"description"`
	ReferenceImageDataURL string `json:"referenceImageDataUrl,omitempty"`
}

// StoryIntent 创作意图，生成过程中只读
type StoryIntent struct {
	Audience      Audience         `json:"audience"`
	Theme         string           `json:"theme"`
	Lesson        string           `json:"lesson"`
	AgeRange      string           `json:"ageRange"`
	Tone          Tone             `json:"tone"`
	CustomTone    string           `json:"customTone,omitempty"`
	PageCount     int              `json:"pageCount"`
	StyleKeywords []string         `json:"styleKeywords"`
	Characters    []CharacterInput `json:"characters"`
}

// EffectiveTone 返回用于提示词的语气描述
func (i StoryIntent) EffectiveTone() string {
	if i.Tone == ToneCustom {
		if i.CustomTone != "" {
			return i.CustomTone
		}
		return string(ToneGentle)
	}
	if i.Tone == "" {
		return string(ToneGentle)
	}
	return string(i.Tone)
}

// StoryPage 单页内容
type StoryPage struct {
	PageNumber         int      `json:"pageNumber"`
	Headline           string   `json:"headline"`
	Narrative          string   `json:"narrative"`
	IllustrationPrompt string   `json:"illustrationPrompt"`
	KeyMoments         []string `json:"keyMoments"`
	ImageURL           string   `json:"imageUrl,omitempty"`
}

// Summary 返回用于连续性上下文的页面摘要
func (p StoryPage) Summary() PageSummary {
	moments := make([]string, len(p.KeyMoments))
	copy(moments, p.KeyMoments)
	return PageSummary{
		PageNumber:         p.PageNumber,
		Headline:           p.Headline,
		IllustrationPrompt: p.IllustrationPrompt,
		KeyMoments:         moments,
	}
}

// PageSummary 前序页面摘要
type PageSummary struct {
	PageNumber         int      `json:"pageNumber"`
	Headline           string   `json:"headline"`
	IllustrationPrompt string   `json:"illustrationPrompt"`
	KeyMoments         []string `json:"keyMoments"`
}

// GeneratedBook 生成的绘本
type GeneratedBook struct {
	ID             string      `json:"id"`
	CreatedAt      string      `json:"createdAt"`
	Intent         StoryIntent `json:"intent"`
	Title          string      `json:"title"`
	Subtitle       string      `json:"subtitle"`
	Dedication     string      `json:"dedication"`
	Moral          string      `json:"moral"`
	AestheticNotes string      `json:"aestheticNotes"`
	Status         BookStatus  `json:"status"`
	Pages          []StoryPage `json:"pages"`
}

// StoryJobProgress 生成进度事件，只通过回调传递
type StoryJobProgress struct {
	JobID          string     `json:"jobId"`
	Status         BookStatus `json:"status"`
	Message        string     `json:"message"`
	CompletedPages int        `json:"completedPages"`
	TotalPages     int        `json:"totalPages"`
	BookID         string     `json:"bookId,omitempty"`
	Errors         []string   `json:"errors,omitempty"`
}

// GenerationResult 一次成功生成的结果
type GenerationResult struct {
	Book     *GeneratedBook   `json:"book"`
	Progress StoryJobProgress `json:"progress"`
}

// CreatedAtLayout createdAt 的时间格式（UTC，毫秒精度）
const CreatedAtLayout = "2006-01-02T15:04:05.000Z07:00"
