package dto

import (
	"bytes"
	"encoding/json"

	"storybook-studio/internal/domain/entity"
)

// BookListResponse 绘本列表响应
type BookListResponse struct {
	Books []*entity.GeneratedBook `json:"books"`
}

// BookResponse 单本绘本响应
type BookResponse struct {
	Book *entity.GeneratedBook `json:"book"`
}

// CreateBookResponse 同步生成响应
type CreateBookResponse struct {
	Book          *entity.GeneratedBook     `json:"book"`
	ProgressTrace []entity.StoryJobProgress `json:"progressTrace"`
	FinalProgress entity.StoryJobProgress   `json:"finalProgress"`
}

// StreamBookEvent 流式生成的最终事件
type StreamBookEvent struct {
	Book          *entity.GeneratedBook   `json:"book"`
	FinalProgress entity.StoryJobProgress `json:"finalProgress"`
}

// IntentPayload 取出请求体中的意图：{"intent":{...}} 或裸意图
func IntentPayload(body []byte) []byte {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return body
	}
	raw, ok := envelope["intent"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return body
	}
	return raw
}
