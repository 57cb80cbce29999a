package storygen

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"storybook-studio/internal/application/story"
	storymodel "storybook-studio/internal/application/story/model"
	"storybook-studio/internal/domain/entity"
	wfnode "storybook-studio/internal/workflow/node"
)

// fieldAliases 模型输出字段别名，目标字段缺失时按顺序回填
var fieldAliases = map[string][]string{
	"moral":          {"caregiverMoral"},
	"aestheticNotes": {"aestheticDirective", "aesthetic"},
}

var pageFieldAliases = map[string][]string{
	"illustrationPrompt": {"illustrationDirection"},
}

// ParseStoryDraft 解析模型输出：截取 JSON -> 字段归一 -> 结构校验 -> 排序重编号 -> 截断
func ParseStoryDraft(raw string, pageCount int) (*storymodel.StoryDraft, error) {
	jsonText := wfnode.ExtractJSONObject(raw)

	dec := json.NewDecoder(bytes.NewReader([]byte(jsonText)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, story.NewParseError(err.Error(), raw)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, story.NewParseError("expected a JSON object", raw)
	}
	normalizeAliases(obj, fieldAliases)
	if pages, ok := obj["pages"].([]any); ok {
		for _, p := range pages {
			if pm, ok := p.(map[string]any); ok {
				normalizeAliases(pm, pageFieldAliases)
			}
		}
	}

	draft, err := decodeDraft(obj)
	if err != nil {
		return nil, story.NewParseError(err.Error(), raw)
	}

	sort.SliceStable(draft.Pages, func(i, j int) bool {
		return draft.Pages[i].PageNumber < draft.Pages[j].PageNumber
	})
	for i := range draft.Pages {
		draft.Pages[i].PageNumber = i + 1
	}

	if pageCount > 0 {
		if len(draft.Pages) < pageCount {
			return nil, story.NewParseError(
				fmt.Sprintf("expected %d pages, received %d", pageCount, len(draft.Pages)), raw)
		}
		draft.Pages = draft.Pages[:pageCount]
	}
	return draft, nil
}

// normalizeAliases 仅在目标字段缺失或为空时回填字符串别名
func normalizeAliases(obj map[string]any, aliases map[string][]string) {
	for target, sources := range aliases {
		if v, ok := obj[target]; ok && v != nil && v != "" {
			continue
		}
		for _, src := range sources {
			if s, ok := obj[src].(string); ok {
				obj[target] = s
				break
			}
		}
	}
}

// draftPayload 归一后的草稿形态
type draftPayload struct {
	Title          string             `json:"title" validate:"required,min=3,max=140"`
	Subtitle       string             `json:"subtitle" validate:"required,min=3,max=200"`
	Dedication     string             `json:"dedication" validate:"required,min=3,max=400"`
	Moral          string             `json:"moral" validate:"required,min=5,max=240"`
	AestheticNotes string             `json:"aestheticNotes" validate:"required,min=5,max=1500"`
	Pages          []draftPagePayload `json:"pages" validate:"required,min=6,max=30,dive"`
}

type draftPagePayload struct {
	PageNumber         int      `json:"pageNumber" validate:"min=1,max=30"`
	Headline           string   `json:"headline" validate:"required,min=3,max=120"`
	Narrative          string   `json:"narrative" validate:"required,min=30,max=800"`
	IllustrationPrompt string   `json:"illustrationPrompt" validate:"required,min=10,max=1500"`
	KeyMoments         []string `json:"keyMoments" validate:"required,min=1,max=5,dive,min=3"`
}

var draftSchema = story.NewSchemaValidator()

// decodeDraft 将归一后的文档解码为草稿并做结构校验
func decodeDraft(obj map[string]any) (*storymodel.StoryDraft, error) {
	canonical, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var payload draftPayload
	if err := json.Unmarshal(canonical, &payload); err != nil {
		return nil, err
	}
	if err := draftSchema.Struct(payload); err != nil {
		return nil, errors.New(strings.Join(story.SchemaIssues(err), "; "))
	}

	draft := &storymodel.StoryDraft{
		Title:          payload.Title,
		Subtitle:       payload.Subtitle,
		Dedication:     payload.Dedication,
		Moral:          payload.Moral,
		AestheticNotes: payload.AestheticNotes,
		Pages:          make([]entity.StoryPage, len(payload.Pages)),
	}
	for i, p := range payload.Pages {
		draft.Pages[i] = entity.StoryPage{
			PageNumber:         p.PageNumber,
			Headline:           p.Headline,
			Narrative:          p.Narrative,
			IllustrationPrompt: p.IllustrationPrompt,
			KeyMoments:         p.KeyMoments,
		}
	}
	return draft, nil
}
