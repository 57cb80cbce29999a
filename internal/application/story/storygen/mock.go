package storygen

import (
	"fmt"
	"strings"

	storymodel "storybook-studio/internal/application/story/model"
	"storybook-studio/internal/domain/entity"
)

const (
	mockNarrative      = "Placeholder narrative crafted for offline mode. Replace with OpenAI-powered prose when API keys are configured."
	mockAestheticNotes = "Lean into soft pixel art lighting, velvety shadows, nostalgic gaming motifs blended with modern storybook warmth."
)

var mockMotifs = []string{
	"twinkling fireflies",
	"soft felt textures",
	"dreamy indigo gradients",
	"gentle humming lullaby notes",
	"floating constellation trails",
}

// MockDraft 离线模式下生成确定性的草稿
func MockDraft(intent *entity.StoryIntent) *storymodel.StoryDraft {
	names := make([]string, 0, len(intent.Characters))
	for _, c := range intent.Characters {
		names = append(names, c.Name)
	}
	cast := strings.Join(names, ", ")
	if cast == "" {
		cast = "a curious child"
	}

	pages := make([]entity.StoryPage, intent.PageCount)
	for i := range pages {
		pages[i] = entity.StoryPage{
			PageNumber: i + 1,
			Headline:   fmt.Sprintf("Scene %d: %s", i+1, intent.Theme),
			Narrative:  mockNarrative,
			IllustrationPrompt: fmt.Sprintf("Whimsical %s moment with %s under %s.", intent.Theme, cast, mockMotifs[i%len(mockMotifs)]) +
				" Stylized as a pixel-inspired picture book, consistent characters, cozy palette.",
			KeyMoments: []string{
				"Introduce characters",
				"Reveal gentle conflict",
				"Celebrate caring resolution",
			},
		}
	}

	return &storymodel.StoryDraft{
		Title:          intent.Theme + " Adventure",
		Subtitle:       fmt.Sprintf("A %s tale about %s", intent.Tone, intent.Lesson),
		Dedication:     "For every tiny heart eager to imagine.",
		Moral:          fmt.Sprintf("Even the smallest explorer can learn about %s.", intent.Lesson),
		AestheticNotes: mockAestheticNotes,
		Pages:          pages,
	}
}
