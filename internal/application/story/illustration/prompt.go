package illustration

import (
	"encoding/base64"
	"fmt"
	"strings"

	"google.golang.org/genai"

	storymodel "storybook-studio/internal/application/story/model"
	"storybook-studio/internal/domain/entity"
)

const (
	childPersona = "You are Nanobanana, a Gemini concept artist who keeps characters consistent while evolving staging, mood, and settings across a children's picture book."
	adultPersona = "You are Nanobanana, a Gemini concept artist who keeps characters consistent while evolving staging, symbolism, and mood across an illustrated narrative for adult readers."

	recapCaveat = "Use these beats for continuity cues, not for repeating the same backdrop or composition."
)

type characterNote struct {
	label     string
	detail    string
	reference string
}

func (n characterNote) hasReference() bool {
	return n.reference != ""
}

// BuildParts 组装请求分片：角色参考图（逆序）-> 前序帧（逆序）-> 文本提示
func BuildParts(book *storymodel.IllustrationBook, page *entity.StoryPage, opts storymodel.IllustrationOptions) []*genai.Part {
	notes := make([]characterNote, 0, len(book.Intent.Characters))
	for _, c := range book.Intent.Characters {
		notes = append(notes, characterNote{label: c.Name, detail: c.Description, reference: c.ReferenceImageDataURL})
	}
	active, supporting := splitActive(notes, page)

	frames := make([]*genai.Part, 0, len(opts.PriorFrames))
	for _, f := range opts.PriorFrames {
		if p := toInlineData(f); p != nil {
			frames = append(frames, p)
		}
	}
	refs := make([]*genai.Part, 0, len(active))
	for _, n := range active {
		if !n.hasReference() {
			continue
		}
		if p := toInlineData(n.reference); p != nil {
			refs = append(refs, p)
		}
	}

	text := buildPromptText(book, page, opts, active, supporting, len(refs)+len(frames))

	parts := make([]*genai.Part, 0, len(refs)+len(frames)+1)
	for i := len(refs) - 1; i >= 0; i-- {
		parts = append(parts, refs[i])
	}
	for i := len(frames) - 1; i >= 0; i-- {
		parts = append(parts, frames[i])
	}
	return append(parts, &genai.Part{Text: text})
}

// splitActive 按页面文本是否提及角色名划分主要角色与配角
func splitActive(notes []characterNote, page *entity.StoryPage) (active, supporting []characterNote) {
	pageContext := strings.ToLower(strings.Join([]string{
		page.Headline,
		page.Narrative,
		page.IllustrationPrompt,
		strings.Join(page.KeyMoments, " "),
	}, " "))

	for _, n := range notes {
		if strings.Contains(pageContext, strings.ToLower(n.label)) {
			active = append(active, n)
		} else {
			supporting = append(supporting, n)
		}
	}
	return active, supporting
}

func numbered(items []string, sep string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, it)
	}
	return strings.Join(lines, sep)
}

func buildPromptText(
	book *storymodel.IllustrationBook,
	page *entity.StoryPage,
	opts storymodel.IllustrationOptions,
	active, supporting []characterNote,
	inlineAssets int,
) string {
	isAdult := book.Intent.Audience == entity.AudienceAdult
	var sections []string
	add := func(s string) {
		if s != "" {
			sections = append(sections, s)
		}
	}

	if isAdult {
		add(adultPersona)
	} else {
		add(childPersona)
	}

	motifs := strings.Join(book.Intent.StyleKeywords, ", ")
	if motifs == "" {
		motifs = "soft starglow"
	}
	add("\n## Story Overview")
	add("- Title: " + book.Title)
	add("- Lesson: " + book.Intent.Lesson)
	add("- Moral: " + book.Moral)
	add("- Tone: " + book.Intent.EffectiveTone())
	add("- Aesthetic notes: " + book.AestheticNotes)
	add("- Visual motifs: " + motifs)

	add("\n## Scene Description")
	scene := make([]string, 0, 2)
	if n := strings.TrimSpace(page.Narrative); n != "" {
		scene = append(scene, n)
	}
	if p := strings.TrimSpace(page.IllustrationPrompt); p != "" {
		scene = append(scene, "Focus on "+p+".")
	}
	add(strings.Join(scene, " "))
	if len(page.KeyMoments) > 0 {
		add("Key beats to highlight:\n" + numbered(page.KeyMoments, "\n"))
	}

	summaries := opts.PriorSummaries
	if len(summaries) > 3 {
		summaries = summaries[len(summaries)-3:]
	}
	if len(summaries) > 0 {
		lines := make([]string, len(summaries))
		for i, s := range summaries {
			keyLine := ""
			if len(s.KeyMoments) > 0 {
				keyLine = " (Key beats: " + numbered(s.KeyMoments, " | ") + ")"
			}
			lines[i] = fmt.Sprintf("- Page %d: %s — Focused on %s%s", s.PageNumber, s.Headline, s.IllustrationPrompt, keyLine)
		}
		add("\n## Previous Scenes Recap\n" + strings.Join(lines, "\n") + "\n" + recapCaveat)
	}

	add("\n## Character Continuity")
	if len(active) > 0 {
		lines := make([]string, len(active))
		for i, n := range active {
			lines[i] = "- " + n.label + ": " + n.detail
			if n.hasReference() {
				lines[i] += " (match provided reference)"
			}
		}
		add(strings.Join(lines, "\n"))
	} else {
		add("- Maintain protagonist design across the book.")
	}
	if len(supporting) > 0 {
		lines := make([]string, len(supporting))
		for i, n := range supporting {
			lines[i] = "- " + n.label + ": " + n.detail
		}
		add("Supporting cast reminders:\n" + strings.Join(lines, "\n"))
	}

	// 只统计实际解码成功的内联分片
	if inlineAssets > 0 {
		add(fmt.Sprintf("\n## Continuity References\n- %d visual reference asset(s) provided inline. Match character proportions, palette, and accessories.", inlineAssets))
	}

	if opts.FrameSeed != "" {
		add("\n## Seed Hint\n- " + opts.FrameSeed)
	}

	add("\n## Rendering Guidance")
	add("- Portrait orientation at 768x1024. Keep characters prominent and expressive.")
	if isAdult {
		add("- Lean into the described aesthetic notes to convey mature, contemplative atmosphere.")
	} else {
		add("- Use the dreamy pastel palette described.")
	}
	add("- Introduce a fresh camera angle or environmental detail relative to prior pages.")
	add("- Let backgrounds shift when the story suggests progress; continuity lives in characters, motifs, and emotional throughline.")
	add("- Deliver a single finished illustration as inline image data.")

	return strings.Join(sections, "\n")
}

// toInlineData 将 data URL 转为内联分片，非 data URL 或解码失败返回 nil
func toInlineData(dataURL string) *genai.Part {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil
	}
	comma := strings.Index(dataURL, ",")
	if comma == -1 {
		return nil
	}
	meta := dataURL[len("data:"):comma]
	mime, _, _ := strings.Cut(meta, ";")
	if mime == "" {
		mime = "image/png"
	}
	data, err := base64.StdEncoding.DecodeString(dataURL[comma+1:])
	if err != nil {
		return nil
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: data}}
}
