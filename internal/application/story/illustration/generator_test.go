package illustration

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	storymodel "storybook-studio/internal/application/story/model"
	"storybook-studio/internal/domain/entity"
	apperrors "storybook-studio/pkg/errors"
)

type fakeContentGenerator struct {
	resp     *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
}

func (f *fakeContentGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	return f.resp, f.err
}

func responseWith(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

func testBook(audience entity.Audience) *storymodel.IllustrationBook {
	return &storymodel.IllustrationBook{
		Title:          "Starlit Forest",
		Moral:          "Kindness glows",
		AestheticNotes: "Soft felt textures",
		Intent: entity.StoryIntent{
			Audience:      audience,
			Theme:         "Starlit forest",
			Lesson:        "kindness",
			Tone:          entity.ToneGentle,
			StyleKeywords: []string{"pastel", "felt"},
			Characters: []entity.CharacterInput{
				{ID: "1", Name: "Pip", Description: "A tiny fox", ReferenceImageDataURL: "data:image/png;base64,cGlw"},
				{ID: "2", Name: "Lumi", Description: "A glowing moth"},
				{ID: "3", Name: "Oto", Description: "A sleepy owl", ReferenceImageDataURL: "data:image/jpeg;base64,b3Rv"},
			},
		},
	}
}

func testPage() *entity.StoryPage {
	return &entity.StoryPage{
		PageNumber:         3,
		Headline:           "Pip finds a lantern",
		Narrative:          "  Pip wanders through the glade.  ",
		IllustrationPrompt: " Pip holding a lantern near OTO ",
		KeyMoments:         []string{"Pip spots light", "Oto wakes"},
	}
}

func TestGenerate_PlaceholderWithoutClient(t *testing.T) {
	g := NewGenerator(nil, Options{})
	url, err := g.Generate(context.Background(), testBook(entity.AudienceChild), testPage(), storymodel.IllustrationOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://placehold.co/768x1024/1b1b3a/eeeeff.png?text=Page%203%0AStarlit%20forest", url)
}

func TestGenerate_ReturnsInlineImage(t *testing.T) {
	fake := &fakeContentGenerator{resp: responseWith(
		&genai.Part{Text: "here it is"},
		&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("png")}},
	)}
	g := NewGenerator(fake, Options{Model: "image-model"})

	url, err := g.Generate(context.Background(), testBook(entity.AudienceChild), testPage(), storymodel.IllustrationOptions{})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,cG5n", url)
	assert.Equal(t, "image-model", fake.model)
	require.Len(t, fake.contents, 1)
	assert.Equal(t, "user", fake.contents[0].Role)
}

func TestGenerate_TextOnlyIsError(t *testing.T) {
	fake := &fakeContentGenerator{resp: responseWith(&genai.Part{Text: strings.Repeat("I cannot draw that. ", 20)})}
	g := NewGenerator(fake, Options{})

	_, err := g.Generate(context.Background(), testBook(entity.AudienceChild), testPage(), storymodel.IllustrationOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationFailed))
	assert.Contains(t, err.Error(), "Gemini image generation failed: Gemini returned text instead of an image: I cannot draw that.")
}

func TestGenerate_EmptyResponseFallsBack(t *testing.T) {
	g := NewGenerator(&fakeContentGenerator{resp: &genai.GenerateContentResponse{}}, Options{})
	url, err := g.Generate(context.Background(), testBook(entity.AudienceChild), testPage(), storymodel.IllustrationOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://placehold.co/"))
}

func TestGenerate_TransientErrorFallsBack(t *testing.T) {
	cases := []error{
		genai.APIError{Code: 429, Message: "Resource exhausted"},
		&genai.APIError{Code: 503, Message: "Unavailable"},
		errors.New("Quota exceeded for metric"),
		errors.New("500 Internal error encountered."),
	}
	for _, c := range cases {
		g := NewGenerator(&fakeContentGenerator{err: c}, Options{})
		url, err := g.Generate(context.Background(), testBook(entity.AudienceChild), testPage(), storymodel.IllustrationOptions{})
		require.NoError(t, err, c.Error())
		assert.True(t, strings.HasPrefix(url, "https://placehold.co/"))
	}
}

func TestGenerate_PermanentErrorFails(t *testing.T) {
	g := NewGenerator(&fakeContentGenerator{err: genai.APIError{Code: 400, Message: "invalid argument"}}, Options{})
	_, err := g.Generate(context.Background(), testBook(entity.AudienceChild), testPage(), storymodel.IllustrationOptions{})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Gemini image generation failed: "))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("permission denied")))
	assert.True(t, IsTransient(errors.New("Too Many Requests")))
	assert.True(t, IsTransient(errors.New("upstream server error")))
}

func TestBuildParts_OrderAndActiveCharacters(t *testing.T) {
	opts := storymodel.IllustrationOptions{
		FrameSeed:   "book-3",
		PriorFrames: []string{"data:image/png;base64,ZjE=", "data:image/png;base64,ZjI="},
	}
	parts := BuildParts(testBook(entity.AudienceChild), testPage(), opts)

	// Oto 与 Pip 均被提及：参考图逆序在前，之后是逆序的前序帧，最后是文本
	require.Len(t, parts, 5)
	assert.Equal(t, []byte("oto"), parts[0].InlineData.Data)
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MIMEType)
	assert.Equal(t, []byte("pip"), parts[1].InlineData.Data)
	assert.Equal(t, []byte("f2"), parts[2].InlineData.Data)
	assert.Equal(t, []byte("f1"), parts[3].InlineData.Data)

	text := parts[4].Text
	assert.True(t, strings.HasPrefix(text, childPersona+"\n\n## Story Overview\n- Title: Starlit Forest"))
	assert.Contains(t, text, "- Visual motifs: pastel, felt")
	assert.Contains(t, text, "\n## Scene Description\nPip wanders through the glade. Focus on Pip holding a lantern near OTO.")
	assert.Contains(t, text, "Key beats to highlight:\n1. Pip spots light\n2. Oto wakes")
	assert.Contains(t, text, "- Pip: A tiny fox (match provided reference)\n- Oto: A sleepy owl (match provided reference)")
	assert.Contains(t, text, "Supporting cast reminders:\n- Lumi: A glowing moth")
	assert.Contains(t, text, "\n## Continuity References\n- 4 visual reference asset(s) provided inline.")
	assert.Contains(t, text, "\n## Seed Hint\n- book-3")
	assert.Contains(t, text, "- Use the dreamy pastel palette described.")
	assert.NotContains(t, text, "## Previous Scenes Recap")
	assert.True(t, strings.HasSuffix(text, "- Deliver a single finished illustration as inline image data."))
}

func TestBuildParts_RecapAndAdultVariant(t *testing.T) {
	book := testBook(entity.AudienceAdult)
	book.Intent.StyleKeywords = nil
	book.Intent.Characters = nil
	opts := storymodel.IllustrationOptions{
		PriorSummaries: []entity.PageSummary{
			{PageNumber: 1, Headline: "One", IllustrationPrompt: "first", KeyMoments: []string{"a"}},
			{PageNumber: 2, Headline: "Two", IllustrationPrompt: "second", KeyMoments: []string{"b", "c"}},
		},
	}
	parts := BuildParts(book, testPage(), opts)
	require.Len(t, parts, 1)

	text := parts[0].Text
	assert.True(t, strings.HasPrefix(text, adultPersona))
	assert.Contains(t, text, "- Visual motifs: soft starglow")
	assert.Contains(t, text, "\n## Previous Scenes Recap\n- Page 1: One — Focused on first (Key beats: 1. a)\n- Page 2: Two — Focused on second (Key beats: 1. b | 2. c)\n"+recapCaveat)
	assert.Contains(t, text, "\n## Character Continuity\n- Maintain protagonist design across the book.")
	assert.NotContains(t, text, "## Continuity References")
	assert.NotContains(t, text, "## Seed Hint")
	assert.Contains(t, text, "- Lean into the described aesthetic notes to convey mature, contemplative atmosphere.")
}

func TestBuildParts_ReferenceCountSkipsUndecodableFrames(t *testing.T) {
	book := testBook(entity.AudienceChild)
	book.Intent.Characters = nil
	opts := storymodel.IllustrationOptions{
		PriorFrames: []string{"data:image/png;base64,page-1", "data:image/png;base64,ZjI="},
	}
	parts := BuildParts(book, testPage(), opts)

	require.Len(t, parts, 2)
	assert.Equal(t, []byte("f2"), parts[0].InlineData.Data)
	assert.Contains(t, parts[1].Text, "\n## Continuity References\n- 1 visual reference asset(s) provided inline.")

	opts.PriorFrames = []string{"data:image/png;base64,page-1"}
	parts = BuildParts(book, testPage(), opts)
	require.Len(t, parts, 1)
	assert.NotContains(t, parts[0].Text, "## Continuity References")
}

func TestToInlineData(t *testing.T) {
	assert.Nil(t, toInlineData("https://example.com/a.png"))
	assert.Nil(t, toInlineData("data:image/png;base64"))

	p := toInlineData("data:;base64,YQ==")
	require.NotNil(t, p)
	assert.Equal(t, "image/png", p.InlineData.MIMEType)
	assert.Equal(t, []byte("a"), p.InlineData.Data)
}
