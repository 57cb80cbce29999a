package story

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storybook-studio/internal/domain/entity"
)

func exportBook() *entity.GeneratedBook {
	return &entity.GeneratedBook{
		ID:         "b1",
		Title:      "Nova & the Moon",
		Subtitle:   "A gentle tale",
		Dedication: "For every tiny heart.",
		Moral:      "Patience shines.",
		Pages: []entity.StoryPage{
			{PageNumber: 1, Headline: "Wake", Narrative: " Nova opens her eyes. ", ImageURL: "/api/books/b1/pages/1/image"},
			{PageNumber: 2, Headline: "Wait", Narrative: "The moon is late.", ImageURL: "data:image/png;base64,AAAA"},
		},
	}
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(exportBook())

	assert.True(t, strings.HasPrefix(md, "# Nova & the Moon\n\n*A gentle tale*\n\n> For every tiny heart.\n\n"))
	assert.Contains(t, md, "## Page 1: Wake\n\n![Illustration for page 1](/api/books/b1/pages/1/image)\n\nNova opens her eyes.\n\n")
	assert.Contains(t, md, "## Page 2: Wait\n\nThe moon is late.\n\n")
	assert.NotContains(t, md, "data:image")
	assert.True(t, strings.HasSuffix(md, "**Moral:** Patience shines.\n"))
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML(exportBook())
	require.NoError(t, err)

	doc := string(out)
	assert.Contains(t, doc, "<title>Nova &amp; the Moon</title>")
	assert.Contains(t, doc, "<h2>Page 1: Wake</h2>")
	assert.Contains(t, doc, `<img src="/api/books/b1/pages/1/image" alt="Illustration for page 1">`)
	assert.Contains(t, doc, "<strong>Moral:</strong> Patience shines.")
}
