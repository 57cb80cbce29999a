package story

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"storybook-studio/internal/domain/entity"
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.Typographer),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// RenderMarkdown 将绘本导出为 Markdown
func RenderMarkdown(book *entity.GeneratedBook) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", book.Title)
	if book.Subtitle != "" {
		fmt.Fprintf(&b, "*%s*\n\n", book.Subtitle)
	}
	if book.Dedication != "" {
		fmt.Fprintf(&b, "> %s\n\n", book.Dedication)
	}

	for _, p := range book.Pages {
		fmt.Fprintf(&b, "## Page %d: %s\n\n", p.PageNumber, p.Headline)
		if p.ImageURL != "" && !strings.HasPrefix(p.ImageURL, "data:") {
			fmt.Fprintf(&b, "![Illustration for page %d](%s)\n\n", p.PageNumber, p.ImageURL)
		}
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(p.Narrative))
	}

	if book.Moral != "" {
		fmt.Fprintf(&b, "---\n\n**Moral:** %s\n", book.Moral)
	}
	return b.String()
}

// RenderHTML 将绘本导出为独立 HTML 文档
func RenderHTML(book *entity.GeneratedBook) ([]byte, error) {
	var body bytes.Buffer
	if err := markdownRenderer.Convert([]byte(RenderMarkdown(book)), &body); err != nil {
		return nil, fmt.Errorf("render book markdown: %w", err)
	}

	var doc bytes.Buffer
	doc.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&doc, "<title>%s</title>\n", html.EscapeString(book.Title))
	doc.WriteString("</head>\n<body>\n")
	doc.Write(body.Bytes())
	doc.WriteString("</body>\n</html>\n")
	return doc.Bytes(), nil
}
