package filesystem

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLength = 60
	fallbackSlug  = "story"
	bookFileExt   = ".json"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace   = regexp.MustCompile(`\s+`)
	slugDashes       = regexp.MustCompile(`-+`)
)

// Slugify 将标题转换为文件名片段
func Slugify(title string) string {
	trimmed := strings.ToLower(strings.TrimSpace(title))
	if trimmed == "" {
		return fallbackSlug
	}

	s := norm.NFKD.String(trimmed)
	s = slugInvalidChars.ReplaceAllString(s, "")
	s = slugWhitespace.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimSuffix(s, "-")

	if len(s) > maxSlugLength {
		s = s[:maxSlugLength]
	}
	if s == "" {
		return fallbackSlug
	}
	return s
}

// bookFileName 绘本文件名：<slug>-<id>.json
func bookFileName(title, id string) string {
	return Slugify(title) + "-" + id + bookFileExt
}

func bookFileSuffix(id string) string {
	return "-" + id + bookFileExt
}
