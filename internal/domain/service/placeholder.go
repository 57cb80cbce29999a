package service

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"storybook-studio/internal/domain/entity"
)

const (
	placeholderHost = "placehold.co"
	placeholderBase = "https://placehold.co/768x1024/1b1b3a/eeeeff.png"
)

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// SafeTheme 将主题中的非字母数字字符折叠为空格
func SafeTheme(theme string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(theme, " "))
}

// BuildPlaceholderURL 生成页面占位图地址
func BuildPlaceholderURL(pageNumber int, theme string) string {
	text := fmt.Sprintf("Page %d\n%s", pageNumber, SafeTheme(theme))
	return placeholderBase + "?text=" + encodeURIComponent(text)
}

// encodeURIComponent 按 ECMAScript encodeURIComponent 规则编码
func encodeURIComponent(s string) string {
	// PathEscape 额外保留 $&+,/:;=@，需要再次转义
	escaped := url.PathEscape(s)
	r := strings.NewReplacer(
		"$", "%24", "&", "%26", "+", "%2B", ",", "%2C",
		"/", "%2F", ":", "%3A", ";", "%3B", "=", "%3D", "@", "%40",
	)
	return r.Replace(escaped)
}

// IsPlaceholderURL 判断是否为占位图地址
func IsPlaceholderURL(raw string) bool {
	return strings.HasPrefix(raw, "http") && strings.Contains(raw, placeholderHost)
}

// NormalizePlaceholderURL 确保占位图请求 PNG 资源
// 非占位图地址或解析失败时原样返回
func NormalizePlaceholderURL(raw string, pageNumber int, theme string) string {
	if raw == "" || !IsPlaceholderURL(raw) {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	changed := false
	q := u.Query()
	if q.Get("format") != "png" {
		q.Set("format", "png")
		changed = true
	}

	if !strings.HasSuffix(u.Path, ".png") {
		segments := strings.Split(u.Path, "/")
		segments[len(segments)-1] += ".png"
		path := strings.Join(segments, "/")
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		u.Path = path
		u.RawPath = ""
		changed = true
	}

	if !q.Has("text") {
		q.Set("text", fmt.Sprintf("Page %d\n%s", pageNumber, SafeTheme(theme)))
		changed = true
	}

	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NormalizeBookImages 规范化页面中的占位图地址，无变化时返回原对象
func NormalizeBookImages(book *entity.GeneratedBook) *entity.GeneratedBook {
	if book == nil {
		return nil
	}
	var pages []entity.StoryPage
	for i, p := range book.Pages {
		if p.ImageURL == "" {
			continue
		}
		normalized := NormalizePlaceholderURL(p.ImageURL, p.PageNumber, book.Intent.Theme)
		if normalized == p.ImageURL {
			continue
		}
		if pages == nil {
			pages = make([]entity.StoryPage, len(book.Pages))
			copy(pages, book.Pages)
		}
		pages[i].ImageURL = normalized
	}
	if pages == nil {
		return book
	}
	out := *book
	out.Pages = pages
	return &out
}
