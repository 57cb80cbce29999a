// Package node 提供工作流节点共用的模型输出处理
package node

import (
	"strings"
	"unicode/utf8"
)

const fence = "```"

// ExtractJSONObject 从模型输出中截取 JSON 对象
// 去掉 Markdown 代码围栏，取首个 '{' 到末个 '}'；找不到对象时返回去空白后的原文
func ExtractJSONObject(s string) string {
	raw := stripFence(strings.TrimSpace(s))

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, fence) {
		return s
	}
	body := strings.TrimPrefix(s, fence)
	// 跳过语言标记，如 ```json
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	if i := strings.LastIndex(body, fence); i >= 0 {
		body = body[:i]
	}
	return strings.TrimSpace(body)
}

// TruncateByRunes 按字符数截断
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

var responseFormatHints = []string{"response_format", "json_object", "json_schema", "response_schema"}

// IsResponseFormatUnsupportedError 提供商是否拒绝了 JSON 输出模式
func IsResponseFormatUnsupportedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range responseFormatHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return strings.Contains(msg, "unknown parameter") && strings.Contains(msg, "response")
}
