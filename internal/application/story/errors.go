// Package story 实现绘本生成编排
package story

import (
	stderrors "errors"
	"fmt"
	"strings"

	"storybook-studio/internal/workflow/node"
	apperrors "storybook-studio/pkg/errors"
)

const parsePayloadPreviewRunes = 500

// ValidationIssues 意图校验问题列表，每项格式为 "path: message"
type ValidationIssues []string

func (v ValidationIssues) Error() string {
	return strings.Join(v, "; ")
}

// NewValidationError 创建意图校验错误
func NewValidationError(issues []string) *apperrors.AppError {
	return apperrors.Wrap(ValidationIssues(issues), apperrors.CodeInvalidParam, "invalid story intent")
}

// IssuesOf 提取错误链中的校验问题
func IssuesOf(err error) []string {
	var issues ValidationIssues
	if stderrors.As(err, &issues) {
		return issues
	}
	return nil
}

// NewParseError 创建模型输出解析错误，payload 仅保留前 500 个字符
func NewParseError(reason, payload string) *apperrors.AppError {
	msg := fmt.Sprintf("Story JSON parsing failed: %s\nPayload: %s", reason, node.TruncateByRunes(payload, parsePayloadPreviewRunes))
	return apperrors.New(apperrors.CodeStoryParseFailed, msg)
}

// NewGenerationError 创建模型调用失败错误
func NewGenerationError(msg string, err error) *apperrors.AppError {
	if err == nil {
		return apperrors.New(apperrors.CodeGenerationFailed, msg)
	}
	return apperrors.Wrap(err, apperrors.CodeGenerationFailed, msg)
}

// NewStorageError 创建存储错误
func NewStorageError(op string, err error) *apperrors.AppError {
	if err == nil {
		return apperrors.New(apperrors.CodeStorageError, op)
	}
	return apperrors.Wrap(err, apperrors.CodeStorageError, op)
}
