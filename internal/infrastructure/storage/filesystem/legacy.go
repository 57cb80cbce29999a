package filesystem

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"storybook-studio/pkg/logger"
)

const legacyFileName = "books.json"

var errLegacyNotArray = stderrors.New("legacy books.json did not contain an array")

// MigrationResult 旧数据迁移结果
type MigrationResult struct {
	// Found 是否存在旧文件
	Found    bool
	Migrated []string
	Skipped  int
	Backup   string
}

type legacyBookHeader struct {
	ID    any `json:"id"`
	Title any `json:"title"`
}

// MigrateLegacyBooks 将 <dataDir>/books.json 拆分为单本文件并备份原文件
// 旧文件不存在时不报错
func MigrateLegacyBooks(ctx context.Context, dataDir string) (*MigrationResult, error) {
	legacyPath := filepath.Join(dataDir, legacyFileName)
	raw, err := os.ReadFile(legacyPath)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			logger.Info(ctx, "no legacy books.json found, nothing to migrate")
			return &MigrationResult{}, nil
		}
		return nil, fmt.Errorf("read legacy file: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse legacy books.json: %w", err)
	}
	if _, ok := doc.([]any); !ok {
		return nil, errLegacyNotArray
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse legacy books.json: %w", err)
	}

	booksDir := filepath.Join(dataDir, booksDirName)
	if err := os.MkdirAll(booksDir, 0o755); err != nil {
		return nil, fmt.Errorf("create books directory: %w", err)
	}

	result := &MigrationResult{Found: true}
	for _, entry := range entries {
		var header legacyBookHeader
		if err := json.Unmarshal(entry, &header); err != nil {
			// 非对象条目
			result.Skipped++
			continue
		}
		id := legacyString(header.ID)
		if id == "" {
			logger.Warn(ctx, "skipping legacy book without id")
			result.Skipped++
			continue
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, entry, "", "  "); err != nil {
			return nil, fmt.Errorf("format book %s: %w", id, err)
		}

		path := filepath.Join(booksDir, bookFileName(legacyString(header.Title), id))
		if err := os.WriteFile(path, pretty.Bytes(), 0o644); err != nil {
			return nil, fmt.Errorf("write book %s: %w", id, err)
		}
		if err := removeLegacyDuplicates(booksDir, id, path); err != nil {
			return nil, fmt.Errorf("remove duplicates for %s: %w", id, err)
		}
		logger.Info(ctx, "migrated legacy book", "path", path)
		result.Migrated = append(result.Migrated, path)
	}

	backup := legacyPath + ".bak"
	if err := os.Rename(legacyPath, backup); err != nil {
		return nil, fmt.Errorf("rename legacy file: %w", err)
	}
	result.Backup = backup
	logger.Info(ctx, "legacy file renamed", "path", backup)
	return result, nil
}

// removeLegacyDuplicates 删除 <id>.json 与其它 -<id>.json 文件
func removeLegacyDuplicates(dir, id, keepPath string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	suffix := bookFileSuffix(id)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name != id+bookFileExt && !strings.HasSuffix(name, suffix) {
			continue
		}
		p := filepath.Join(dir, name)
		if p == keepPath {
			continue
		}
		if err := os.Remove(p); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func legacyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case float64:
		if t == 0 {
			return ""
		}
		return fmt.Sprint(t)
	default:
		return fmt.Sprint(t)
	}
}
