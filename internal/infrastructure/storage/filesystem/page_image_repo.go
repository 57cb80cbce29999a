package filesystem

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"storybook-studio/internal/application/story"
	"storybook-studio/internal/domain/repository"
	"storybook-studio/pkg/tracer"
)

const imagesDirName = "book-images"

var dataURLPattern = regexp.MustCompile(`^data:([^;]+);base64,(.+)$`)

var mimeToExt = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/webp": "webp",
}

var extToMIME = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"webp": "image/webp",
}

// PageImageRepository 页面插图文件仓储
// 目录结构：<dataDir>/book-images/<bookId>/page-NN.<ext>
type PageImageRepository struct {
	root string
}

var _ repository.PageImageRepository = (*PageImageRepository)(nil)

// NewPageImageRepository 创建插图仓储
func NewPageImageRepository(dataDir string) *PageImageRepository {
	return &PageImageRepository{root: filepath.Join(dataDir, imagesDirName)}
}

func (r *PageImageRepository) bookDir(bookID string) string {
	return filepath.Join(r.root, bookID)
}

// validBookID 拒绝会逃出插图根目录的 ID
func validBookID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func pageBasename(pageNumber int) string {
	return fmt.Sprintf("page-%02d", pageNumber)
}

// PageImageReference 插图的稳定访问路径
func PageImageReference(bookID string, pageNumber int) string {
	return fmt.Sprintf("/api/books/%s/pages/%d/image", bookID, pageNumber)
}

// MIMETypeForFile 根据扩展名推断 MIME，未知时为 image/png
func MIMETypeForFile(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if m, ok := extToMIME[ext]; ok {
		return m
	}
	return "image/png"
}

// PersistPageImage 解码 data URL 并写入页面文件
func (r *PageImageRepository) PersistPageImage(ctx context.Context, bookID string, pageNumber int, dataURL string) (*repository.StoredImage, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, nil
	}

	_, span := tracer.Start(ctx, "filesystem.PersistPageImage")
	defer span.End()

	if !validBookID(bookID) {
		return nil, story.NewStorageError("invalid book id", nil)
	}

	m := dataURLPattern.FindStringSubmatch(dataURL)
	if m == nil {
		return nil, story.NewStorageError("unsupported data URL format", nil)
	}
	mimeType, encoded := m[1], m[2]

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, story.NewStorageError("failed to decode page image", err)
	}

	ext, ok := mimeToExt[mimeType]
	if !ok {
		ext = "png"
	}

	dir := r.bookDir(bookID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		tracer.RecordError(span, err)
		return nil, story.NewStorageError("failed to create image directory", err)
	}
	path := filepath.Join(dir, pageBasename(pageNumber)+"."+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tracer.RecordError(span, err)
		return nil, story.NewStorageError("failed to write page image", err)
	}
	if err := r.removeOtherPageFiles(dir, pageNumber, path); err != nil {
		return nil, story.NewStorageError("failed to remove stale page images", err)
	}

	return &repository.StoredImage{
		FilePath:      path,
		ReferencePath: PageImageReference(bookID, pageNumber),
		MIMEType:      mimeType,
	}, nil
}

func (r *PageImageRepository) removeOtherPageFiles(dir string, pageNumber int, keepPath string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	base := pageBasename(pageNumber)
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if !strings.HasPrefix(e.Name(), base) || p == keepPath {
			continue
		}
		if err := os.Remove(p); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// FindPageImage 查找页面插图文件
func (r *PageImageRepository) FindPageImage(_ context.Context, bookID string, pageNumber int) (*repository.StoredImage, error) {
	if !validBookID(bookID) {
		return nil, nil
	}
	dir := r.bookDir(bookID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, story.NewStorageError("failed to read image directory", err)
	}
	base := pageBasename(pageNumber)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), base) {
			continue
		}
		return &repository.StoredImage{
			FilePath:      filepath.Join(dir, e.Name()),
			ReferencePath: PageImageReference(bookID, pageNumber),
			MIMEType:      MIMETypeForFile(e.Name()),
		}, nil
	}
	return nil, nil
}

// DeleteBookImages 删除绘本插图目录
func (r *PageImageRepository) DeleteBookImages(_ context.Context, bookID string) error {
	if !validBookID(bookID) {
		return nil
	}
	if err := os.RemoveAll(r.bookDir(bookID)); err != nil {
		return story.NewStorageError("failed to delete book images", err)
	}
	return nil
}
