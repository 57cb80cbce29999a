// Package filesystem 实现基于本地文件的绘本与插图存储
package filesystem

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"storybook-studio/internal/application/story"
	"storybook-studio/internal/domain/entity"
	"storybook-studio/internal/domain/repository"
	"storybook-studio/internal/domain/service"
	"storybook-studio/pkg/logger"
	"storybook-studio/pkg/tracer"
)

const (
	booksDirName           = "books"
	defaultReadConcurrency = 8
)

// BookRepository 文件绘本仓储，每本书一个 JSON 文件
type BookRepository struct {
	dir         string
	concurrency int
	// mu 串行化写入与删除
	mu sync.Mutex
}

var _ repository.BookRepository = (*BookRepository)(nil)

// NewBookRepository 创建文件绘本仓储
func NewBookRepository(dataDir string, readConcurrency int) *BookRepository {
	if readConcurrency <= 0 {
		readConcurrency = defaultReadConcurrency
	}
	return &BookRepository{
		dir:         filepath.Join(dataDir, booksDirName),
		concurrency: readConcurrency,
	}
}

// Dir 返回绘本目录
func (r *BookRepository) Dir() string {
	return r.dir
}

func (r *BookRepository) ensureDir() error {
	return os.MkdirAll(r.dir, 0o755)
}

// SaveBook 写入绘本并删除同 ID 的旧文件
func (r *BookRepository) SaveBook(ctx context.Context, book *entity.GeneratedBook) error {
	ctx, span := tracer.Start(ctx, "filesystem.SaveBook")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureDir(); err != nil {
		tracer.RecordError(span, err)
		return story.NewStorageError("failed to create books directory", err)
	}

	normalized := service.NormalizeBookImages(book)
	payload, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return story.NewStorageError("failed to encode book", err)
	}

	path := filepath.Join(r.dir, bookFileName(normalized.Title, normalized.ID))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		tracer.RecordError(span, err)
		return story.NewStorageError("failed to write book file", err)
	}
	if err := r.removeStale(normalized.ID, path); err != nil {
		return story.NewStorageError("failed to remove stale book files", err)
	}

	logger.Debug(ctx, "book saved", "path", path)
	return nil
}

func (r *BookRepository) removeStale(id, keepPath string) error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}
	suffix := bookFileSuffix(id)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		p := filepath.Join(r.dir, e.Name())
		if p == keepPath {
			continue
		}
		// 后缀相同但属于其他绘本（id 以本 id 结尾）的文件保留
		if book, err := readBookFile(p); err != nil || book.ID != id {
			continue
		}
		if err := os.Remove(p); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// findFile 按 -<id>.json 后缀查找文件，并以文件内的 id 精确比对
// 没有精确匹配时退回到第一个无法解析的候选文件，book 为 nil
func (r *BookRepository) findFile(id string) (path string, book *entity.GeneratedBook, err error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return "", nil, nil
		}
		return "", nil, err
	}
	suffix := bookFileSuffix(id)
	var unreadable string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		p := filepath.Join(r.dir, e.Name())
		b, readErr := readBookFile(p)
		if readErr != nil {
			if unreadable == "" {
				unreadable = p
			}
			continue
		}
		if b.ID == id {
			return p, b, nil
		}
	}
	return unreadable, nil, nil
}

// FindBook 根据 ID 读取绘本，文件损坏时记录告警并返回 nil
func (r *BookRepository) FindBook(ctx context.Context, id string) (*entity.GeneratedBook, error) {
	ctx, span := tracer.Start(ctx, "filesystem.FindBook")
	defer span.End()

	if id == "" {
		return nil, nil
	}
	path, book, err := r.findFile(id)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, story.NewStorageError("failed to read books directory", err)
	}
	if path != "" && book == nil {
		logger.Warn(ctx, "failed to read book file", "book_id", id, "path", path)
	}
	return book, nil
}

// ListBooks 并发读取全部绘本，按 createdAt 倒序返回
func (r *BookRepository) ListBooks(ctx context.Context) ([]*entity.GeneratedBook, error) {
	ctx, span := tracer.Start(ctx, "filesystem.ListBooks")
	defer span.End()

	if err := r.ensureDir(); err != nil {
		return nil, story.NewStorageError("failed to create books directory", err)
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, story.NewStorageError("failed to read books directory", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), bookFileExt) {
			names = append(names, e.Name())
		}
	}

	results := make([]*entity.GeneratedBook, len(names))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.concurrency)
	for i, name := range names {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			book, err := readBookFile(filepath.Join(r.dir, name))
			if err != nil {
				logger.Warn(ctx, "skipping unreadable book file", "file", name, "error", err.Error())
				return nil
			}
			results[i] = book
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	books := make([]*entity.GeneratedBook, 0, len(results))
	for _, b := range results {
		if b != nil {
			books = append(books, b)
		}
	}
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].CreatedAt > books[j].CreatedAt
	})
	return books, nil
}

// DeleteBook 删除绘本文件
func (r *BookRepository) DeleteBook(ctx context.Context, id string) error {
	_, span := tracer.Start(ctx, "filesystem.DeleteBook")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	path, _, err := r.findFile(id)
	if err != nil {
		return story.NewStorageError("failed to read books directory", err)
	}
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		tracer.RecordError(span, err)
		return story.NewStorageError("failed to delete book file", err)
	}
	return nil
}

// Writable 检查绘本目录可写
func (r *BookRepository) Writable() error {
	if err := r.ensureDir(); err != nil {
		return err
	}
	f, err := os.CreateTemp(r.dir, ".probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func readBookFile(path string) (*entity.GeneratedBook, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var book entity.GeneratedBook
	if err := json.Unmarshal(raw, &book); err != nil {
		return nil, err
	}
	return service.NormalizeBookImages(&book), nil
}

// HealthCheck 就绪检查：绘本目录可写
func (r *BookRepository) HealthCheck(context.Context) error {
	return r.Writable()
}
