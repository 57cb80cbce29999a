// Package memory 提供进程内的绘本读缓存
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"storybook-studio/internal/domain/entity"
	"storybook-studio/internal/domain/repository"
	"storybook-studio/pkg/metrics"
)

const cleanupInterval = 10 * time.Minute

// CachedBookRepository 为 FindBook 增加 TTL 缓存的装饰器
// 列表不缓存，写入与删除时失效
type CachedBookRepository struct {
	next  repository.BookRepository
	cache *cache.Cache
	group singleflight.Group

	// mu 保护 generation；每次写入或删除递增，读取期间发生写入时不回填缓存
	mu         sync.Mutex
	generation uint64
}

var _ repository.BookRepository = (*CachedBookRepository)(nil)

// NewCachedBookRepository 创建缓存仓储
func NewCachedBookRepository(next repository.BookRepository, ttl time.Duration) *CachedBookRepository {
	return &CachedBookRepository{
		next:  next,
		cache: cache.New(ttl, cleanupInterval),
	}
}

func cacheKey(id string) string {
	return "book:" + id
}

// SaveBook 写入并失效缓存
func (r *CachedBookRepository) SaveBook(ctx context.Context, book *entity.GeneratedBook) error {
	if err := r.next.SaveBook(ctx, book); err != nil {
		return err
	}
	r.invalidate(book.ID)
	return nil
}

func (r *CachedBookRepository) invalidate(id string) {
	key := cacheKey(id)
	r.mu.Lock()
	r.generation++
	r.cache.Delete(key)
	r.mu.Unlock()
	// 之后的读取不再合并到写入前发起的加载
	r.group.Forget(key)
}

func (r *CachedBookRepository) currentGeneration() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// FindBook 优先读缓存，并发未命中合并为一次底层读取
func (r *CachedBookRepository) FindBook(ctx context.Context, id string) (*entity.GeneratedBook, error) {
	key := cacheKey(id)
	if v, ok := r.cache.Get(key); ok {
		metrics.BookCacheTotal.WithLabelValues("hit").Inc()
		return v.(*entity.GeneratedBook), nil
	}
	metrics.BookCacheTotal.WithLabelValues("miss").Inc()

	// 合并的加载不随首个调用方取消
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(key, func() (any, error) {
		gen := r.currentGeneration()
		book, err := r.next.FindBook(loadCtx, id)
		if err != nil {
			return nil, err
		}
		if book != nil {
			r.mu.Lock()
			if r.generation == gen {
				r.cache.SetDefault(key, book)
			}
			r.mu.Unlock()
		}
		return book, nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	book, ok := v.(*entity.GeneratedBook)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value type %T", v)
	}
	return book, nil
}

// ListBooks 直接读取底层仓储
func (r *CachedBookRepository) ListBooks(ctx context.Context) ([]*entity.GeneratedBook, error) {
	return r.next.ListBooks(ctx)
}

// DeleteBook 删除并失效缓存
func (r *CachedBookRepository) DeleteBook(ctx context.Context, id string) error {
	if err := r.next.DeleteBook(ctx, id); err != nil {
		return err
	}
	r.invalidate(id)
	return nil
}
