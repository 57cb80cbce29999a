// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"storybook-studio/internal/domain/entity"
)

// BookRepository 绘本记录仓储接口
type BookRepository interface {
	// SaveBook 保存绘本（按 ID 覆盖）
	SaveBook(ctx context.Context, book *entity.GeneratedBook) error

	// FindBook 根据 ID 获取绘本，不存在时返回 nil, nil
	FindBook(ctx context.Context, id string) (*entity.GeneratedBook, error)

	// ListBooks 按 createdAt 倒序列出全部绘本
	ListBooks(ctx context.Context) ([]*entity.GeneratedBook, error)

	// DeleteBook 删除绘本，不存在时不报错
	DeleteBook(ctx context.Context, id string) error
}

// StoredImage 已落盘的页面插图
type StoredImage struct {
	FilePath      string
	ReferencePath string
	MIMEType      string
}

// PageImageRepository 页面插图仓储接口
type PageImageRepository interface {
	// PersistPageImage 将 data URL 写入磁盘，非 data URL 返回 nil, nil
	PersistPageImage(ctx context.Context, bookID string, pageNumber int, dataURL string) (*StoredImage, error)

	// FindPageImage 查找页面插图，不存在时返回 nil, nil
	FindPageImage(ctx context.Context, bookID string, pageNumber int) (*StoredImage, error)

	// DeleteBookImages 删除绘本的全部插图
	DeleteBookImages(ctx context.Context, bookID string) error
}
