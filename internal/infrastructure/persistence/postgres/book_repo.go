package postgres

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storybook-studio/internal/application/story"
	"storybook-studio/internal/domain/entity"
	"storybook-studio/internal/domain/repository"
	"storybook-studio/internal/domain/service"
	"storybook-studio/pkg/logger"
)

// storybookRecord storybooks 表行，完整绘本保存在 payload 中
type storybookRecord struct {
	ID            string         `gorm:"primaryKey;type:text"`
	Title         string         `gorm:"type:text;not null"`
	Theme         string         `gorm:"type:text"`
	Status        string         `gorm:"type:varchar(32)"`
	StyleKeywords pq.StringArray `gorm:"type:text[]"`
	Payload       []byte         `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time      `gorm:"index"`
}

// TableName 表名
func (storybookRecord) TableName() string {
	return "storybooks"
}

// BookRepository PostgreSQL 绘本仓储
type BookRepository struct {
	client *Client
}

var _ repository.BookRepository = (*BookRepository)(nil)

// NewBookRepository 创建绘本仓储
func NewBookRepository(client *Client) *BookRepository {
	return &BookRepository{client: client}
}

// SaveBook 按 ID upsert 绘本
func (r *BookRepository) SaveBook(ctx context.Context, book *entity.GeneratedBook) error {
	ctx, span := tracer.Start(ctx, "postgres.BookRepository.SaveBook")
	defer span.End()

	rec, err := toRecord(service.NormalizeBookImages(book))
	if err != nil {
		return story.NewStorageError("failed to encode book", err)
	}

	err = r.client.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(rec).Error
	if err != nil {
		span.RecordError(err)
		return story.NewStorageError("failed to save book", err)
	}
	return nil
}

// FindBook 根据 ID 获取绘本
func (r *BookRepository) FindBook(ctx context.Context, id string) (*entity.GeneratedBook, error) {
	ctx, span := tracer.Start(ctx, "postgres.BookRepository.FindBook")
	defer span.End()

	var rec storybookRecord
	err := r.client.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, story.NewStorageError("failed to load book", err)
	}

	book, err := fromRecord(&rec)
	if err != nil {
		logger.Warn(ctx, "failed to decode stored book", "book_id", id, "error", err.Error())
		return nil, nil
	}
	return book, nil
}

// ListBooks 按创建时间倒序列出绘本
func (r *BookRepository) ListBooks(ctx context.Context) ([]*entity.GeneratedBook, error) {
	ctx, span := tracer.Start(ctx, "postgres.BookRepository.ListBooks")
	defer span.End()

	var recs []storybookRecord
	if err := r.client.db.WithContext(ctx).Order("created_at DESC").Find(&recs).Error; err != nil {
		span.RecordError(err)
		return nil, story.NewStorageError("failed to list books", err)
	}

	books := make([]*entity.GeneratedBook, 0, len(recs))
	for i := range recs {
		book, err := fromRecord(&recs[i])
		if err != nil {
			logger.Warn(ctx, "skipping undecodable stored book", "book_id", recs[i].ID, "error", err.Error())
			continue
		}
		books = append(books, book)
	}
	return books, nil
}

// DeleteBook 删除绘本
func (r *BookRepository) DeleteBook(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.BookRepository.DeleteBook")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Where("id = ?", id).Delete(&storybookRecord{}).Error; err != nil {
		span.RecordError(err)
		return story.NewStorageError("failed to delete book", err)
	}
	return nil
}

func toRecord(book *entity.GeneratedBook) (*storybookRecord, error) {
	payload, err := json.Marshal(book)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, book.CreatedAt)
	if err != nil {
		createdAt = time.Now().UTC()
	}
	return &storybookRecord{
		ID:            book.ID,
		Title:         book.Title,
		Theme:         book.Intent.Theme,
		Status:        string(book.Status),
		StyleKeywords: pq.StringArray(book.Intent.StyleKeywords),
		Payload:       payload,
		CreatedAt:     createdAt,
	}, nil
}

func fromRecord(rec *storybookRecord) (*entity.GeneratedBook, error) {
	var book entity.GeneratedBook
	if err := json.Unmarshal(rec.Payload, &book); err != nil {
		return nil, err
	}
	return service.NormalizeBookImages(&book), nil
}
