package handler

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"storybook-studio/internal/application/story"
	"storybook-studio/internal/domain/entity"
	"storybook-studio/internal/domain/repository"
	"storybook-studio/internal/interfaces/http/dto"
	"storybook-studio/pkg/logger"
)

// maxIntentBodyBytes 意图请求体上限，参考图以 data URL 内联
const maxIntentBodyBytes = 32 << 20

// BookGenerator 绘本生成依赖
type BookGenerator interface {
	GenerateBook(ctx context.Context, intent *entity.StoryIntent, onProgress story.ProgressFunc) (*entity.GenerationResult, error)
}

// BookHandler 绘本处理器
type BookHandler struct {
	generator  BookGenerator
	books      repository.BookRepository
	pageImages repository.PageImageRepository
	timeout    time.Duration
}

// NewBookHandler 创建绘本处理器
func NewBookHandler(
	generator BookGenerator,
	books repository.BookRepository,
	pageImages repository.PageImageRepository,
	generationTimeout time.Duration,
) *BookHandler {
	return &BookHandler{
		generator:  generator,
		books:      books,
		pageImages: pageImages,
		timeout:    generationTimeout,
	}
}

// ListBooks 列出绘本
// @Summary 列出全部绘本
// @Tags Books
// @Produce json
// @Success 200 {object} dto.BookListResponse
// @Router /api/books [get]
func (h *BookHandler) ListBooks(c *gin.Context) {
	books, err := h.books.ListBooks(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list books", err)
		dto.InternalError(c, err.Error())
		return
	}
	if books == nil {
		books = []*entity.GeneratedBook{}
	}
	c.JSON(http.StatusOK, dto.BookListResponse{Books: books})
}

// readIntent 读取并校验请求体中的意图
func (h *BookHandler) readIntent(c *gin.Context) (*entity.StoryIntent, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxIntentBodyBytes))
	if err != nil {
		return nil, err
	}
	return story.ParseStoryIntent(dto.IntentPayload(body))
}

func (h *BookHandler) generationContext(parent context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, h.timeout)
}

// CreateBook 同步生成绘本
// @Summary 生成绘本
// @Tags Books
// @Accept json
// @Produce json
// @Success 200 {object} dto.CreateBookResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/books [post]
func (h *BookHandler) CreateBook(c *gin.Context) {
	intent, err := h.readIntent(c)
	if err != nil {
		logger.Warn(c.Request.Context(), "rejected story intent", "error", err.Error())
		dto.BadRequest(c, err.Error())
		return
	}

	ctx, cancel := h.generationContext(c.Request.Context())
	defer cancel()

	var steps []entity.StoryJobProgress
	result, err := h.generator.GenerateBook(ctx, intent, func(p entity.StoryJobProgress) {
		steps = append(steps, p)
	})
	if err != nil {
		logger.Error(ctx, "book generation failed", err)
		dto.BadRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, dto.CreateBookResponse{
		Book:          result.Book,
		ProgressTrace: steps,
		FinalProgress: result.Progress,
	})
}

type sseEvent struct {
	name string
	data any
}

// StreamBook 以 SSE 推送生成进度
// @Summary 流式生成绘本
// @Tags Books
// @Accept json
// @Produce text/event-stream
// @Success 200 "SSE stream: progress / book / error"
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/books/stream [post]
func (h *BookHandler) StreamBook(c *gin.Context) {
	intent, err := h.readIntent(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	ctx, cancel := h.generationContext(c.Request.Context())
	defer cancel()

	events := make(chan sseEvent, 8)
	send := func(ev sseEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(events)
		result, err := h.generator.GenerateBook(ctx, intent, func(p entity.StoryJobProgress) {
			send(sseEvent{name: "progress", data: p})
		})
		if err != nil {
			logger.Error(ctx, "streamed book generation failed", err)
			send(sseEvent{name: "error", data: dto.ErrorResponse{Error: err.Error()}})
			return
		}
		send(sseEvent{name: "book", data: dto.StreamBookEvent{Book: result.Book, FinalProgress: result.Progress}})
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(ev.name, ev.data)
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// GetBook 获取单本绘本
// @Summary 获取绘本
// @Tags Books
// @Produce json
// @Param id path string true "绘本 ID"
// @Success 200 {object} dto.BookResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/books/{id} [get]
func (h *BookHandler) GetBook(c *gin.Context) {
	book, ok := h.findBook(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.BookResponse{Book: book})
}

func (h *BookHandler) findBook(c *gin.Context) (*entity.GeneratedBook, bool) {
	book, err := h.books.FindBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to load book", err)
		dto.InternalError(c, err.Error())
		return nil, false
	}
	if book == nil {
		dto.NotFound(c)
		return nil, false
	}
	return book, true
}

// DeleteBook 删除绘本及其插图
// @Summary 删除绘本
// @Tags Books
// @Param id path string true "绘本 ID"
// @Success 204
// @Router /api/books/{id} [delete]
func (h *BookHandler) DeleteBook(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if err := h.books.DeleteBook(ctx, id); err != nil {
		logger.Error(ctx, "failed to delete book", err, "book_id", id)
		dto.InternalError(c, err.Error())
		return
	}
	if err := h.pageImages.DeleteBookImages(ctx, id); err != nil {
		logger.Error(ctx, "failed to delete book images", err, "book_id", id)
		dto.InternalError(c, err.Error())
		return
	}
	logger.Info(ctx, "book deleted", "book_id", id)
	dto.NoContent(c)
}

// PageImage 输出页面插图文件
// @Summary 获取页面插图
// @Tags Books
// @Produce image/png,image/jpeg,image/webp
// @Param id path string true "绘本 ID"
// @Param pageNumber path int true "页码"
// @Success 200
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/books/{id}/pages/{pageNumber}/image [get]
func (h *BookHandler) PageImage(c *gin.Context) {
	page, err := strconv.Atoi(c.Param("pageNumber"))
	if err != nil || page < 1 {
		dto.BadRequest(c, "Invalid page")
		return
	}

	stored, err := h.pageImages.FindPageImage(c.Request.Context(), c.Param("id"), page)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to look up page image", err)
		dto.InternalError(c, err.Error())
		return
	}
	if stored == nil {
		dto.NotFound(c)
		return
	}

	f, err := os.Open(stored.FilePath)
	if err != nil {
		dto.NotFound(c)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		dto.InternalError(c, err.Error())
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), stored.MIMEType, f, map[string]string{
		"Cache-Control": "public, max-age=31536000, immutable",
	})
}

// ExportBook 导出绘本为 HTML，format=md 时导出 Markdown
// @Summary 导出绘本
// @Tags Books
// @Produce text/html,text/markdown
// @Param id path string true "绘本 ID"
// @Param format query string false "md"
// @Success 200
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/books/{id}/export [get]
func (h *BookHandler) ExportBook(c *gin.Context) {
	book, ok := h.findBook(c)
	if !ok {
		return
	}

	if c.Query("format") == "md" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(story.RenderMarkdown(book)))
		return
	}

	doc, err := story.RenderHTML(book)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to export book", err)
		dto.InternalError(c, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", doc)
}
