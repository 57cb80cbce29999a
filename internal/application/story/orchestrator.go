package story

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	storymodel "storybook-studio/internal/application/story/model"
	"storybook-studio/internal/domain/entity"
	"storybook-studio/internal/domain/repository"
	"storybook-studio/pkg/logger"
	"storybook-studio/pkg/metrics"
	"storybook-studio/pkg/tracer"
)

// 连续性窗口大小
const (
	maxPriorFrames    = 2
	maxPriorSummaries = 3
)

// TextGenerator 文本生成端口
type TextGenerator interface {
	Generate(ctx context.Context, intent *entity.StoryIntent) (*storymodel.StoryDraft, error)
}

// ImageGenerator 插图生成端口
// 返回 data URL、远程 URL 或占位图地址
type ImageGenerator interface {
	Generate(ctx context.Context, book *storymodel.IllustrationBook, page *entity.StoryPage, opts storymodel.IllustrationOptions) (string, error)
}

// ProgressFunc 进度回调
type ProgressFunc func(progress entity.StoryJobProgress)

// Orchestrator 绘本生成编排器
type Orchestrator struct {
	text       TextGenerator
	images     ImageGenerator
	books      repository.BookRepository
	pageImages repository.PageImageRepository

	now   func() time.Time
	newID func() string
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	text TextGenerator,
	images ImageGenerator,
	books repository.BookRepository,
	pageImages repository.PageImageRepository,
) *Orchestrator {
	return &Orchestrator{
		text:       text,
		images:     images,
		books:      books,
		pageImages: pageImages,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// continuityWindow 单次生成内的连续性上下文
type continuityWindow struct {
	frames    []string
	summaries []entity.PageSummary
}

func (w *continuityWindow) options(frameSeed string) storymodel.IllustrationOptions {
	frames := make([]string, len(w.frames))
	copy(frames, w.frames)
	summaries := make([]entity.PageSummary, len(w.summaries))
	copy(summaries, w.summaries)
	return storymodel.IllustrationOptions{
		FrameSeed:      frameSeed,
		PriorFrames:    frames,
		PriorSummaries: summaries,
	}
}

func (w *continuityWindow) pushFrame(frame string) {
	w.frames = append(w.frames, frame)
	if len(w.frames) > maxPriorFrames {
		w.frames = w.frames[len(w.frames)-maxPriorFrames:]
	}
}

func (w *continuityWindow) resetFrames() {
	w.frames = nil
}

func (w *continuityWindow) pushSummary(s entity.PageSummary) {
	w.summaries = append(w.summaries, s)
	if len(w.summaries) > maxPriorSummaries {
		w.summaries = w.summaries[len(w.summaries)-maxPriorSummaries:]
	}
}

// GenerateBook 生成一本完整的绘本
// 任一页插图失败时整本放弃，不落库
func (o *Orchestrator) GenerateBook(ctx context.Context, intent *entity.StoryIntent, onProgress ProgressFunc) (result *entity.GenerationResult, err error) {
	if intent == nil {
		return nil, NewValidationError([]string{"(root): Required"})
	}
	if onProgress == nil {
		onProgress = func(entity.StoryJobProgress) {}
	}

	jobID := o.newID()
	ctx = logger.WithContext(ctx, logger.JobIDKey, jobID)
	ctx, span := tracer.Start(ctx, "story.GenerateBook")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID), attribute.Int("book.page_count", intent.PageCount))

	start := time.Now()
	defer func() {
		status := "completed"
		if err != nil {
			status = "errored"
			tracer.RecordError(span, err)
		}
		metrics.BookGenerationTotal.WithLabelValues(status).Inc()
		metrics.BookGenerationDuration.Observe(time.Since(start).Seconds())
	}()

	base := entity.StoryJobProgress{
		JobID:      jobID,
		Status:     entity.BookStatusPendingStory,
		Message:    "Preparing prompt for story generation",
		TotalPages: intent.PageCount,
	}
	onProgress(base)

	logger.Info(ctx, "generating story draft", "theme", intent.Theme, "page_count", intent.PageCount)
	draft, err := o.text.Generate(ctx, intent)
	if err != nil {
		logger.Error(ctx, "story draft generation failed", err)
		return nil, err
	}
	if draft == nil {
		err = NewGenerationError("Story generator returned empty response", nil)
		logger.Error(ctx, "story draft generation failed", err)
		return nil, err
	}
	pages, err := normalizePages(draft, intent.PageCount)
	if err != nil {
		logger.Error(ctx, "story draft has too few pages", err, "received", len(draft.Pages))
		return nil, err
	}

	book := &entity.GeneratedBook{
		ID:             o.newID(),
		CreatedAt:      o.now().UTC().Format(entity.CreatedAtLayout),
		Intent:         *intent,
		Title:          draft.Title,
		Subtitle:       draft.Subtitle,
		Dedication:     draft.Dedication,
		Moral:          draft.Moral,
		AestheticNotes: draft.AestheticNotes,
		Status:         entity.BookStatusPendingImages,
		Pages:          pages,
	}
	ctx = logger.WithContext(ctx, logger.BookIDKey, book.ID)
	span.SetAttributes(attribute.String("book.id", book.ID))

	progress := base
	progress.Status = entity.BookStatusPendingImages
	progress.Message = "Story outline generated. Starting illustration renders..."
	onProgress(progress)

	illustrationBook := &storymodel.IllustrationBook{
		Title:          book.Title,
		Moral:          book.Moral,
		AestheticNotes: book.AestheticNotes,
		Intent:         book.Intent,
	}

	window := &continuityWindow{}
	for i := range book.Pages {
		page := &book.Pages[i]
		if err := o.renderPage(ctx, book.ID, illustrationBook, page, window); err != nil {
			page.ImageURL = ""
			msg := err.Error()
			failed := base
			failed.Status = entity.BookStatusErrored
			failed.Message = fmt.Sprintf("Failed to render page %d: %s", page.PageNumber, msg)
			failed.CompletedPages = page.PageNumber - 1
			failed.Errors = []string{msg}
			onProgress(failed)
			return nil, err
		}

		rendered := base
		rendered.Status = entity.BookStatusPendingImages
		rendered.Message = fmt.Sprintf("Rendered page %d", page.PageNumber)
		rendered.CompletedPages = page.PageNumber
		onProgress(rendered)

		window.pushSummary(page.Summary())
	}

	book.Status = entity.BookStatusCompleted
	if err := o.books.SaveBook(ctx, book); err != nil {
		logger.Error(ctx, "failed to save completed book", err)
		return nil, err
	}

	final := base
	final.Status = entity.BookStatusCompleted
	final.Message = "Storybook is ready!"
	final.BookID = book.ID
	final.CompletedPages = len(book.Pages)
	onProgress(final)

	logger.Info(ctx, "storybook generated", "pages", len(book.Pages))
	return &entity.GenerationResult{Book: book, Progress: final}, nil
}

// normalizePages 按页码排序后重编号为 1..N，并截断到意图页数
// 页数不足时返回解析错误，不修改草稿本身
func normalizePages(draft *storymodel.StoryDraft, pageCount int) ([]entity.StoryPage, error) {
	pages := make([]entity.StoryPage, len(draft.Pages))
	copy(pages, draft.Pages)
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].PageNumber < pages[j].PageNumber
	})
	for i := range pages {
		pages[i].PageNumber = i + 1
	}

	if pageCount <= 0 {
		return pages, nil
	}
	if len(pages) < pageCount {
		payload, _ := json.Marshal(draft)
		return nil, NewParseError(fmt.Sprintf("expected %d pages, received %d", pageCount, len(pages)), string(payload))
	}
	return pages[:pageCount], nil
}

// renderPage 渲染单页插图并更新连续性窗口
func (o *Orchestrator) renderPage(
	ctx context.Context,
	bookID string,
	book *storymodel.IllustrationBook,
	page *entity.StoryPage,
	window *continuityWindow,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "story.RenderPage")
	defer span.End()
	span.SetAttributes(attribute.Int("page.number", page.PageNumber))

	start := time.Now()
	opts := window.options(fmt.Sprintf("%s-%d", bookID, page.PageNumber))
	image, err := o.images.Generate(ctx, book, page, opts)
	metrics.PageRenderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PageRendersTotal.WithLabelValues("error").Inc()
		tracer.RecordError(span, err)
		logger.Error(ctx, "page render failed", err, "page", page.PageNumber)
		return err
	}

	if !strings.HasPrefix(image, "data:image") {
		metrics.PageRendersTotal.WithLabelValues("placeholder").Inc()
		page.ImageURL = image
		window.resetFrames()
		return nil
	}

	metrics.PageRendersTotal.WithLabelValues("image").Inc()
	page.ImageURL = image
	stored, err := o.pageImages.PersistPageImage(ctx, bookID, page.PageNumber, image)
	switch {
	case err != nil:
		metrics.PageImagePersistTotal.WithLabelValues("failed").Inc()
		logger.Warn(ctx, "failed to persist page image, keeping inline data", "page", page.PageNumber, "error", err.Error())
	case stored != nil:
		metrics.PageImagePersistTotal.WithLabelValues("stored").Inc()
		page.ImageURL = stored.ReferencePath
	}
	window.pushFrame(image)
	return nil
}
