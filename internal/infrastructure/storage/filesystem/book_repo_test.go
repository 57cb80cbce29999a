package filesystem

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storybook-studio/internal/domain/entity"
	"storybook-studio/internal/domain/service"
)

func sampleBook(id, title, createdAt string) *entity.GeneratedBook {
	return &entity.GeneratedBook{
		ID:        id,
		CreatedAt: createdAt,
		Intent: entity.StoryIntent{
			Audience:      entity.AudienceChild,
			Theme:         "Starlit forest",
			Lesson:        "kindness",
			AgeRange:      "Ages 3-5",
			Tone:          entity.ToneGentle,
			PageCount:     8,
			StyleKeywords: []string{"pastel"},
			Characters:    []entity.CharacterInput{},
		},
		Title:  title,
		Status: entity.BookStatusCompleted,
		Pages: []entity.StoryPage{
			{PageNumber: 1, Headline: "One", KeyMoments: []string{"a"}, ImageURL: "/api/books/" + id + "/pages/1/image"},
			{PageNumber: 2, Headline: "Two", KeyMoments: []string{"b"}, ImageURL: "https://placehold.co/768x1024/1b1b3a/eeeeff?text=Page%202"},
		},
	}
}

func TestBookRepository_SaveAndFind(t *testing.T) {
	dir := t.TempDir()
	repo := NewBookRepository(dir, 2)
	ctx := context.Background()

	book := sampleBook("id-1", "Starlit Forest", "2025-01-01T00:00:00.000Z")
	require.NoError(t, repo.SaveBook(ctx, book))

	path := filepath.Join(dir, "books", "starlit-forest-id-1.json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "{\n  \"id\": \"id-1\""))

	found, err := repo.FindBook(ctx, "id-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Starlit Forest", found.Title)
	assert.Equal(t, "/api/books/id-1/pages/1/image", found.Pages[0].ImageURL)
	assert.Contains(t, found.Pages[1].ImageURL, "eeeeff.png?")
	assert.Contains(t, found.Pages[1].ImageURL, "format=png")
	// 调用方持有的对象不被修改
	assert.Equal(t, "https://placehold.co/768x1024/1b1b3a/eeeeff?text=Page%202", book.Pages[1].ImageURL)
}

func TestBookRepository_SaveRemovesStaleFiles(t *testing.T) {
	dir := t.TempDir()
	repo := NewBookRepository(dir, 0)
	ctx := context.Background()

	require.NoError(t, repo.SaveBook(ctx, sampleBook("id-1", "Old Title", "2025-01-01T00:00:00.000Z")))
	require.NoError(t, repo.SaveBook(ctx, sampleBook("id-1", "New Title", "2025-01-01T00:00:00.000Z")))

	entries, err := os.ReadDir(filepath.Join(dir, "books"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new-title-id-1.json", entries[0].Name())
}

func TestBookRepository_FindMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	repo := NewBookRepository(dir, 0)
	ctx := context.Background()

	found, err := repo.FindBook(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, found)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "books"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "books", "broken-bad.json"), []byte("{"), 0o644))
	found, err = repo.FindBook(ctx, "bad")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestBookRepository_ListSortedNewestFirst(t *testing.T) {
	dir := t.TempDir()
	repo := NewBookRepository(dir, 2)
	ctx := context.Background()

	require.NoError(t, repo.SaveBook(ctx, sampleBook("a", "Alpha", "2025-01-01T00:00:00.000Z")))
	require.NoError(t, repo.SaveBook(ctx, sampleBook("b", "Beta", "2025-03-01T00:00:00.000Z")))
	require.NoError(t, repo.SaveBook(ctx, sampleBook("c", "Gamma", "2025-02-01T00:00:00.000Z")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "books", "junk-x.json"), []byte("not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "books", "notes.txt"), []byte("skip"), 0o644))

	books, err := repo.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{books[0].ID, books[1].ID, books[2].ID})
}

func TestBookRepository_Delete(t *testing.T) {
	dir := t.TempDir()
	repo := NewBookRepository(dir, 0)
	ctx := context.Background()

	require.NoError(t, repo.SaveBook(ctx, sampleBook("id-1", "Title", "2025-01-01T00:00:00.000Z")))
	require.NoError(t, repo.DeleteBook(ctx, "id-1"))
	require.NoError(t, repo.DeleteBook(ctx, "id-1"))

	found, err := repo.FindBook(ctx, "id-1")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestBookRepository_PartialIDDoesNotMatchOtherBook(t *testing.T) {
	dir := t.TempDir()
	repo := NewBookRepository(dir, 0)
	ctx := context.Background()

	fullID := "3f2b1c4e-aaaa-bbbb-cccc-0123456789ab"
	require.NoError(t, repo.SaveBook(ctx, sampleBook(fullID, "Starlit Forest", "2025-01-01T00:00:00.000Z")))
	original := filepath.Join(dir, "books", "starlit-forest-"+fullID+".json")

	found, err := repo.FindBook(ctx, "0123456789ab")
	require.NoError(t, err)
	assert.Nil(t, found)

	require.NoError(t, repo.DeleteBook(ctx, "cccc-0123456789ab"))
	assert.FileExists(t, original)

	// 以短 id 保存的绘本也不能清理掉长 id 的文件
	require.NoError(t, repo.SaveBook(ctx, sampleBook("0123456789ab", "Other Tale", "2025-01-02T00:00:00.000Z")))
	assert.FileExists(t, original)

	found, err = repo.FindBook(ctx, fullID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Starlit Forest", found.Title)

	found, err = repo.FindBook(ctx, "0123456789ab")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Other Tale", found.Title)
}

func TestBookRepository_Writable(t *testing.T) {
	repo := NewBookRepository(t.TempDir(), 0)
	assert.NoError(t, repo.Writable())
}

func TestNormalizeBookImages_Unchanged(t *testing.T) {
	book := sampleBook("id-1", "Title", "")
	book.Pages = book.Pages[:1]
	assert.Same(t, book, service.NormalizeBookImages(book))

	raw, err := json.Marshal(service.NormalizeBookImages(book))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"imageUrl":"/api/books/id-1/pages/1/image"`)
}
