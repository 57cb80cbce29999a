package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "storybook-studio/pkg/errors"
)

func TestPageImageRepository_Persist(t *testing.T) {
	dir := t.TempDir()
	repo := NewPageImageRepository(dir)
	ctx := context.Background()

	stored, err := repo.PersistPageImage(ctx, "book-1", 3, "data:image/jpeg;base64,aGVsbG8=")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, filepath.Join(dir, "book-images", "book-1", "page-03.jpg"), stored.FilePath)
	assert.Equal(t, "/api/books/book-1/pages/3/image", stored.ReferencePath)
	assert.Equal(t, "image/jpeg", stored.MIMEType)

	data, err := os.ReadFile(stored.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestPageImageRepository_ReplacesOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	repo := NewPageImageRepository(dir)
	ctx := context.Background()

	_, err := repo.PersistPageImage(ctx, "book-1", 1, "data:image/jpeg;base64,YQ==")
	require.NoError(t, err)
	_, err = repo.PersistPageImage(ctx, "book-1", 2, "data:image/png;base64,Yg==")
	require.NoError(t, err)
	stored, err := repo.PersistPageImage(ctx, "book-1", 1, "data:image/gif;base64,Yw==")
	require.NoError(t, err)
	assert.Equal(t, "page-01.png", filepath.Base(stored.FilePath))

	entries, err := os.ReadDir(filepath.Join(dir, "book-images", "book-1"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"page-01.png", "page-02.png"}, names)
}

func TestPageImageRepository_NonDataURL(t *testing.T) {
	repo := NewPageImageRepository(t.TempDir())
	stored, err := repo.PersistPageImage(context.Background(), "book-1", 1, "https://placehold.co/x.png")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestPageImageRepository_UnsupportedDataURL(t *testing.T) {
	repo := NewPageImageRepository(t.TempDir())
	_, err := repo.PersistPageImage(context.Background(), "book-1", 1, "data:image/png,raw")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeStorageError))
	assert.Contains(t, err.Error(), "unsupported data URL format")
}

func TestPageImageRepository_FindAndDelete(t *testing.T) {
	dir := t.TempDir()
	repo := NewPageImageRepository(dir)
	ctx := context.Background()

	found, err := repo.FindPageImage(ctx, "book-1", 1)
	require.NoError(t, err)
	assert.Nil(t, found)

	_, err = repo.PersistPageImage(ctx, "book-1", 12, "data:image/webp;base64,YQ==")
	require.NoError(t, err)

	found, err = repo.FindPageImage(ctx, "book-1", 12)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "image/webp", found.MIMEType)

	found, err = repo.FindPageImage(ctx, "book-1", 1)
	require.NoError(t, err)
	assert.Nil(t, found)

	require.NoError(t, repo.DeleteBookImages(ctx, "book-1"))
	_, err = os.Stat(filepath.Join(dir, "book-images", "book-1"))
	assert.True(t, os.IsNotExist(err))
}

func TestMIMETypeForFile(t *testing.T) {
	assert.Equal(t, "image/jpeg", MIMETypeForFile("page-01.JPG"))
	assert.Equal(t, "image/png", MIMETypeForFile("page-01.bmp"))
}

func TestPageImageRepository_RejectsEscapingIDs(t *testing.T) {
	dir := t.TempDir()
	repo := NewPageImageRepository(dir)
	ctx := context.Background()

	sentinel := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(sentinel, []byte("x"), 0o644))

	for _, id := range []string{"..", ".", "a/b", `a\b`} {
		require.NoError(t, repo.DeleteBookImages(ctx, id))
		stored, err := repo.FindPageImage(ctx, id, 1)
		require.NoError(t, err)
		assert.Nil(t, stored)
		_, err = repo.PersistPageImage(ctx, id, 1, "data:image/png;base64,YQ==")
		assert.Error(t, err, id)
	}

	_, err := os.Stat(sentinel)
	assert.NoError(t, err)
}
