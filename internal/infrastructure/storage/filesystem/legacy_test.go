package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateLegacyBooks_Missing(t *testing.T) {
	res, err := MigrateLegacyBooks(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestMigrateLegacyBooks_SplitsAndBacksUp(t *testing.T) {
	dir := t.TempDir()
	booksDir := filepath.Join(dir, "books")
	require.NoError(t, os.MkdirAll(booksDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(booksDir, "b1.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(booksDir, "old-slug-b1.json"), []byte("{}"), 0o644))

	legacy := `[{"id":"b1","title":"Moon Walk","pages":[]},{"title":"No Id"},null,{"id":"b2","title":""}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "books.json"), []byte(legacy), 0o644))

	res, err := MigrateLegacyBooks(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Migrated, 2)

	entries, err := os.ReadDir(booksDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"moon-walk-b1.json", "story-b2.json"}, names)

	raw, err := os.ReadFile(filepath.Join(booksDir, "moon-walk-b1.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"id\": \"b1\",\n  \"title\": \"Moon Walk\",\n  \"pages\": []\n}", string(raw))

	_, err = os.Stat(filepath.Join(dir, "books.json.bak"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "books.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestMigrateLegacyBooks_RejectsNonArray(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "books.json"), []byte(`{"id":"x"}`), 0o644))
	_, err := MigrateLegacyBooks(context.Background(), dir)
	assert.ErrorIs(t, err, errLegacyNotArray)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "books.json"), []byte(`[`), 0o644))
	_, err = MigrateLegacyBooks(context.Background(), dir)
	assert.Error(t, err)
}
