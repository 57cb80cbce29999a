package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storybook-studio/internal/config"
	"storybook-studio/internal/domain/entity"
)

func TestRecordRoundTrip(t *testing.T) {
	book := &entity.GeneratedBook{
		ID:        "b1",
		CreatedAt: "2025-02-03T04:05:06.789Z",
		Title:     "Moon Walk",
		Status:    entity.BookStatusCompleted,
		Intent:    entity.StoryIntent{Theme: "Moon", StyleKeywords: []string{"pastel", "felt"}},
		Pages:     []entity.StoryPage{{PageNumber: 1, Headline: "One", KeyMoments: []string{"a"}}},
	}

	rec, err := toRecord(book)
	require.NoError(t, err)
	assert.Equal(t, "b1", rec.ID)
	assert.Equal(t, "Moon", rec.Theme)
	assert.Equal(t, "completed", rec.Status)
	assert.Equal(t, []string{"pastel", "felt"}, []string(rec.StyleKeywords))
	assert.Equal(t, time.Date(2025, 2, 3, 4, 5, 6, 789000000, time.UTC), rec.CreatedAt.UTC())

	back, err := fromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, book, back)
}

func TestFromRecord_BadPayload(t *testing.T) {
	_, err := fromRecord(&storybookRecord{Payload: []byte("{")})
	assert.Error(t, err)
}

func TestTableNameAndDSN(t *testing.T) {
	assert.Equal(t, "storybooks", storybookRecord{}.TableName())
	dsn := DSN(&config.PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "books", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=books sslmode=disable", dsn)
}
