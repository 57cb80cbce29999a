package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_AttachesKeys(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", "json")
	t.Cleanup(func() { Init("info", "json") })

	ctx := WithContext(context.Background(), RequestIDKey, "req-1")
	ctx = WithContext(ctx, BookIDKey, "book-9")
	Error(ctx, "book save failed", errors.New("disk full"), "page", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "book save failed", entry["msg"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "book-9", entry["book_id"])
	assert.Equal(t, "disk full", entry["error"])
	assert.EqualValues(t, 3, entry["page"])
}

func TestInitWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "warn", "text")
	t.Cleanup(func() { Init("info", "json") })

	Info(context.Background(), "quiet")
	assert.Empty(t, buf.String())

	Warn(context.Background(), "loud")
	assert.Contains(t, buf.String(), "loud")
}
