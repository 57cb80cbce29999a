package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_HTTPStatusByCode(t *testing.T) {
	cases := map[ErrorCode]int{
		CodeInvalidParam:     http.StatusBadRequest,
		CodeBookNotFound:     http.StatusNotFound,
		CodeStoryParseFailed: http.StatusBadGateway,
		CodeGenerationFailed: http.StatusBadGateway,
		CodeStorageError:     http.StatusInternalServerError,
		CodeTooManyRequests:  http.StatusTooManyRequests,
	}
	for code, status := range cases {
		assert.Equal(t, status, New(code, "x").HTTPStatus, "code %s", code)
	}
}

func TestAppError_MessageAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, CodeStorageError, "failed to save book")

	assert.Equal(t, "failed to save book: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "boom", New(CodeUnknown, "boom").Error())
}

func TestAsAppError_FindsWrappedError(t *testing.T) {
	inner := New(CodeStoryParseFailed, "Story JSON parsing failed")
	wrapped := fmt.Errorf("generate: %w", inner)

	require.True(t, IsAppError(wrapped))
	assert.True(t, IsCode(wrapped, CodeStoryParseFailed))
	assert.Same(t, inner, AsAppError(wrapped))

	plain := AsAppError(fmt.Errorf("plain"))
	assert.Equal(t, CodeUnknown, plain.Code)
}
