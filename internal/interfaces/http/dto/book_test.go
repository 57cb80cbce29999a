package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntentPayload(t *testing.T) {
	assert.Equal(t, `{"theme":"moon"}`, string(IntentPayload([]byte(`{"intent":{"theme":"moon"}}`))))
	assert.Equal(t, `{"theme":"moon"}`, string(IntentPayload([]byte(`{"theme":"moon"}`))))
	assert.Equal(t, `{"intent":null,"theme":"x"}`, string(IntentPayload([]byte(`{"intent":null,"theme":"x"}`))))
	assert.Equal(t, `[1]`, string(IntentPayload([]byte(`[1]`))))
}
