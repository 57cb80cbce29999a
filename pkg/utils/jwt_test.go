package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionSigner_RoundTrip(t *testing.T) {
	signer := NewSessionSigner("s3cret", "storybook-studio")

	token, err := signer.Sign(time.Hour)
	require.NoError(t, err)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "studio", claims.Scope)
}

func TestSessionSigner_RejectsForeignSecret(t *testing.T) {
	token, err := NewSessionSigner("one", "storybook-studio").Sign(time.Hour)
	require.NoError(t, err)

	_, err = NewSessionSigner("two", "storybook-studio").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionSigner_Expired(t *testing.T) {
	signer := NewSessionSigner("s3cret", "storybook-studio")
	token, err := signer.Sign(-time.Minute)
	require.NoError(t, err)

	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestSessionSigner_Garbage(t *testing.T) {
	_, err := NewSessionSigner("s3cret", "x").Verify("granted")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
