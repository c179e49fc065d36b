package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("exp-1", "rosters/2024-06-03.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	id, path, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "exp-1", id)
	assert.Equal(t, "rosters/2024-06-03.csv", path)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("exp-1", "rosters/file.csv")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, _, err = signer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignedURLSignerRejectsOtherSecret(t *testing.T) {
	token, _, err := NewSignedURLSigner("secret", time.Hour).Generate("exp-1", "rosters/file.csv")
	require.NoError(t, err)

	_, _, err = NewSignedURLSigner("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignedURLSignerRequiresInputs(t *testing.T) {
	_, _, err := NewSignedURLSigner("secret", time.Hour).Generate("", "x.csv")
	assert.Error(t, err)
	_, _, err = NewSignedURLSigner("", time.Hour).Generate("id", "x.csv")
	assert.Error(t, err)
}
