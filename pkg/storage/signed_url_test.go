package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("media-1", "videos/1700-lesson.mp4")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	parsed, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "media-1", parsed.ResourceID)
	require.Equal(t, "videos/1700-lesson.mp4", parsed.Path)
	require.WithinDuration(t, expiresAt, parsed.ExpiresAt, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("job-1", "reports/file.csv")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = signer.Parse(token, false)
	require.Error(t, err)

	parsed, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "job-1", parsed.ResourceID)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("media-1", "videos/a.mp4")
	require.NoError(t, err)

	_, err = signer.Parse(strings.Replace(token, "media-1", "media-2", 1), false)
	require.Error(t, err)

	_, err = NewSignedURLSigner("other", time.Hour).Parse(token, false)
	require.Error(t, err)

	_, _, err = NewSignedURLSigner("", time.Hour).Generate("media-1", "a")
	require.Error(t, err)
}
