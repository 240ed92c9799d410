package blob

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "posts/u1/1700000000123_cat.png", PostMediaPath("u1", "cat.png", at))
	assert.Equal(t, "chats/c1/1700000000123_my_clip.mp4", ChatMediaPath("c1", "my clip.mp4", at))
	assert.Equal(t, "avatars/u1/1700000000123_me.jpg", AvatarPath("u1", "../../me.jpg", at))
	assert.Equal(t, "covers/u1/1700000000123_upload", CoverPath("u1", "", at))
}

func TestDownloadURLEscapesPath(t *testing.T) {
	assert.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/app.appspot.com/o/posts%2Fu1%2F1_a.png?alt=media",
		DownloadURL("app.appspot.com", "posts/u1/1_a.png"))
}

func TestMemoryPut(t *testing.T) {
	m := NewMemory()
	url, err := m.Put(context.Background(), "posts/u1/1_a.png", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "memory://posts/u1/1_a.png", url)

	obj, ok := m.Get("posts/u1/1_a.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, []byte("png"), obj.Data)
}
