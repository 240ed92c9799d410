package snapshotcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/socialicon/internal/models"
)

func openMemory(t *testing.T) *Cache {
	t.Helper()
	c, err := Open("sqlite://:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := openMemory(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	posts := []models.Post{
		{ID: "p2", AuthorID: "a", Content: "second", Tags: []string{"go"}, CreatedAt: at},
		{ID: "p1", AuthorID: "b", Content: "first", LikesCount: 4, CreatedAt: at.Add(-time.Hour)},
	}
	require.NoError(t, c.Save(ctx, "feed:u1", posts))

	got, err := c.Load(ctx, "feed:u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[0].ID)
	assert.Equal(t, []string{"go"}, got[0].Tags)
	assert.EqualValues(t, 4, got[1].LikesCount)
	assert.True(t, at.Equal(got[0].CreatedAt))
}

func TestSaveReplacesSnapshot(t *testing.T) {
	c := openMemory(t)
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, "feed:u1", []models.Post{{ID: "old"}}))
	require.NoError(t, c.Save(ctx, "feed:u1", []models.Post{{ID: "new"}}))

	got, err := c.Load(ctx, "feed:u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
}

func TestLoadMissingKey(t *testing.T) {
	got, err := openMemory(t).Load(context.Background(), "feed:nobody")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open("mysql://localhost")
	assert.Error(t, err)
}
