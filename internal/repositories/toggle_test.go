package repositories

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/docstore/memory"
	"github.com/anonto42/socialicon/internal/models"
)

// race releases two goroutines together and waits for both.
func race(fn func()) {
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			fn()
		}()
	}
	close(start)
	wg.Wait()
}

func countRelations(t *testing.T, store docstore.Store, collection, field, value string) int {
	t.Helper()
	page, err := store.Query(context.Background(), docstore.NewQuery(collection).Filter(field, docstore.OpEqual, value))
	require.NoError(t, err)
	return len(page.Docs)
}

func TestSameUserConcurrentLikeTogglesKeepCounterInStep(t *testing.T) {
	store := memory.New()
	alice := seedUser(t, store, "u1", "alice")
	bob := seedUser(t, store, "u2", "bob")
	post := seedPost(t, store, alice)
	repo := NewLikeRepository(store, nil)
	posts := NewPostRepository(store)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		race(func() {
			_, err := repo.ToggleLike(ctx, bob, post.ID)
			assert.NoError(t, err)
		})
		stored, err := posts.GetPostByID(ctx, post.ID)
		require.NoError(t, err)
		records := countRelations(t, store, models.CollectionLikes, "postId", post.ID)
		require.GreaterOrEqual(t, stored.LikesCount, int64(0))
		require.EqualValues(t, records, stored.LikesCount, "round %d", i)
		require.EqualValues(t, records, getUser(t, store, "u1").LikesReceived, "round %d", i)
	}
}

func TestSameUserConcurrentFollowTogglesKeepCountersInStep(t *testing.T) {
	store := memory.New()
	alice := seedUser(t, store, "u1", "alice")
	seedUser(t, store, "u2", "bob")
	repo := NewFollowRepository(store, nil)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		race(func() {
			_, err := repo.ToggleFollow(ctx, alice, "u2")
			assert.NoError(t, err)
		})
		records := countRelations(t, store, models.CollectionFollows, "followerId", "u1")
		require.EqualValues(t, records, getUser(t, store, "u1").FollowingCount, "round %d", i)
		require.EqualValues(t, records, getUser(t, store, "u2").FollowersCount, "round %d", i)
	}
}

func TestToggleSaveRemovesBookmarkOfDeletedPost(t *testing.T) {
	store := memory.New()
	alice := seedUser(t, store, "u1", "alice")
	post := seedPost(t, store, alice)
	repo := NewSavedPostRepository(store)
	ctx := context.Background()

	saved, err := repo.ToggleSave(ctx, "u2", post.ID)
	require.NoError(t, err)
	require.True(t, saved)
	require.NoError(t, store.Delete(ctx, models.CollectionPosts, post.ID))

	saved, err = repo.ToggleSave(ctx, "u2", post.ID)
	require.NoError(t, err)
	assert.False(t, saved)

	_, err = repo.ToggleSave(ctx, "u2", post.ID)
	assert.True(t, docstore.IsNotFound(err))
}
