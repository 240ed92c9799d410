package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/socialicon/internal/docstore/memory"
	"github.com/anonto42/socialicon/internal/models"
)

func TestToggleFollow(t *testing.T) {
	store := memory.New()
	alice := seedUser(t, store, "u1", "alice")
	seedUser(t, store, "u2", "bob")
	repo := NewFollowRepository(store, NewNotificationRepository(store))
	ctx := context.Background()

	following, err := repo.ToggleFollow(ctx, alice, "u2")
	require.NoError(t, err)
	assert.True(t, following)
	assert.EqualValues(t, 1, getUser(t, store, "u1").FollowingCount)
	assert.EqualValues(t, 1, getUser(t, store, "u2").FollowersCount)

	ids, err := repo.GetFollowingIDs(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, ids)
	ids, err = repo.GetFollowerIDs(ctx, "u2", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, ids)

	ns := notificationsFor(t, store, "u2")
	require.Len(t, ns, 1)
	assert.Equal(t, models.NotificationFollow, ns[0].Type)

	following, err = repo.ToggleFollow(ctx, alice, "u2")
	require.NoError(t, err)
	assert.False(t, following)
	assert.EqualValues(t, 0, getUser(t, store, "u1").FollowingCount)
	assert.EqualValues(t, 0, getUser(t, store, "u2").FollowersCount)

	is, err := repo.IsFollowing(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, is)
}

func TestCannotFollowOrBlockSelf(t *testing.T) {
	store := memory.New()
	alice := seedUser(t, store, "u1", "alice")
	repo := NewFollowRepository(store, nil)

	_, err := repo.ToggleFollow(context.Background(), alice, "u1")
	assert.ErrorIs(t, err, ErrSelfAction)
	_, err = repo.ToggleBlock(context.Background(), "u1", "u1")
	assert.ErrorIs(t, err, ErrSelfAction)
}

func TestToggleBlock(t *testing.T) {
	store := memory.New()
	repo := NewFollowRepository(store, nil)
	ctx := context.Background()

	blocked, err := repo.ToggleBlock(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, blocked)

	is, err := repo.IsBlocked(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, is)
	is, err = repo.IsBlocked(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.False(t, is)

	blocked, err = repo.ToggleBlock(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, blocked)
}
