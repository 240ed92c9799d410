package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/docstore/memory"
	"github.com/anonto42/socialicon/internal/models"
)

func seedUser(t *testing.T, store docstore.Store, id, username string) Actor {
	t.Helper()
	profile, err := NewUserRepository(store).CreateProfile(context.Background(), id, models.CreateProfileRequest{
		Username:    username,
		DisplayName: username,
	}, "")
	require.NoError(t, err)
	return ActorFromProfile(profile)
}

func getUser(t *testing.T, store docstore.Store, id string) *models.UserProfile {
	t.Helper()
	u, err := NewUserRepository(store).GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func TestCreateProfileLowercasesAndRejectsTakenUsername(t *testing.T) {
	store := memory.New()
	repo := NewUserRepository(store)
	ctx := context.Background()

	p, err := repo.CreateProfile(ctx, "u1", models.CreateProfileRequest{Username: "Alice"}, "")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, models.RoleUser, p.Role)

	_, err = repo.CreateProfile(ctx, "u2", models.CreateProfileRequest{Username: "ALICE"}, "")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = repo.CreateProfile(ctx, "u1", models.CreateProfileRequest{Username: "other"}, "")
	assert.ErrorIs(t, err, ErrProfileExists)
}

func TestGetUserByUsernameNotFound(t *testing.T) {
	_, err := NewUserRepository(memory.New()).GetUserByUsername(context.Background(), "ghost")
	assert.True(t, docstore.IsNotFound(err))
}

func TestSearchUsersByPrefix(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "u1", "alice")
	seedUser(t, store, "u2", "alina")
	seedUser(t, store, "u3", "bob")

	found, err := NewUserRepository(store).SearchUsers(context.Background(), "@Ali")
	require.NoError(t, err)
	var names []string
	for _, u := range found {
		names = append(names, u.Username)
	}
	assert.ElementsMatch(t, []string{"alice", "alina"}, names)

	found, err = NewUserRepository(store).SearchUsers(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestUpdateProfileAndPresence(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "u1", "alice")
	repo := NewUserRepository(store)
	ctx := context.Background()

	require.NoError(t, repo.UpdateProfile(ctx, "u1", models.UpdateProfileRequest{Bio: "hello"}))
	require.NoError(t, repo.SetImage(ctx, "u1", ImageCover, "https://cdn/cover.png"))
	require.NoError(t, repo.SetPresence(ctx, "u1", false))

	u := getUser(t, store, "u1")
	assert.Equal(t, "hello", u.Bio)
	assert.Equal(t, "alice", u.DisplayName)
	assert.Equal(t, "https://cdn/cover.png", u.CoverURL)
	assert.False(t, u.IsOnline)
}
