package repositories

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/socialicon/internal/blob"
	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/docstore/memory"
	"github.com/anonto42/socialicon/internal/models"
)

func openChat(t *testing.T, store docstore.Store, blobs blob.Store) (*DocstoreChatRepository, *models.Chat) {
	t.Helper()
	seedUser(t, store, "u1", "alice")
	seedUser(t, store, "u2", "bob")
	repo := NewChatRepository(store, blobs)
	chat, err := repo.FindOrCreateChat(context.Background(), "u1", "u2")
	require.NoError(t, err)
	return repo, chat
}

func messageStatuses(t *testing.T, store docstore.Store, chatID string) map[string]models.MessageStatus {
	t.Helper()
	page, err := store.Query(context.Background(), docstore.NewQuery(models.CollectionMessages).Filter("chatId", docstore.OpEqual, chatID))
	require.NoError(t, err)
	out := make(map[string]models.MessageStatus)
	for _, d := range page.Docs {
		m, err := docstore.DecodeAs[models.Message](d)
		require.NoError(t, err)
		out[m.ID] = m.Status
	}
	return out
}

func TestFindOrCreateChatIsIdempotent(t *testing.T) {
	store := memory.New()
	repo, chat := openChat(t, store, nil)
	assert.Equal(t, ChatID("u2", "u1"), chat.ID)

	again, err := repo.FindOrCreateChat(context.Background(), "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, chat.ID, again.ID)

	_, err = repo.FindOrCreateChat(context.Background(), "u1", "u1")
	assert.ErrorIs(t, err, ErrSelfAction)
	_, err = repo.FindOrCreateChat(context.Background(), "u1", "ghost")
	assert.True(t, docstore.IsNotFound(err))
}

func TestGetChatRequiresParticipant(t *testing.T) {
	store := memory.New()
	repo, chat := openChat(t, store, nil)
	_, err := repo.GetChat(context.Background(), "u3", chat.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSendMessageUpdatesChat(t *testing.T) {
	store := memory.New()
	repo, chat := openChat(t, store, nil)
	ctx := context.Background()

	require.NoError(t, repo.SetTyping(ctx, "u1", chat.ID, true))
	msg, err := repo.SendMessage(ctx, "u1", chat.ID, " hey ", nil)
	require.NoError(t, err)
	assert.Equal(t, "hey", msg.Content)
	assert.Equal(t, models.MessageSent, msg.Status)
	_, err = repo.SendMessage(ctx, "u1", chat.ID, "you there?", nil)
	require.NoError(t, err)

	got, err := repo.GetChat(ctx, "u2", chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "you there?", got.LastMessage)
	assert.EqualValues(t, 2, got.UnreadCount["u2"])
	assert.EqualValues(t, 0, got.UnreadCount["u1"])
	assert.False(t, got.TypingStatus["u1"])

	_, err = repo.SendMessage(ctx, "u1", chat.ID, "  ", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSendMediaMessage(t *testing.T) {
	store := memory.New()
	blobs := blob.NewMemory()
	repo, chat := openChat(t, store, blobs)

	msg, err := repo.SendMessage(context.Background(), "u2", chat.ID, "", &Attachment{
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
		Data:        []byte("frames"),
	})
	require.NoError(t, err)
	assert.Equal(t, "video", msg.MediaType)
	assert.NotEmpty(t, msg.MediaURL)

	got, err := repo.GetChat(context.Background(), "u1", chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sent a video", got.LastMessage)
	assert.EqualValues(t, 1, got.UnreadCount["u1"])
}

func TestMarkDeliveredThenRead(t *testing.T) {
	store := memory.New()
	repo, chat := openChat(t, store, nil)
	ctx := context.Background()

	in1, err := repo.SendMessage(ctx, "u2", chat.ID, "one", nil)
	require.NoError(t, err)
	in2, err := repo.SendMessage(ctx, "u2", chat.ID, "two", nil)
	require.NoError(t, err)
	out, err := repo.SendMessage(ctx, "u1", chat.ID, "mine", nil)
	require.NoError(t, err)

	n, err := repo.MarkDelivered(ctx, "u1", chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	statuses := messageStatuses(t, store, chat.ID)
	assert.Equal(t, models.MessageDelivered, statuses[in1.ID])
	assert.Equal(t, models.MessageSent, statuses[out.ID])

	n, err = repo.MarkRead(ctx, "u1", chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	statuses = messageStatuses(t, store, chat.ID)
	assert.Equal(t, models.MessageRead, statuses[in1.ID])
	assert.Equal(t, models.MessageRead, statuses[in2.ID])
	assert.Equal(t, models.MessageSent, statuses[out.ID])

	got, err := repo.GetChat(ctx, "u1", chat.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.UnreadCount["u1"])
	assert.EqualValues(t, 1, got.UnreadCount["u2"])

	n, err = repo.MarkRead(ctx, "u1", chat.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// interleavingStore runs before once, ahead of the first batch.
type interleavingStore struct {
	docstore.Store
	once   sync.Once
	before func()
}

func (s *interleavingStore) Batch(ctx context.Context, mutations []docstore.Mutation) error {
	s.once.Do(s.before)
	return s.Store.Batch(ctx, mutations)
}

func TestMarkReadKeepsCountOfMessageArrivingMidway(t *testing.T) {
	store := memory.New()
	repo, chat := openChat(t, store, nil)
	ctx := context.Background()
	for _, text := range []string{"one", "two"} {
		_, err := repo.SendMessage(ctx, "u2", chat.ID, text, nil)
		require.NoError(t, err)
	}

	var late *models.Message
	reader := NewChatRepository(&interleavingStore{Store: store, before: func() {
		var err error
		late, err = repo.SendMessage(ctx, "u2", chat.ID, "three", nil)
		require.NoError(t, err)
	}}, nil)

	n, err := reader.MarkRead(ctx, "u1", chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NotNil(t, late)
	assert.Equal(t, models.MessageSent, messageStatuses(t, store, chat.ID)[late.ID])

	got, err := repo.GetChat(ctx, "u1", chat.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.UnreadCount["u1"])
}

func TestConcurrentMarkReadCountsEachMessageOnce(t *testing.T) {
	store := memory.New()
	repo, chat := openChat(t, store, nil)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := repo.SendMessage(ctx, "u2", chat.ID, "hi", nil)
		require.NoError(t, err)
	}

	var mu sync.Mutex
	total := 0
	race(func() {
		n, err := repo.MarkRead(ctx, "u1", chat.ID)
		assert.NoError(t, err)
		mu.Lock()
		total += n
		mu.Unlock()
	})
	assert.Equal(t, 10, total)

	got, err := repo.GetChat(ctx, "u1", chat.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, got.UnreadCount["u1"])
}
