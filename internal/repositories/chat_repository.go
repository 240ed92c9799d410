package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anonto42/socialicon/internal/blob"
	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
)

// Attachment is an uploaded media file sent along with a message
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ChatRepository defines the interface for chat and message operations
type ChatRepository interface {
	FindOrCreateChat(ctx context.Context, viewerID, partnerID string) (*models.Chat, error)
	GetChat(ctx context.Context, viewerID, chatID string) (*models.Chat, error)
	SendMessage(ctx context.Context, viewerID, chatID, content string, media *Attachment) (*models.Message, error)
	MarkRead(ctx context.Context, viewerID, chatID string) (int, error)
	MarkDelivered(ctx context.Context, viewerID, chatID string) (int, error)
	SetTyping(ctx context.Context, viewerID, chatID string, typing bool) error
}

// DocstoreChatRepository implements ChatRepository on the document store
type DocstoreChatRepository struct {
	store docstore.Store
	blobs blob.Store
	now   func() time.Time
}

// NewChatRepository creates a new DocstoreChatRepository. blobs may be nil
// when media messages are not supported.
func NewChatRepository(store docstore.Store, blobs blob.Store) *DocstoreChatRepository {
	return &DocstoreChatRepository{store: store, blobs: blobs, now: time.Now}
}

// ChatID is the id of the chat between two users, independent of order
func ChatID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + "_" + pair[1]
}

// FindOrCreateChat returns the existing conversation between the viewer and
// partner, creating it on first contact.
func (r *DocstoreChatRepository) FindOrCreateChat(ctx context.Context, viewerID, partnerID string) (*models.Chat, error) {
	if viewerID == partnerID {
		return nil, ErrSelfAction
	}
	page, err := r.store.Query(ctx, docstore.NewQuery(models.CollectionChats).
		Filter("participants", docstore.OpArrayContains, viewerID))
	if err != nil {
		return nil, err
	}
	for _, d := range page.Docs {
		chat, err := docstore.DecodeAs[models.Chat](d)
		if err != nil {
			continue
		}
		if chat.HasParticipant(partnerID) {
			return &chat, nil
		}
	}

	if _, err := r.store.Get(ctx, models.CollectionUsers, partnerID); err != nil {
		return nil, err
	}
	now := r.now().UTC()
	chat := &models.Chat{
		Participants:  []string{viewerID, partnerID},
		LastMessageAt: now,
		UnreadCount:   map[string]int64{viewerID: 0, partnerID: 0},
		TypingStatus:  map[string]bool{viewerID: false, partnerID: false},
		CreatedAt:     now,
	}
	id := ChatID(viewerID, partnerID)
	if err := r.store.Set(ctx, models.CollectionChats, id, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	chat.ID = id
	return chat, nil
}

// GetChat loads a chat the viewer participates in
func (r *DocstoreChatRepository) GetChat(ctx context.Context, viewerID, chatID string) (*models.Chat, error) {
	doc, err := r.store.Get(ctx, models.CollectionChats, chatID)
	if err != nil {
		return nil, err
	}
	chat, err := docstore.DecodeAs[models.Chat](doc)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(viewerID) {
		return nil, ErrForbidden
	}
	return &chat, nil
}

// SendMessage stores a message, uploading media first when present, and
// updates the chat preview and the partner's unread counter in one batch.
func (r *DocstoreChatRepository) SendMessage(ctx context.Context, viewerID, chatID, content string, media *Attachment) (*models.Message, error) {
	chat, err := r.GetChat(ctx, viewerID, chatID)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" && media == nil {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidInput)
	}

	now := r.now().UTC()
	msg := &models.Message{
		ChatID:    chatID,
		SenderID:  viewerID,
		Content:   content,
		Status:    models.MessageSent,
		CreatedAt: now,
	}
	preview := content
	if media != nil {
		if r.blobs == nil {
			return nil, fmt.Errorf("%w: media uploads are disabled", ErrInvalidInput)
		}
		url, err := r.blobs.Put(ctx, blob.ChatMediaPath(chatID, media.Filename, now), media.ContentType, media.Data)
		if err != nil {
			return nil, fmt.Errorf("upload chat media: %w", err)
		}
		msg.MediaURL = url
		msg.MediaType = mediaType(media.ContentType)
		if preview == "" {
			preview = "Sent a " + msg.MediaType
		}
	}

	id := uuid.NewString()
	err = r.store.Batch(ctx, []docstore.Mutation{
		docstore.SetOp(models.CollectionMessages, id, msg),
		docstore.UpdateOp(models.CollectionChats, chatID, map[string]any{
			"lastMessage":                           preview,
			"lastMessageAt":                         now,
			"unreadCount." + chat.Partner(viewerID): docstore.Inc(1),
			"typingStatus." + viewerID:              false,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	msg.ID = id
	return msg, nil
}

func mediaType(contentType string) string {
	if strings.HasPrefix(contentType, "video/") {
		return "video"
	}
	return "image"
}

// MarkRead marks every partner message in the chat as read and takes each
// one off the viewer's unread counter. Messages that arrive meanwhile keep
// their count. It returns how many messages changed.
func (r *DocstoreChatRepository) MarkRead(ctx context.Context, viewerID, chatID string) (int, error) {
	if _, err := r.GetChat(ctx, viewerID, chatID); err != nil {
		return 0, err
	}
	ids, err := r.incoming(ctx, viewerID, chatID, models.MessageSent, models.MessageDelivered)
	if err != nil {
		return 0, err
	}
	read := 0
	for _, id := range ids {
		err := r.store.Batch(ctx, []docstore.Mutation{
			docstore.GuardedUpdateOp(models.CollectionMessages, id,
				docstore.Where("status", docstore.OpNotEqual, string(models.MessageRead)),
				map[string]any{"status": models.MessageRead}),
			docstore.UpdateOp(models.CollectionChats, chatID, map[string]any{"unreadCount." + viewerID: docstore.Inc(-1)}),
		})
		switch {
		case err == nil:
			read++
		case docstore.IsConflict(err):
			// read by a concurrent call, which already took it off the counter
		default:
			return read, fmt.Errorf("mark messages read: %w", err)
		}
	}
	return read, nil
}

// MarkDelivered moves the partner's sent messages to delivered
func (r *DocstoreChatRepository) MarkDelivered(ctx context.Context, viewerID, chatID string) (int, error) {
	if _, err := r.GetChat(ctx, viewerID, chatID); err != nil {
		return 0, err
	}
	ids, err := r.incoming(ctx, viewerID, chatID, models.MessageSent)
	if err != nil {
		return 0, err
	}
	return r.setStatus(ctx, ids, models.MessageDelivered)
}

// incoming lists ids of messages not sent by the viewer whose status is one of statuses
func (r *DocstoreChatRepository) incoming(ctx context.Context, viewerID, chatID string, statuses ...models.MessageStatus) ([]string, error) {
	page, err := r.store.Query(ctx, docstore.NewQuery(models.CollectionMessages).
		Filter("chatId", docstore.OpEqual, chatID))
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, d := range page.Docs {
		sender, _ := d.Data["senderId"].(string)
		status, _ := d.Data["status"].(string)
		if sender == viewerID {
			continue
		}
		for _, s := range statuses {
			if status == string(s) {
				ids = append(ids, d.ID)
				break
			}
		}
	}
	return ids, nil
}

// setStatus updates messages in batches of at most maxBatch
func (r *DocstoreChatRepository) setStatus(ctx context.Context, ids []string, status models.MessageStatus) (int, error) {
	done := 0
	for len(ids) > 0 {
		n := min(len(ids), maxBatch)
		muts := make([]docstore.Mutation, 0, n)
		for _, id := range ids[:n] {
			muts = append(muts, docstore.UpdateOp(models.CollectionMessages, id, map[string]any{"status": status}))
		}
		if err := r.store.Batch(ctx, muts); err != nil {
			return done, fmt.Errorf("mark messages %s: %w", status, err)
		}
		ids = ids[n:]
		done += n
	}
	return done, nil
}

// SetTyping sets the viewer's typing flag in the chat
func (r *DocstoreChatRepository) SetTyping(ctx context.Context, viewerID, chatID string, typing bool) error {
	if _, err := r.GetChat(ctx, viewerID, chatID); err != nil {
		return err
	}
	return r.store.Update(ctx, models.CollectionChats, chatID, map[string]any{"typingStatus." + viewerID: typing})
}
