package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	AddComment(ctx context.Context, actor Actor, postID string, req models.CreateCommentRequest) (*models.Comment, error)
	GetComment(ctx context.Context, id string) (*models.Comment, error)
	EditComment(ctx context.Context, actor Actor, id string, req models.UpdateCommentRequest) (*models.Comment, error)
	DeleteComment(ctx context.Context, actor Actor, id string) error
	FlagComment(ctx context.Context, id string) error
	HideComment(ctx context.Context, actor Actor, id string) error
}

// UserLookup resolves @mentions to profiles
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*models.UserProfile, error)
}

// DocstoreCommentRepository implements CommentRepository on the document store
type DocstoreCommentRepository struct {
	store         docstore.Store
	users         UserLookup
	notifications NotificationRepository
	now           func() time.Time
}

// NewCommentRepository creates a new DocstoreCommentRepository
func NewCommentRepository(store docstore.Store, users UserLookup, notifications NotificationRepository) *DocstoreCommentRepository {
	return &DocstoreCommentRepository{store: store, users: users, notifications: notifications, now: time.Now}
}

// AddComment stores a root comment or, when req.ParentID is set, a reply.
// Replies always attach to the root of the thread they answer.
func (r *DocstoreCommentRepository) AddComment(ctx context.Context, actor Actor, postID string, req models.CreateCommentRequest) (*models.Comment, error) {
	doc, err := r.store.Get(ctx, models.CollectionPosts, postID)
	if err != nil {
		return nil, err
	}
	postAuthor, _ := doc.Data["authorId"].(string)

	var parent *models.Comment
	if req.ParentID != "" {
		if parent, err = r.GetComment(ctx, req.ParentID); err != nil {
			return nil, err
		}
		if parent.IsReply() {
			if parent, err = r.GetComment(ctx, parent.ParentID); err != nil {
				return nil, err
			}
		}
		if parent.PostID != postID {
			return nil, ErrInvalidParent
		}
	}

	comment := &models.Comment{
		PostID:           postID,
		AuthorID:         actor.ID,
		AuthorUsername:   actor.Username,
		AuthorPhotoURL:   actor.PhotoURL,
		Content:          req.Content,
		ModerationStatus: models.ModerationClean,
		CreatedAt:        r.now().UTC(),
	}
	id := uuid.NewString()
	muts := []docstore.Mutation{
		docstore.SetOp(models.CollectionComments, id, comment),
		docstore.UpdateOp(models.CollectionPosts, postID, map[string]any{"commentsCount": docstore.Inc(1)}),
	}
	if parent != nil {
		comment.ParentID = parent.ID
		muts = append(muts, docstore.UpdateOp(models.CollectionComments, parent.ID, map[string]any{"replyCount": docstore.Inc(1)}))
	}
	if err := r.store.Batch(ctx, muts); err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	comment.ID = id

	n := models.Notification{
		SenderID:       actor.ID,
		SenderUsername: actor.Username,
		SenderPhotoURL: actor.PhotoURL,
		PostID:         postID,
		CommentID:      id,
	}
	notified := map[string]bool{actor.ID: true}
	if parent != nil {
		n.RecipientID, n.Type, n.Message = parent.AuthorID, models.NotificationReply, "replied to your comment"
	} else {
		n.RecipientID, n.Type, n.Message = postAuthor, models.NotificationComment, "commented on your post"
	}
	notifyQuietly(ctx, r.notifications, n)
	notified[n.RecipientID] = true

	r.notifyMentions(ctx, n, comment.Content, notified)
	return comment, nil
}

// notifyMentions sends a mention notification to every resolvable @username
// that has not already been notified for this comment.
func (r *DocstoreCommentRepository) notifyMentions(ctx context.Context, base models.Notification, content string, notified map[string]bool) {
	if r.users == nil {
		return
	}
	for _, name := range Mentions(content) {
		u, err := r.users.GetUserByUsername(ctx, name)
		if err != nil || notified[u.ID] {
			continue
		}
		notified[u.ID] = true
		n := base
		n.RecipientID, n.Type, n.Message = u.ID, models.NotificationMention, "mentioned you in a comment"
		notifyQuietly(ctx, r.notifications, n)
	}
}

// GetComment retrieves a comment by ID
func (r *DocstoreCommentRepository) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	doc, err := r.store.Get(ctx, models.CollectionComments, id)
	if err != nil {
		return nil, err
	}
	c, err := docstore.DecodeAs[models.Comment](doc)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// EditComment replaces the content of the actor's own comment
func (r *DocstoreCommentRepository) EditComment(ctx context.Context, actor Actor, id string, req models.UpdateCommentRequest) (*models.Comment, error) {
	c, err := r.GetComment(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != actor.ID {
		return nil, ErrForbidden
	}
	now := r.now().UTC()
	if err := r.store.Update(ctx, models.CollectionComments, id, map[string]any{"content": req.Content, "updatedAt": now}); err != nil {
		return nil, fmt.Errorf("edit comment: %w", err)
	}
	c.Content = req.Content
	c.UpdatedAt = &now
	return c, nil
}

// DeleteComment removes the actor's comment. Deleting a root comment also
// removes its replies; the post's commentsCount drops by everything removed.
func (r *DocstoreCommentRepository) DeleteComment(ctx context.Context, actor Actor, id string) error {
	c, err := r.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if c.AuthorID != actor.ID {
		return ErrForbidden
	}

	var replies []string
	if !c.IsReply() {
		page, err := r.store.Query(ctx, docstore.NewQuery(models.CollectionComments).
			Filter("parentId", docstore.OpEqual, id))
		if err != nil {
			return err
		}
		for _, d := range page.Docs {
			replies = append(replies, d.ID)
		}
	}

	// Replies beyond one batch go first so the final batch can carry the counters.
	for len(replies) > maxBatch-3 {
		n := min(len(replies), maxBatch)
		chunk := replies[:n]
		replies = replies[n:]
		muts := make([]docstore.Mutation, 0, len(chunk))
		for _, rid := range chunk {
			muts = append(muts, docstore.DeleteOp(models.CollectionComments, rid))
		}
		if err := r.store.Batch(ctx, muts); err != nil {
			return fmt.Errorf("delete replies: %w", err)
		}
		if err := r.adjustCommentsCount(ctx, c.PostID, -int64(len(chunk))); err != nil {
			return err
		}
	}

	muts := []docstore.Mutation{docstore.DeleteOp(models.CollectionComments, id)}
	for _, rid := range replies {
		muts = append(muts, docstore.DeleteOp(models.CollectionComments, rid))
	}
	postLive, err := exists(ctx, r.store, models.CollectionPosts, c.PostID)
	if err != nil {
		return err
	}
	if postLive {
		muts = append(muts, docstore.UpdateOp(models.CollectionPosts, c.PostID, map[string]any{"commentsCount": docstore.Inc(-int64(1 + len(replies)))}))
	}
	if c.IsReply() {
		parentLive, err := exists(ctx, r.store, models.CollectionComments, c.ParentID)
		if err != nil {
			return err
		}
		if parentLive {
			muts = append(muts, docstore.UpdateOp(models.CollectionComments, c.ParentID, map[string]any{"replyCount": docstore.Inc(-1)}))
		}
	}
	if err := r.store.Batch(ctx, muts); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

func (r *DocstoreCommentRepository) adjustCommentsCount(ctx context.Context, postID string, delta int64) error {
	err := r.store.Increment(ctx, models.CollectionPosts, postID, "commentsCount", delta)
	if docstore.IsNotFound(err) {
		return nil
	}
	return err
}

// FlagComment marks a comment for moderator review. Flagged comments stay visible.
func (r *DocstoreCommentRepository) FlagComment(ctx context.Context, id string) error {
	c, err := r.GetComment(ctx, id)
	if err != nil {
		return err
	}
	if c.ModerationStatus == models.ModerationHidden {
		return nil
	}
	return r.store.Update(ctx, models.CollectionComments, id, map[string]any{"moderationStatus": models.ModerationFlagged})
}

// HideComment hides a comment from everyone but its author
func (r *DocstoreCommentRepository) HideComment(ctx context.Context, actor Actor, id string) error {
	if !actor.Role.CanModerate() {
		return ErrForbidden
	}
	if _, err := r.GetComment(ctx, id); err != nil {
		return err
	}
	return r.store.Update(ctx, models.CollectionComments, id, map[string]any{"moderationStatus": models.ModerationHidden})
}
