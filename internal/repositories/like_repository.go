package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
)

// LikeRepository defines the interface for post like operations
type LikeRepository interface {
	ToggleLike(ctx context.Context, actor Actor, postID string) (bool, error)
	IsLiked(ctx context.Context, userID, postID string) (bool, error)
}

type likeRepository struct {
	store         docstore.Store
	notifications NotificationRepository
}

func NewLikeRepository(store docstore.Store, notifications NotificationRepository) LikeRepository {
	return &likeRepository{store: store, notifications: notifications}
}

// ToggleLike likes or unlikes a post. The like record and both counters
// (post likesCount, author likesReceived) change in one batch.
func (r *likeRepository) ToggleLike(ctx context.Context, actor Actor, postID string) (bool, error) {
	doc, err := r.store.Get(ctx, models.CollectionPosts, postID)
	if err != nil {
		return false, err
	}
	authorID, _ := doc.Data["authorId"].(string)

	liked, err := toggle(ctx, r.store, relationToggle{
		collection: models.CollectionLikes,
		id:         models.RelationID(actor.ID, postID),
		record: func() any {
			return models.Like{UserID: actor.ID, PostID: postID, CreatedAt: time.Now().UTC()}
		},
		counters: func(delta int64) []docstore.Mutation {
			return []docstore.Mutation{
				docstore.UpdateOp(models.CollectionPosts, postID, map[string]any{"likesCount": docstore.Inc(delta)}),
				docstore.UpdateOp(models.CollectionUsers, authorID, map[string]any{"likesReceived": docstore.Inc(delta)}),
			}
		},
	})
	if err != nil {
		return liked, fmt.Errorf("toggle like: %w", err)
	}

	if liked {
		notifyQuietly(ctx, r.notifications, models.Notification{
			RecipientID:    authorID,
			SenderID:       actor.ID,
			SenderUsername: actor.Username,
			SenderPhotoURL: actor.PhotoURL,
			Type:           models.NotificationLike,
			PostID:         postID,
			Message:        "liked your post",
		})
	}
	return liked, nil
}

func (r *likeRepository) IsLiked(ctx context.Context, userID, postID string) (bool, error) {
	return exists(ctx, r.store, models.CollectionLikes, models.RelationID(userID, postID))
}
