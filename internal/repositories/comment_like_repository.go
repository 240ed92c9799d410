package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
)

// CommentLikeRepository defines the interface for comment like operations
type CommentLikeRepository interface {
	ToggleCommentLike(ctx context.Context, userID, commentID string) (bool, error)
	HasUserLikedComment(ctx context.Context, userID, commentID string) (bool, error)
}

type commentLikeRepository struct {
	store docstore.Store
}

func NewCommentLikeRepository(store docstore.Store) CommentLikeRepository {
	return &commentLikeRepository{store: store}
}

func (r *commentLikeRepository) ToggleCommentLike(ctx context.Context, userID, commentID string) (bool, error) {
	liked, err := toggle(ctx, r.store, relationToggle{
		collection: models.CollectionCommentLikes,
		id:         models.RelationID(userID, commentID),
		record: func() any {
			return models.CommentLike{UserID: userID, CommentID: commentID, CreatedAt: time.Now().UTC()}
		},
		counters: func(delta int64) []docstore.Mutation {
			return []docstore.Mutation{
				docstore.UpdateOp(models.CollectionComments, commentID, map[string]any{"likesCount": docstore.Inc(delta)}),
			}
		},
	})
	if err != nil {
		return liked, fmt.Errorf("toggle comment like: %w", err)
	}
	return liked, nil
}

func (r *commentLikeRepository) HasUserLikedComment(ctx context.Context, userID, commentID string) (bool, error) {
	return exists(ctx, r.store, models.CollectionCommentLikes, models.RelationID(userID, commentID))
}
