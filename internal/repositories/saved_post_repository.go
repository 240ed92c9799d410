package repositories

import (
	"context"
	"time"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
)

// SavedPostRepository defines the interface for bookmark operations
type SavedPostRepository interface {
	ToggleSave(ctx context.Context, userID, postID string) (bool, error)
	IsSaved(ctx context.Context, userID, postID string) (bool, error)
}

type savedPostRepository struct {
	store docstore.Store
}

func NewSavedPostRepository(store docstore.Store) SavedPostRepository {
	return &savedPostRepository{store: store}
}

// ToggleSave bookmarks the post or removes the bookmark. A bookmark of a
// deleted post can still be removed.
func (r *savedPostRepository) ToggleSave(ctx context.Context, userID, postID string) (bool, error) {
	id := models.RelationID(userID, postID)
	var authorID string
	doc, err := r.store.Get(ctx, models.CollectionPosts, postID)
	switch {
	case err == nil:
		authorID, _ = doc.Data["authorId"].(string)
	case docstore.IsNotFound(err):
		saved, existsErr := exists(ctx, r.store, models.CollectionSavedPosts, id)
		if existsErr != nil {
			return false, existsErr
		}
		if !saved {
			return false, err
		}
	default:
		return false, err
	}
	return toggle(ctx, r.store, relationToggle{
		collection: models.CollectionSavedPosts,
		id:         id,
		record: func() any {
			return models.SavedPost{UserID: userID, PostID: postID, AuthorID: authorID, CreatedAt: time.Now().UTC()}
		},
	})
}

func (r *savedPostRepository) IsSaved(ctx context.Context, userID, postID string) (bool, error) {
	return exists(ctx, r.store, models.CollectionSavedPosts, models.RelationID(userID, postID))
}
