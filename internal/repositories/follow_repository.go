package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
)

// FollowRepository defines the interface for follow and block relationships
type FollowRepository interface {
	ToggleFollow(ctx context.Context, actor Actor, targetID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followedID string) (bool, error)
	GetFollowerIDs(ctx context.Context, userID string, limit int) ([]string, error)
	GetFollowingIDs(ctx context.Context, userID string, limit int) ([]string, error)
	ToggleBlock(ctx context.Context, blockerID, targetID string) (bool, error)
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
}

// DocstoreFollowRepository implements FollowRepository on the document store
type DocstoreFollowRepository struct {
	store         docstore.Store
	notifications NotificationRepository
}

// NewFollowRepository creates a new DocstoreFollowRepository
func NewFollowRepository(store docstore.Store, notifications NotificationRepository) *DocstoreFollowRepository {
	return &DocstoreFollowRepository{store: store, notifications: notifications}
}

// ToggleFollow follows or unfollows targetID, keeping followersCount and
// followingCount in step with the relation record.
func (r *DocstoreFollowRepository) ToggleFollow(ctx context.Context, actor Actor, targetID string) (bool, error) {
	if actor.ID == targetID {
		return false, ErrSelfAction
	}
	following, err := toggle(ctx, r.store, relationToggle{
		collection: models.CollectionFollows,
		id:         models.RelationID(actor.ID, targetID),
		record: func() any {
			return models.Follow{FollowerID: actor.ID, FollowedID: targetID, CreatedAt: time.Now().UTC()}
		},
		counters: func(delta int64) []docstore.Mutation {
			return []docstore.Mutation{
				docstore.UpdateOp(models.CollectionUsers, actor.ID, map[string]any{"followingCount": docstore.Inc(delta)}),
				docstore.UpdateOp(models.CollectionUsers, targetID, map[string]any{"followersCount": docstore.Inc(delta)}),
			}
		},
	})
	if err != nil {
		return following, fmt.Errorf("toggle follow: %w", err)
	}

	if following {
		notifyQuietly(ctx, r.notifications, models.Notification{
			RecipientID:    targetID,
			SenderID:       actor.ID,
			SenderUsername: actor.Username,
			SenderPhotoURL: actor.PhotoURL,
			Type:           models.NotificationFollow,
			Message:        "started following you",
		})
	}
	return following, nil
}

func (r *DocstoreFollowRepository) IsFollowing(ctx context.Context, followerID, followedID string) (bool, error) {
	return exists(ctx, r.store, models.CollectionFollows, models.RelationID(followerID, followedID))
}

func (r *DocstoreFollowRepository) GetFollowerIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	return r.relationTargets(ctx, models.CollectionFollows, "followedId", userID, "followerId", limit)
}

func (r *DocstoreFollowRepository) GetFollowingIDs(ctx context.Context, userID string, limit int) ([]string, error) {
	return r.relationTargets(ctx, models.CollectionFollows, "followerId", userID, "followedId", limit)
}

func (r *DocstoreFollowRepository) relationTargets(ctx context.Context, collection, field, value, pluck string, limit int) ([]string, error) {
	page, err := r.store.Query(ctx, docstore.NewQuery(collection).
		Filter(field, docstore.OpEqual, value).
		Window(limit))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(page.Docs))
	for _, d := range page.Docs {
		if id, ok := d.Data[pluck].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ToggleBlock blocks or unblocks targetID. Blocked authors disappear from
// the blocker's feed.
func (r *DocstoreFollowRepository) ToggleBlock(ctx context.Context, blockerID, targetID string) (bool, error) {
	if blockerID == targetID {
		return false, ErrSelfAction
	}
	return toggle(ctx, r.store, relationToggle{
		collection: models.CollectionBlocks,
		id:         models.RelationID(blockerID, targetID),
		record: func() any {
			return models.Block{BlockerID: blockerID, BlockedID: targetID, CreatedAt: time.Now().UTC()}
		},
	})
}

func (r *DocstoreFollowRepository) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	return exists(ctx, r.store, models.CollectionBlocks, models.RelationID(blockerID, blockedID))
}
