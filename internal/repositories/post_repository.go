package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, author Actor, req models.CreatePostRequest) (*models.Post, error)
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	UpdatePost(ctx context.Context, actor Actor, id string, req models.UpdatePostRequest) (*models.Post, error)
	DeletePost(ctx context.Context, actor Actor, id string) error
	RecordView(ctx context.Context, id string) error
}

// DocstorePostRepository implements PostRepository on the document store
type DocstorePostRepository struct {
	store docstore.Store
	now   func() time.Time
}

// NewPostRepository creates a new DocstorePostRepository
func NewPostRepository(store docstore.Store) *DocstorePostRepository {
	return &DocstorePostRepository{store: store, now: time.Now}
}

// CreatePost stores a new post and bumps the author's post counter in one
// batch. A post scheduled in the future starts unpublished.
func (r *DocstorePostRepository) CreatePost(ctx context.Context, author Actor, req models.CreatePostRequest) (*models.Post, error) {
	now := r.now().UTC()
	post := &models.Post{
		AuthorID:       author.ID,
		AuthorUsername: author.Username,
		AuthorPhotoURL: author.PhotoURL,
		Type:           req.Type,
		Title:          strings.TrimSpace(req.Title),
		Category:       strings.TrimSpace(req.Category),
		Tags:           normalizeTags(req.Tags),
		Content:        req.Content,
		MediaURL:       req.MediaURL,
		Visibility:     req.Visibility,
		IsPublished:    req.ScheduledAt == nil || !req.ScheduledAt.After(now),
		CreatedAt:      now,
	}
	if post.Type == "" {
		post.Type = models.PostTypeText
		if req.MediaURL != "" {
			post.Type = models.PostTypeImage
		}
	}
	if post.Type != models.PostTypeArticle {
		post.Title = ""
	}
	if post.Visibility == "" {
		post.Visibility = models.VisibilityPublic
	}
	if req.ScheduledAt != nil {
		at := req.ScheduledAt.UTC()
		post.ScheduledAt = &at
	}

	id := uuid.NewString()
	err := r.store.Batch(ctx, []docstore.Mutation{
		docstore.SetOp(models.CollectionPosts, id, post),
		docstore.UpdateOp(models.CollectionUsers, author.ID, map[string]any{"postsCount": docstore.Inc(1)}),
	})
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	post.ID = id
	return post, nil
}

// GetPostByID retrieves a post by ID
func (r *DocstorePostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	doc, err := r.store.Get(ctx, models.CollectionPosts, id)
	if err != nil {
		return nil, err
	}
	post, err := docstore.DecodeAs[models.Post](doc)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost edits the content and media of the actor's own post
func (r *DocstorePostRepository) UpdatePost(ctx context.Context, actor Actor, id string, req models.UpdatePostRequest) (*models.Post, error) {
	post, err := r.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actor.ID {
		return nil, ErrForbidden
	}
	now := r.now().UTC()
	fields := map[string]any{"content": req.Content, "updatedAt": now}
	if req.MediaURL != "" {
		fields["mediaURL"] = req.MediaURL
		post.MediaURL = req.MediaURL
	}
	if err := r.store.Update(ctx, models.CollectionPosts, id, fields); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	post.Content = req.Content
	post.UpdatedAt = &now
	return post, nil
}

// DeletePost removes the post and decrements the author's post counter.
// Moderators may delete any post.
func (r *DocstorePostRepository) DeletePost(ctx context.Context, actor Actor, id string) error {
	post, err := r.GetPostByID(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != actor.ID && !actor.Role.CanModerate() {
		return ErrForbidden
	}
	err = r.store.Batch(ctx, []docstore.Mutation{
		docstore.DeleteOp(models.CollectionPosts, id),
		docstore.UpdateOp(models.CollectionUsers, post.AuthorID, map[string]any{"postsCount": docstore.Inc(-1)}),
	})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// RecordView counts one view on the post and on its author's profile
func (r *DocstorePostRepository) RecordView(ctx context.Context, id string) error {
	post, err := r.GetPostByID(ctx, id)
	if err != nil {
		return err
	}
	return r.store.Batch(ctx, []docstore.Mutation{
		docstore.UpdateOp(models.CollectionPosts, id, map[string]any{"viewsCount": docstore.Inc(1)}),
		docstore.UpdateOp(models.CollectionUsers, post.AuthorID, map[string]any{"viewsReceived": docstore.Inc(1)}),
	})
}
