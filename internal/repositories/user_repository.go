package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
)

// SearchWindow caps username prefix search results.
const SearchWindow = 10

// UserRepository defines the interface for user profile operations
type UserRepository interface {
	CreateProfile(ctx context.Context, uid string, req models.CreateProfileRequest, photoURL string) (*models.UserProfile, error)
	GetUserByID(ctx context.Context, uid string) (*models.UserProfile, error)
	GetUserByUsername(ctx context.Context, username string) (*models.UserProfile, error)
	SearchUsers(ctx context.Context, prefix string) ([]models.UserProfile, error)
	UpdateProfile(ctx context.Context, uid string, req models.UpdateProfileRequest) error
	SetImage(ctx context.Context, uid string, field ImageField, url string) error
	SetPresence(ctx context.Context, uid string, online bool) error
}

// ImageField names the profile image an upload replaces
type ImageField string

const (
	ImagePhoto ImageField = "photoURL"
	ImageCover ImageField = "coverURL"
)

// DocstoreUserRepository implements UserRepository on the document store
type DocstoreUserRepository struct {
	store docstore.Store
}

// NewUserRepository creates a new DocstoreUserRepository
func NewUserRepository(store docstore.Store) *DocstoreUserRepository {
	return &DocstoreUserRepository{store: store}
}

// CreateProfile creates the profile document for a freshly signed-up user.
// Usernames are stored lowercase and must be unique.
func (r *DocstoreUserRepository) CreateProfile(ctx context.Context, uid string, req models.CreateProfileRequest, photoURL string) (*models.UserProfile, error) {
	if _, err := r.GetUserByID(ctx, uid); err == nil {
		return nil, ErrProfileExists
	} else if !docstore.IsNotFound(err) {
		return nil, err
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if _, err := r.GetUserByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !docstore.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	profile := &models.UserProfile{
		Username:    username,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		PhotoURL:    photoURL,
		Role:        models.RoleUser,
		IsOnline:    true,
		LastActive:  now,
		CreatedAt:   now,
	}
	if err := r.store.Set(ctx, models.CollectionUsers, uid, profile); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	profile.ID = uid
	return profile, nil
}

// GetUserByID retrieves a profile by uid
func (r *DocstoreUserRepository) GetUserByID(ctx context.Context, uid string) (*models.UserProfile, error) {
	doc, err := r.store.Get(ctx, models.CollectionUsers, uid)
	if err != nil {
		return nil, err
	}
	u, err := docstore.DecodeAs[models.UserProfile](doc)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername looks a profile up by its lowercase username
func (r *DocstoreUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	page, err := r.store.Query(ctx, docstore.NewQuery(models.CollectionUsers).
		Filter("username", docstore.OpEqual, strings.ToLower(username)).
		Window(1))
	if err != nil {
		return nil, err
	}
	if len(page.Docs) == 0 {
		return nil, fmt.Errorf("%w: user %q", docstore.ErrNotFound, username)
	}
	u, err := docstore.DecodeAs[models.UserProfile](page.Docs[0])
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SearchUsers returns users whose username starts with prefix
func (r *DocstoreUserRepository) SearchUsers(ctx context.Context, prefix string) ([]models.UserProfile, error) {
	prefix = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(prefix), "@"))
	if prefix == "" {
		return []models.UserProfile{}, nil
	}
	page, err := r.store.Query(ctx, docstore.NewQuery(models.CollectionUsers).
		Filter("username", docstore.OpGreaterEqual, prefix).
		Filter("username", docstore.OpLessEqual, prefix+"\uf8ff").
		Sorted("username", false).
		Window(SearchWindow))
	if err != nil {
		return nil, err
	}
	users := make([]models.UserProfile, 0, len(page.Docs))
	for _, d := range page.Docs {
		u, err := docstore.DecodeAs[models.UserProfile](d)
		if err != nil {
			continue
		}
		users = append(users, u)
	}
	return users, nil
}

// UpdateProfile writes the non-empty fields of req
func (r *DocstoreUserRepository) UpdateProfile(ctx context.Context, uid string, req models.UpdateProfileRequest) error {
	fields := map[string]any{}
	if req.DisplayName != "" {
		fields["displayName"] = req.DisplayName
	}
	if req.Bio != "" {
		fields["bio"] = req.Bio
	}
	if req.Website != "" {
		fields["website"] = req.Website
	}
	if len(fields) == 0 {
		return nil
	}
	return r.store.Update(ctx, models.CollectionUsers, uid, fields)
}

func (r *DocstoreUserRepository) SetImage(ctx context.Context, uid string, field ImageField, url string) error {
	return r.store.Update(ctx, models.CollectionUsers, uid, map[string]any{string(field): url})
}

// SetPresence records the online flag and refreshes lastActive
func (r *DocstoreUserRepository) SetPresence(ctx context.Context, uid string, online bool) error {
	return r.store.Update(ctx, models.CollectionUsers, uid, map[string]any{
		"isOnline":   online,
		"lastActive": time.Now().UTC(),
	})
}
