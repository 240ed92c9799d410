package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
	"github.com/anonto42/socialicon/internal/visibility"
)

const (
	ExploreWindow = 100
	ReelsWindow   = 20
	ProfileWindow = 20
)

// Explore categories; CategoryAll disables the filter.
const (
	CategoryAll     = "All"
	CategoryGeneral = "General"
)

var Categories = []string{CategoryAll, "Tech", "Design", "Gaming", "News", "Art", CategoryGeneral}

// ProfileTab selects which posts a profile page lists
type ProfileTab string

const (
	ProfilePosts ProfileTab = "posts"
	ProfileReels ProfileTab = "reels"
	ProfileLikes ProfileTab = "likes"
	ProfileSaved ProfileTab = "saved"
)

// ErrPrivateTab is returned when a viewer asks for another user's saved posts.
var ErrPrivateTab = errors.New("feed: tab is only visible to its owner")

// Browser serves the one-shot listings outside the home feed.
type Browser struct {
	store docstore.Store
	now   func() time.Time
}

func NewBrowser(store docstore.Store, now func() time.Time) *Browser {
	if now == nil {
		now = time.Now
	}
	return &Browser{store: store, now: now}
}

// Explore lists visual public posts from the most recent window ranked by
// trending score, optionally restricted to a category.
func (b *Browser) Explore(ctx context.Context, viewerID, category string) ([]models.Post, error) {
	page, err := b.store.Query(ctx, docstore.NewQuery(models.CollectionPosts).
		Filter("visibility", docstore.OpEqual, string(models.VisibilityPublic)).
		Sorted("createdAt", true).
		Window(ExploreWindow))
	if err != nil {
		return nil, fmt.Errorf("explore: %w", err)
	}
	posts := visibility.Filter(decodePosts(page.Docs), viewerID, b.now())
	out := posts[:0]
	for _, p := range posts {
		if !p.Type.IsVisual() {
			continue
		}
		if category != "" && !strings.EqualFold(category, CategoryAll) && !strings.EqualFold(categoryOf(p), category) {
			continue
		}
		out = append(out, p)
	}
	SortTrending(out)
	return out, nil
}

func categoryOf(p models.Post) string {
	if p.Category == "" {
		return CategoryGeneral
	}
	return p.Category
}

// Reels lists the newest visible public reels, scheduled ones included once
// their time has passed.
func (b *Browser) Reels(ctx context.Context, viewerID string) ([]models.Post, error) {
	page, err := b.store.Query(ctx, docstore.NewQuery(models.CollectionPosts).
		Filter("type", docstore.OpEqual, string(models.PostTypeReel)).
		Filter("visibility", docstore.OpEqual, string(models.VisibilityPublic)).
		Sorted("createdAt", true).
		Window(ReelsWindow))
	if err != nil {
		return nil, fmt.Errorf("reels: %w", err)
	}
	return visibility.Filter(decodePosts(page.Docs), viewerID, b.now()), nil
}

// ProfilePage is one page of a profile tab. Cursor resumes after the last
// record fetched, which may be a post the viewer cannot see.
type ProfilePage struct {
	Posts   []models.Post
	Cursor  docstore.Cursor
	HasMore bool
}

// Profile lists one tab of profileID's page as seen by viewerID, starting
// after cursor. Liked or saved posts that no longer exist are skipped.
func (b *Browser) Profile(ctx context.Context, viewerID, profileID string, tab ProfileTab, cursor docstore.Cursor) (ProfilePage, error) {
	switch tab {
	case ProfilePosts, ProfileReels, "":
		q := docstore.NewQuery(models.CollectionPosts).
			Filter("authorId", docstore.OpEqual, profileID).
			Sorted("createdAt", true).
			Window(ProfileWindow).
			After(cursor)
		if tab == ProfileReels {
			q = q.Filter("type", docstore.OpEqual, string(models.PostTypeReel))
		}
		page, err := b.store.Query(ctx, q)
		if err != nil {
			return ProfilePage{}, fmt.Errorf("profile posts: %w", err)
		}
		return ProfilePage{
			Posts:   visibility.Filter(decodePosts(page.Docs), viewerID, b.now()),
			Cursor:  page.Cursor,
			HasMore: len(page.Docs) == ProfileWindow,
		}, nil
	case ProfileLikes:
		return b.related(ctx, viewerID, models.CollectionLikes, profileID, cursor)
	case ProfileSaved:
		if viewerID != profileID {
			return ProfilePage{}, ErrPrivateTab
		}
		return b.related(ctx, viewerID, models.CollectionSavedPosts, profileID, cursor)
	}
	return ProfilePage{}, fmt.Errorf("unknown profile tab %q", tab)
}

// related resolves relation records (likes or saves) of userID into posts.
func (b *Browser) related(ctx context.Context, viewerID, collection, userID string, cursor docstore.Cursor) (ProfilePage, error) {
	page, err := b.store.Query(ctx, docstore.NewQuery(collection).
		Filter("userId", docstore.OpEqual, userID).
		Sorted("createdAt", true).
		Window(ProfileWindow).
		After(cursor))
	if err != nil {
		return ProfilePage{}, fmt.Errorf("list %s: %w", collection, err)
	}

	found := make([]*models.Post, len(page.Docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, d := range page.Docs {
		postID, _ := d.Data["postId"].(string)
		if postID == "" {
			continue
		}
		g.Go(func() error {
			doc, err := b.store.Get(gctx, models.CollectionPosts, postID)
			if docstore.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			p, err := docstore.DecodeAs[models.Post](doc)
			if err != nil {
				return nil
			}
			found[i] = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ProfilePage{}, fmt.Errorf("resolve %s: %w", collection, err)
	}

	posts := make([]models.Post, 0, len(found))
	for _, p := range found {
		if p != nil {
			posts = append(posts, *p)
		}
	}
	return ProfilePage{
		Posts:   visibility.Filter(posts, viewerID, b.now()),
		Cursor:  page.Cursor,
		HasMore: len(page.Docs) == ProfileWindow,
	}, nil
}
