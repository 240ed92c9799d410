// Package visibility is the single client-side copy of the server's post
// authorization rule. Every listing applies it after fetching.
package visibility

import (
	"time"

	"github.com/anonto42/socialicon/internal/models"
)

// IsVisible reports whether viewerID may see post at now. Authors always
// see their own posts; everyone else sees public posts that are published
// or whose scheduled time has passed.
func IsVisible(post models.Post, viewerID string, now time.Time) bool {
	if viewerID != "" && post.AuthorID == viewerID {
		return true
	}
	if post.Visibility != models.VisibilityPublic {
		return false
	}
	if post.IsPublished {
		return true
	}
	return post.ScheduledAt != nil && !post.ScheduledAt.After(now)
}

// Filter returns the visible subset of posts, preserving order.
func Filter(posts []models.Post, viewerID string, now time.Time) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if IsVisible(p, viewerID, now) {
			out = append(out, p)
		}
	}
	return out
}
