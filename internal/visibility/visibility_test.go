package visibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/anonto42/socialicon/internal/models"
)

func TestIsVisible(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	cases := []struct {
		name   string
		post   models.Post
		viewer string
		want   bool
	}{
		{"public published", models.Post{AuthorID: "a", Visibility: models.VisibilityPublic, IsPublished: true}, "v", true},
		{"public unpublished no schedule", models.Post{AuthorID: "a", Visibility: models.VisibilityPublic}, "v", false},
		{"scheduled in past", models.Post{AuthorID: "a", Visibility: models.VisibilityPublic, ScheduledAt: &past}, "v", true},
		{"scheduled exactly now", models.Post{AuthorID: "a", Visibility: models.VisibilityPublic, ScheduledAt: &now}, "v", true},
		{"scheduled in future", models.Post{AuthorID: "a", Visibility: models.VisibilityPublic, ScheduledAt: &future}, "v", false},
		{"followers only", models.Post{AuthorID: "a", Visibility: models.VisibilityFollowers, IsPublished: true}, "v", false},
		{"own followers-only draft", models.Post{AuthorID: "v", Visibility: models.VisibilityFollowers, ScheduledAt: &future}, "v", true},
		{"anonymous viewer", models.Post{AuthorID: "", Visibility: models.VisibilityFollowers}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsVisible(tc.post, tc.viewer, now))
			// Same inputs, same answer.
			assert.Equal(t, tc.want, IsVisible(tc.post, tc.viewer, now))
		})
	}
}

func TestFilterKeepsOrder(t *testing.T) {
	now := time.Now()
	posts := []models.Post{
		{ID: "1", AuthorID: "a", Visibility: models.VisibilityPublic, IsPublished: true},
		{ID: "2", AuthorID: "a", Visibility: models.VisibilityFollowers, IsPublished: true},
		{ID: "3", AuthorID: "v", Visibility: models.VisibilityFollowers},
		{ID: "4", AuthorID: "b", Visibility: models.VisibilityPublic, IsPublished: true},
	}
	got := Filter(posts, "v", now)
	ids := make([]string, len(got))
	for i, p := range got {
		ids[i] = p.ID
	}
	assert.Equal(t, []string{"1", "3", "4"}, ids)
}
