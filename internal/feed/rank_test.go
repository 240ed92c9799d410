package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/anonto42/socialicon/internal/models"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func publicPost(id, author string, age time.Duration) models.Post {
	return models.Post{
		ID:          id,
		AuthorID:    author,
		Type:        models.PostTypeText,
		Visibility:  models.VisibilityPublic,
		IsPublished: true,
		CreatedAt:   base.Add(-age),
	}
}

func postIDs(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestTrendingTiesBreakByNewestFirst(t *testing.T) {
	older := publicPost("older", "a", 2*time.Hour)
	older.LikesCount = 2 // 6
	newer := publicPost("newer", "b", time.Hour)
	newer.CommentsCount = 3 // 6
	top := publicPost("top", "c", 3*time.Hour)
	top.ViewsCount = 50 // 10

	got := Assemble([]models.Post{older, top, newer}, Input{Filter: Filter{Tab: TabTrending}, Now: base})
	assert.Equal(t, []string{"top", "newer", "older"}, postIDs(got))
}

func TestLatestOrdersByCreationTime(t *testing.T) {
	got := Assemble([]models.Post{
		publicPost("mid", "a", time.Hour),
		publicPost("new", "a", time.Minute),
		publicPost("old", "a", 2*time.Hour),
	}, Input{Now: base})
	assert.Equal(t, []string{"new", "mid", "old"}, postIDs(got))
}

func TestAssembleDeduplicatesFirstWins(t *testing.T) {
	fresh := publicPost("p", "a", time.Hour)
	fresh.LikesCount = 9
	stale := publicPost("p", "a", time.Hour)

	got := Assemble([]models.Post{fresh, stale}, Input{Now: base})
	assert.Len(t, got, 1)
	assert.Equal(t, int64(9), got[0].LikesCount)
}

func TestFollowingTabRestrictsToFollowSetAndSelf(t *testing.T) {
	raw := []models.Post{
		publicPost("mine", "me", time.Minute),
		publicPost("friend", "f", 2*time.Minute),
		publicPost("stranger", "s", 3*time.Minute),
	}
	in := Input{ViewerID: "me", Filter: Filter{Tab: TabFollowing}, Now: base}
	assert.Equal(t, []string{"mine"}, postIDs(Assemble(raw, in)))

	in.Following = map[string]bool{"f": true}
	assert.Equal(t, []string{"mine", "friend"}, postIDs(Assemble(raw, in)))
}

func TestBlockedAuthorsAreExcluded(t *testing.T) {
	raw := []models.Post{publicPost("a1", "a", time.Minute), publicPost("b1", "b", time.Minute)}
	got := Assemble(raw, Input{ViewerID: "me", Blocked: map[string]bool{"b": true}, Now: base})
	assert.Equal(t, []string{"a1"}, postIDs(got))
}

func TestScheduledPostsHiddenUntilDue(t *testing.T) {
	due := base.Add(time.Hour)
	p := publicPost("sched", "a", 0)
	p.IsPublished = false
	p.ScheduledAt = &due

	assert.Empty(t, Assemble([]models.Post{p}, Input{ViewerID: "me", Now: base}))
	assert.Len(t, Assemble([]models.Post{p}, Input{ViewerID: "me", Now: due}), 1)
	assert.Len(t, Assemble([]models.Post{p}, Input{ViewerID: "a", Now: base}), 1)
}

func TestTagAndSearchFilters(t *testing.T) {
	golang := publicPost("go", "a", time.Minute)
	golang.Tags = []string{"GoLang"}
	golang.LikesCount = 1
	golang.Content = "channels and goroutines"
	rust := publicPost("rust", "b", 2*time.Minute)
	rust.Tags = []string{"rust"}
	rust.AuthorUsername = "ferris"
	gopher := publicPost("gopher", "c", 3*time.Minute)
	gopher.Tags = []string{"golang"}
	gopher.LikesCount = 5
	raw := []models.Post{golang, rust, gopher}

	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"tag is case-insensitive and ranks by score", Filter{Tag: "#golang"}, []string{"gopher", "go"}},
		{"hash search is exact tag", Filter{Search: "#rust"}, []string{"rust"}},
		{"hash search does not substring", Filter{Search: "#ru"}, []string{}},
		{"search content", Filter{Search: "GOROUTINES"}, []string{"go"}},
		{"search username", Filter{Search: "ferr"}, []string{"rust"}},
		{"search tag substring", Filter{Search: "lang"}, []string{"go", "gopher"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, postIDs(Assemble(raw, Input{Filter: tc.filter, Now: base})))
		})
	}
}

func TestTrendingTags(t *testing.T) {
	p1 := publicPost("1", "a", 0)
	p1.Tags = []string{"Go", "go", "db"}
	p2 := publicPost("2", "a", 0)
	p2.Tags = []string{"go", "art"}
	p3 := publicPost("3", "a", 0)
	p3.Tags = []string{"db"}

	got := TrendingTags([]models.Post{p1, p2, p3}, 2)
	assert.Equal(t, []TagCount{{Tag: "db", Count: 2}, {Tag: "go", Count: 2}}, got)
}

func TestParseTab(t *testing.T) {
	assert.Equal(t, TabFollowing, ParseTab("Following"))
	assert.Equal(t, TabTrending, ParseTab(" trending "))
	assert.Equal(t, TabLatest, ParseTab("bogus"))
}
