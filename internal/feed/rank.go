package feed

import (
	"sort"
	"strings"
	"time"

	"github.com/anonto42/socialicon/internal/models"
	"github.com/anonto42/socialicon/internal/visibility"
)

// Tab selects the feed ranking
type Tab string

const (
	TabLatest    Tab = "latest"
	TabFollowing Tab = "following"
	TabTrending  Tab = "trending"
)

// ParseTab maps a client-supplied tab name, defaulting to Latest
func ParseTab(s string) Tab {
	switch Tab(strings.ToLower(strings.TrimSpace(s))) {
	case TabFollowing:
		return TabFollowing
	case TabTrending:
		return TabTrending
	}
	return TabLatest
}

// Filter is the client-selected view of the feed.
type Filter struct {
	Tab    Tab    `json:"tab" query:"tab"`
	Search string `json:"search" query:"q"`
	Tag    string `json:"tag" query:"tag"`
}

// Input is everything Assemble needs besides the raw posts.
type Input struct {
	ViewerID  string
	Filter    Filter
	Following map[string]bool
	Blocked   map[string]bool
	Now       time.Time
}

// Assemble turns the merged raw posts into the ordered list shown to the
// viewer. The first occurrence of an id wins.
func Assemble(raw []models.Post, in Input) []models.Post {
	seen := make(map[string]bool, len(raw))
	search := strings.ToLower(strings.TrimSpace(in.Filter.Search))
	tag := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(in.Filter.Tag), "#"))

	out := make([]models.Post, 0, len(raw))
	for _, p := range raw {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		if in.Blocked[p.AuthorID] {
			continue
		}
		if !visibility.IsVisible(p, in.ViewerID, in.Now) {
			continue
		}
		if in.Filter.Tab == TabFollowing && p.AuthorID != in.ViewerID && !in.Following[p.AuthorID] {
			continue
		}
		if tag != "" && !hasTag(p, tag) {
			continue
		}
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		out = append(out, p)
	}

	if in.Filter.Tab == TabTrending || tag != "" {
		SortTrending(out)
	} else {
		SortLatest(out)
	}
	return out
}

func hasTag(p models.Post, tag string) bool {
	for _, t := range p.Tags {
		if strings.ToLower(t) == tag {
			return true
		}
	}
	return false
}

// matchesSearch treats "#tag" as an exact tag match and anything else as a
// substring of the content, author username or a tag.
func matchesSearch(p models.Post, term string) bool {
	if strings.HasPrefix(term, "#") && len(term) > 1 {
		return hasTag(p, term[1:])
	}
	if strings.Contains(strings.ToLower(p.Content), term) ||
		strings.Contains(strings.ToLower(p.AuthorUsername), term) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return false
}

// SortLatest orders by creation time, newest first.
func SortLatest(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
}

// SortTrending orders by TrendingScore; equal scores fall back to newest
// first and then id.
func SortTrending(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		si, sj := posts[i].TrendingScore(), posts[j].TrendingScore()
		if si != sj {
			return si > sj
		}
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
}

// TagCount is a tag and how many posts carry it
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// TrendingTags counts lowercased tags across posts and returns the n most
// frequent, ties alphabetical.
func TrendingTags(posts []models.Post, n int) []TagCount {
	counts := make(map[string]int)
	for _, p := range posts {
		seen := make(map[string]bool, len(p.Tags))
		for _, t := range p.Tags {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			counts[t]++
		}
	}
	out := make([]TagCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TagCount{Tag: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
