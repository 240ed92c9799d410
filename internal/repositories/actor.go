package repositories

import (
	"regexp"
	"strings"

	"github.com/anonto42/socialicon/internal/models"
)

// Actor is the user performing a mutation, denormalized onto the documents
// and notifications it creates.
type Actor struct {
	ID       string
	Username string
	PhotoURL string
	Role     models.Role
}

// ActorFromProfile builds an Actor from a stored profile
func ActorFromProfile(p *models.UserProfile) Actor {
	return Actor{ID: p.ID, Username: p.Username, PhotoURL: p.PhotoURL, Role: p.Role}
}

var mentionPattern = regexp.MustCompile(`(?:^|[^\w@])@([a-zA-Z0-9_.]{3,30})`)

// Mentions returns the distinct lowercased usernames mentioned with @ in text.
func Mentions(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		name := strings.ToLower(strings.TrimRight(m[1], "."))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// normalizeTags trims, drops a leading # and removes empty or duplicate tags.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimPrefix(strings.TrimSpace(t), "#")
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
