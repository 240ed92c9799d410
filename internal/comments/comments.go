// Package comments keeps live comment threads for a post.
package comments

import (
	"context"
	"sort"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
	"github.com/anonto42/socialicon/internal/reconciler"
)

// ThreadWindow is how many of the newest comments a post view subscribes to.
const ThreadWindow = 20

// View is a live list of comments as seen by one viewer.
type View struct {
	list     *reconciler.List[models.Comment]
	viewerID string
	replies  bool
}

func commentKey(c models.Comment) string { return c.ID }

// OpenThread subscribes to the newest comments on postID. Replies share the
// query and are dropped client-side.
func OpenThread(ctx context.Context, store docstore.Store, viewerID, postID string) (*View, error) {
	q := docstore.NewQuery(models.CollectionComments).
		Filter("postId", docstore.OpEqual, postID).
		Sorted("createdAt", true).
		Window(ThreadWindow)
	list, err := reconciler.Open(ctx, store, q, commentKey, docstore.DecodeAs[models.Comment], nil)
	if err != nil {
		return nil, err
	}
	return &View{list: list, viewerID: viewerID}, nil
}

// OpenReplies subscribes to the replies under parentID.
func OpenReplies(ctx context.Context, store docstore.Store, viewerID, parentID string) (*View, error) {
	q := docstore.NewQuery(models.CollectionComments).Filter("parentId", docstore.OpEqual, parentID)
	list, err := reconciler.Open(ctx, store, q, commentKey, docstore.DecodeAs[models.Comment], nil)
	if err != nil {
		return nil, err
	}
	return &View{list: list, viewerID: viewerID, replies: true}, nil
}

// Comments returns the visible comments: newest first for a thread, oldest
// first for replies.
func (v *View) Comments() []models.Comment {
	items := v.list.Items()
	out := items[:0]
	for _, c := range items {
		if !v.replies && c.IsReply() {
			continue
		}
		if !Visible(c, v.viewerID) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if v.replies {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Visible hides moderated comments from everyone but their author.
func Visible(c models.Comment, viewerID string) bool {
	return c.ModerationStatus != models.ModerationHidden || c.AuthorID == viewerID
}

func (v *View) Updates() <-chan struct{} { return v.list.Updates() }

func (v *View) Synced() <-chan struct{} { return v.list.Synced() }

func (v *View) Stale() bool { return v.list.Stale() }

func (v *View) Close() { v.list.Close() }
