// Package notifications keeps a viewer's live notification list.
package notifications

import (
	"context"
	"sort"
	"time"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
	"github.com/anonto42/socialicon/internal/reconciler"
)

// Window is how many of the newest notifications are kept live.
const Window = 50

// View is the live list of one recipient's notifications, newest first.
type View struct {
	list *reconciler.List[models.Notification]
}

// Open subscribes to recipientID's newest notifications
func Open(ctx context.Context, store docstore.Store, recipientID string) (*View, error) {
	q := docstore.NewQuery(models.CollectionNotifications).
		Filter("recipientId", docstore.OpEqual, recipientID).
		Sorted("createdAt", true).
		Window(Window)
	list, err := reconciler.Open(ctx, store, q,
		func(n models.Notification) string { return n.ID },
		docstore.DecodeAs[models.Notification], nil)
	if err != nil {
		return nil, err
	}
	return &View{list: list}, nil
}

// Notifications returns the live notifications, newest first
func (v *View) Notifications() []models.Notification {
	items := v.list.Items()
	sortNewest(items)
	return items
}

// UnreadCount counts unread notifications within the live window
func (v *View) UnreadCount() int {
	n := 0
	for _, item := range v.list.Items() {
		if !item.Read {
			n++
		}
	}
	return n
}

func (v *View) Updates() <-chan struct{} { return v.list.Updates() }

func (v *View) Synced() <-chan struct{} { return v.list.Synced() }

func (v *View) Stale() bool { return v.list.Stale() }

func (v *View) Close() { v.list.Close() }

// Grouped buckets notifications by age relative to the viewer's day
type Grouped struct {
	Today     []models.Notification `json:"today"`
	Yesterday []models.Notification `json:"yesterday"`
	ThisWeek  []models.Notification `json:"thisWeek"`
	Older     []models.Notification `json:"older"`
}

// Group splits ns into today, yesterday, the rest of the last seven days and
// older. Day boundaries are taken in now's location; order is newest first.
func Group(ns []models.Notification, now time.Time) Grouped {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	sorted := append([]models.Notification(nil), ns...)
	sortNewest(sorted)

	g := Grouped{
		Today:     []models.Notification{},
		Yesterday: []models.Notification{},
		ThisWeek:  []models.Notification{},
		Older:     []models.Notification{},
	}
	for _, n := range sorted {
		switch at := n.CreatedAt; {
		case !at.Before(todayStart):
			g.Today = append(g.Today, n)
		case !at.Before(yesterdayStart):
			g.Yesterday = append(g.Yesterday, n)
		case !at.Before(weekStart):
			g.ThisWeek = append(g.ThisWeek, n)
		default:
			g.Older = append(g.Older, n)
		}
	}
	return g
}

func sortNewest(ns []models.Notification) {
	sort.SliceStable(ns, func(i, j int) bool {
		if !ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].CreatedAt.After(ns[j].CreatedAt)
		}
		return ns[i].ID > ns[j].ID
	})
}
