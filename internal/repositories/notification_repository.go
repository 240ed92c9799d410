package repositories

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
)

// maxBatch keeps batches below the document store's per-transaction write limit.
const maxBatch = 400

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	Notify(ctx context.Context, notification models.Notification) error
	GetRecent(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
	GetUnreadCount(ctx context.Context, recipientID string) (int64, error)
	MarkAsRead(ctx context.Context, recipientID, notificationID string) error
	MarkAllAsRead(ctx context.Context, recipientID string) (int, error)
}

type notificationRepository struct {
	store docstore.Store
}

func NewNotificationRepository(store docstore.Store) NotificationRepository {
	return &notificationRepository{store: store}
}

// Notify stores a notification. Self-notifications are silently dropped.
func (r *notificationRepository) Notify(ctx context.Context, n models.Notification) error {
	if n.RecipientID == "" || n.RecipientID == n.SenderID {
		return nil
	}
	n.Read = false
	n.CreatedAt = time.Now().UTC()
	if _, err := r.store.Create(ctx, models.CollectionNotifications, n); err != nil {
		return fmt.Errorf("create %s notification: %w", n.Type, err)
	}
	return nil
}

func (r *notificationRepository) GetRecent(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	page, err := r.store.Query(ctx, docstore.NewQuery(models.CollectionNotifications).
		Filter("recipientId", docstore.OpEqual, recipientID).
		Sorted("createdAt", true).
		Window(limit))
	if err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(page.Docs))
	for _, d := range page.Docs {
		n, err := docstore.DecodeAs[models.Notification](d)
		if err != nil {
			log.Printf("notifications: skipping %s: %v", d.ID, err)
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *notificationRepository) GetUnreadCount(ctx context.Context, recipientID string) (int64, error) {
	page, err := r.store.Query(ctx, r.unread(recipientID))
	if err != nil {
		return 0, err
	}
	return int64(len(page.Docs)), nil
}

func (r *notificationRepository) unread(recipientID string) docstore.Query {
	return docstore.NewQuery(models.CollectionNotifications).
		Filter("recipientId", docstore.OpEqual, recipientID).
		Filter("read", docstore.OpEqual, false)
}

// MarkAsRead flips the read flag of one of the recipient's notifications
func (r *notificationRepository) MarkAsRead(ctx context.Context, recipientID, notificationID string) error {
	doc, err := r.store.Get(ctx, models.CollectionNotifications, notificationID)
	if err != nil {
		return err
	}
	if owner, _ := doc.Data["recipientId"].(string); owner != recipientID {
		return ErrForbidden
	}
	return r.store.Update(ctx, models.CollectionNotifications, notificationID, map[string]any{"read": true})
}

// MarkAllAsRead flips every unread notification in atomic batches and
// returns how many were updated.
func (r *notificationRepository) MarkAllAsRead(ctx context.Context, recipientID string) (int, error) {
	page, err := r.store.Query(ctx, r.unread(recipientID))
	if err != nil {
		return 0, err
	}
	done := 0
	for start := 0; start < len(page.Docs); start += maxBatch {
		end := min(start+maxBatch, len(page.Docs))
		muts := make([]docstore.Mutation, 0, end-start)
		for _, d := range page.Docs[start:end] {
			muts = append(muts, docstore.UpdateOp(models.CollectionNotifications, d.ID, map[string]any{"read": true}))
		}
		if err := r.store.Batch(ctx, muts); err != nil {
			return done, fmt.Errorf("mark notifications read: %w", err)
		}
		done += end - start
	}
	return done, nil
}

// notifyQuietly records a side-effect notification; failures are logged
// and never fail the triggering action.
func notifyQuietly(ctx context.Context, r NotificationRepository, n models.Notification) {
	if r == nil {
		return
	}
	if err := r.Notify(ctx, n); err != nil {
		log.Printf("notifications: %v", err)
	}
}
