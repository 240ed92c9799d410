package models

import "time"

// NotificationType is the action that produced a notification
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationFollow  NotificationType = "follow"
	NotificationMention NotificationType = "mention"
	NotificationReply   NotificationType = "reply"
)

// Notification represents a user notification. Only Read is ever updated after creation.
type Notification struct {
	ID             string           `json:"id" bson:"-"`
	RecipientID    string           `json:"recipientId" bson:"recipientId"`
	SenderID       string           `json:"senderId" bson:"senderId"`
	SenderUsername string           `json:"senderUsername" bson:"senderUsername"`
	SenderPhotoURL string           `json:"senderPhotoURL" bson:"senderPhotoURL"`
	Type           NotificationType `json:"type" bson:"type"`
	PostID         string           `json:"postId,omitempty" bson:"postId,omitempty"`
	CommentID      string           `json:"commentId,omitempty" bson:"commentId,omitempty"`
	Message        string           `json:"message" bson:"message"`
	Read           bool             `json:"read" bson:"read"`
	CreatedAt      time.Time        `json:"createdAt" bson:"createdAt"`
}

// SetID implements docstore.Identifiable
func (n *Notification) SetID(id string) { n.ID = id }
