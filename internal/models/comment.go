package models

import "time"

// ModerationStatus tracks the moderation state of a comment
type ModerationStatus string

const (
	ModerationClean   ModerationStatus = "clean"
	ModerationFlagged ModerationStatus = "flagged"
	ModerationHidden  ModerationStatus = "hidden"
)

// Comment represents a comment on a post. Replies carry the id of their root comment in ParentID.
type Comment struct {
	ID               string           `json:"id" bson:"-"`
	PostID           string           `json:"postId" bson:"postId"`
	ParentID         string           `json:"parentId,omitempty" bson:"parentId,omitempty"`
	AuthorID         string           `json:"authorId" bson:"authorId"`
	AuthorUsername   string           `json:"authorUsername" bson:"authorUsername"`
	AuthorPhotoURL   string           `json:"authorPhotoURL" bson:"authorPhotoURL"`
	Content          string           `json:"content" bson:"content"`
	LikesCount       int64            `json:"likesCount" bson:"likesCount"`
	ReplyCount       int64            `json:"replyCount" bson:"replyCount"`
	ModerationStatus ModerationStatus `json:"moderationStatus" bson:"moderationStatus"`
	CreatedAt        time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt        *time.Time       `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// SetID implements docstore.Identifiable
func (c *Comment) SetID(id string) { c.ID = id }

// IsReply reports whether the comment is threaded under another comment
func (c Comment) IsReply() bool { return c.ParentID != "" }

// CreateCommentRequest defines the request body for creating a new comment or reply
type CreateCommentRequest struct {
	ParentID string `json:"parentId,omitempty"`
	Content  string `json:"content" validate:"required,min=1,max=2000"`
}

// UpdateCommentRequest defines the request body for updating an existing comment
type UpdateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=2000"`
}
