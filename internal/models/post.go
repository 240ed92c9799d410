package models

import "time"

// PostType is the media shape of a post
type PostType string

const (
	PostTypeText    PostType = "text"
	PostTypeImage   PostType = "image"
	PostTypeVideo   PostType = "video"
	PostTypeReel    PostType = "reel"
	PostTypeArticle PostType = "article"
)

// IsVisual reports whether the post carries image or video media
func (t PostType) IsVisual() bool {
	return t == PostTypeImage || t == PostTypeVideo || t == PostTypeReel
}

// Visibility is the audience a post was published to
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
)

// Post represents a social media post stored in the document store
type Post struct {
	ID             string     `json:"id" bson:"-"`
	AuthorID       string     `json:"authorId" bson:"authorId"`
	AuthorUsername string     `json:"authorUsername" bson:"authorUsername"`
	AuthorPhotoURL string     `json:"authorPhotoURL" bson:"authorPhotoURL"`
	Type           PostType   `json:"type" bson:"type"`
	Title          string     `json:"title,omitempty" bson:"title,omitempty"`
	Category       string     `json:"category,omitempty" bson:"category,omitempty"`
	Tags           []string   `json:"tags" bson:"tags"`
	Content        string     `json:"content" bson:"content"`
	MediaURL       string     `json:"mediaURL,omitempty" bson:"mediaURL,omitempty"`
	ThumbnailURL   string     `json:"thumbnailURL,omitempty" bson:"thumbnailURL,omitempty"`
	LikesCount     int64      `json:"likesCount" bson:"likesCount"`
	CommentsCount  int64      `json:"commentsCount" bson:"commentsCount"`
	ViewsCount     int64      `json:"viewsCount" bson:"viewsCount"`
	Visibility     Visibility `json:"visibility" bson:"visibility"`
	IsPublished    bool       `json:"isPublished" bson:"isPublished"`
	ScheduledAt    *time.Time `json:"scheduledAt,omitempty" bson:"scheduledAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// SetID implements docstore.Identifiable
func (p *Post) SetID(id string) { p.ID = id }

// TrendingScore weighs engagement: likes count triple, comments double, views a fifth.
func (p Post) TrendingScore() float64 {
	return float64(p.LikesCount)*3 + float64(p.CommentsCount)*2 + float64(p.ViewsCount)/5
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Type        PostType   `json:"type" validate:"omitempty,oneof=text image video reel article"`
	Title       string     `json:"title,omitempty" validate:"omitempty,max=200"`
	Category    string     `json:"category,omitempty" validate:"omitempty,max=40"`
	Tags        []string   `json:"tags,omitempty" validate:"omitempty,max=20,dive,min=1,max=40"`
	Content     string     `json:"content" validate:"required_without=MediaURL,max=5000"`
	MediaURL    string     `json:"mediaURL,omitempty" validate:"omitempty,url"`
	Visibility  Visibility `json:"visibility" validate:"omitempty,oneof=public followers"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

// UpdatePostRequest defines the request body for editing an existing post
type UpdatePostRequest struct {
	Content  string `json:"content" validate:"required,max=5000"`
	MediaURL string `json:"mediaURL,omitempty" validate:"omitempty,url"`
}
