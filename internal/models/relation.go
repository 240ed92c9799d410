package models

import "time"

// Relation records are existence markers keyed by RelationID(actor, target).
// The presence of the document is the only source of truth for the relationship.

// RelationID builds the composite key actorId_targetId
func RelationID(actorID, targetID string) string {
	return actorID + "_" + targetID
}

// Follow represents an Instagram-style follow relationship
type Follow struct {
	FollowerID string    `json:"followerId" bson:"followerId"`
	FollowedID string    `json:"followedId" bson:"followedId"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// Block hides the blocked user's posts from the blocker
type Block struct {
	BlockerID string    `json:"blockerId" bson:"blockerId"`
	BlockedID string    `json:"blockedId" bson:"blockedId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Like represents a like on a post
type Like struct {
	UserID    string    `json:"userId" bson:"userId"`
	PostID    string    `json:"postId" bson:"postId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// SavedPost represents a bookmarked/saved post by a user
type SavedPost struct {
	UserID    string    `json:"userId" bson:"userId"`
	PostID    string    `json:"postId" bson:"postId"`
	AuthorID  string    `json:"authorId" bson:"authorId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// CommentLike represents a like on a comment
type CommentLike struct {
	UserID    string    `json:"userId" bson:"userId"`
	CommentID string    `json:"commentId" bson:"commentId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
