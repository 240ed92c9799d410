package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Role is the privilege level of a user
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// CanModerate reports whether the role may hide or flag other users' content
func (r Role) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

// UserProfile is the public profile document; its id is the auth uid
type UserProfile struct {
	ID             string    `json:"id" bson:"-"`
	Username       string    `json:"username" bson:"username"`
	DisplayName    string    `json:"displayName" bson:"displayName"`
	Email          string    `json:"email,omitempty" bson:"email,omitempty"`
	Bio            string    `json:"bio,omitempty" bson:"bio,omitempty"`
	Website        string    `json:"website,omitempty" bson:"website,omitempty"`
	PhotoURL       string    `json:"photoURL,omitempty" bson:"photoURL,omitempty"`
	CoverURL       string    `json:"coverURL,omitempty" bson:"coverURL,omitempty"`
	Role           Role      `json:"role" bson:"role"`
	FollowersCount int64     `json:"followersCount" bson:"followersCount"`
	FollowingCount int64     `json:"followingCount" bson:"followingCount"`
	PostsCount     int64     `json:"postsCount" bson:"postsCount"`
	LikesReceived  int64     `json:"likesReceived" bson:"likesReceived"`
	ViewsReceived  int64     `json:"viewsReceived" bson:"viewsReceived"`
	IsOnline       bool      `json:"isOnline" bson:"isOnline"`
	LastActive     time.Time `json:"lastActive" bson:"lastActive"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
}

// SetID implements docstore.Identifiable
func (u *UserProfile) SetID(id string) { u.ID = id }

// CreateProfileRequest is sent once after sign-up to create the profile document
type CreateProfileRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=30,alphanum"`
	DisplayName string `json:"displayName" validate:"required,min=1,max=50"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"displayName,omitempty" validate:"omitempty,min=1,max=50"`
	Bio         string `json:"bio,omitempty" validate:"omitempty,max=300"`
	Website     string `json:"website,omitempty" validate:"omitempty,url"`
}

// JwtCustomClaims are the claims carried by development tokens
type JwtCustomClaims struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	PhotoURL string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}
