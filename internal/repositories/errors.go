package repositories

import "errors"

var (
	// ErrForbidden is returned when the actor does not own the target or lacks the role.
	ErrForbidden = errors.New("not allowed to modify this resource")
	// ErrSelfAction is returned for follow, block or chat requests aimed at oneself.
	ErrSelfAction = errors.New("cannot target yourself")
	// ErrUsernameTaken is returned when another user already holds the username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrProfileExists is returned when the uid already has a profile.
	ErrProfileExists = errors.New("profile already exists")
	// ErrInvalidParent is returned when a reply points at a comment on another post.
	ErrInvalidParent = errors.New("parent comment does not belong to this post")
	// ErrInvalidInput is returned for requests the validator cannot catch, such as an empty message.
	ErrInvalidInput = errors.New("invalid input")
)
