package models

// Collection names in the document store
const (
	CollectionUsers         = "users"
	CollectionPosts         = "posts"
	CollectionComments      = "comments"
	CollectionNotifications = "notifications"
	CollectionChats         = "chats"
	CollectionMessages      = "messages"
	CollectionFollows       = "follows"
	CollectionBlocks        = "blocks"
	CollectionLikes         = "likes"
	CollectionSavedPosts    = "saved_posts"
	CollectionCommentLikes  = "comment_likes"
)
