package models

import "time"

// MessageStatus is the delivery state of a chat message
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

// Chat is a two-participant conversation with per-participant unread counters and typing flags
type Chat struct {
	ID            string           `json:"id" bson:"-"`
	Participants  []string         `json:"participants" bson:"participants"`
	LastMessage   string           `json:"lastMessage" bson:"lastMessage"`
	LastMessageAt time.Time        `json:"lastMessageAt" bson:"lastMessageAt"`
	UnreadCount   map[string]int64 `json:"unreadCount" bson:"unreadCount"`
	TypingStatus  map[string]bool  `json:"typingStatus" bson:"typingStatus"`
	CreatedAt     time.Time        `json:"createdAt" bson:"createdAt"`
}

// SetID implements docstore.Identifiable
func (c *Chat) SetID(id string) { c.ID = id }

// Partner returns the other participant of the chat
func (c Chat) Partner(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// HasParticipant reports whether userID takes part in the chat
func (c Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Message is a single chat message
type Message struct {
	ID        string        `json:"id" bson:"-"`
	ChatID    string        `json:"chatId" bson:"chatId"`
	SenderID  string        `json:"senderId" bson:"senderId"`
	Content   string        `json:"content" bson:"content"`
	MediaURL  string        `json:"mediaURL,omitempty" bson:"mediaURL,omitempty"`
	MediaType string        `json:"mediaType,omitempty" bson:"mediaType,omitempty"`
	Status    MessageStatus `json:"status" bson:"status"`
	CreatedAt time.Time     `json:"createdAt" bson:"createdAt"`
}

// SetID implements docstore.Identifiable
func (m *Message) SetID(id string) { m.ID = id }

// StartChatRequest opens (or finds) the conversation with another user
type StartChatRequest struct {
	PartnerID string `json:"partnerId" validate:"required"`
}

// SendMessageRequest defines the request body for sending a text message
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// TypingRequest toggles the viewer's typing flag in a chat
type TypingRequest struct {
	Typing bool `json:"typing"`
}
