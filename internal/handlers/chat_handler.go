package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/socialicon/internal/models"
	"github.com/anonto42/socialicon/internal/repositories"
	"github.com/anonto42/socialicon/internal/session"
)

// ChatHandler handles direct messaging requests
type ChatHandler struct {
	hub            *session.Hub
	chatRepository repositories.ChatRepository
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(hub *session.Hub, chatRepo repositories.ChatRepository) *ChatHandler {
	return &ChatHandler{hub: hub, chatRepository: chatRepo}
}

// RegisterChatRoutes registers chat-related routes
func (h *ChatHandler) RegisterChatRoutes(g *echo.Group) {
	g.GET("/chats", h.GetChats)
	g.POST("/chats", h.StartChat)
	g.GET("/chats/:id/messages", h.GetMessages)
	g.POST("/chats/:id/messages", h.SendMessage)
	g.POST("/chats/:id/read", h.MarkRead)
	g.POST("/chats/:id/delivered", h.MarkDelivered)
	g.PUT("/chats/:id/typing", h.SetTyping)
	g.DELETE("/chats/:id/subscription", h.CloseConversation)
}

// GetChats lists the viewer's conversations, most recent first
func (h *ChatHandler) GetChats(c echo.Context) error {
	s, err := getSession(c, h.hub)
	if err != nil {
		return err
	}
	if err := awaitSynced(c, s.Chats.Synced()); err != nil {
		return err
	}
	return success(c, http.StatusOK, echo.Map{
		"chats":       s.Chats.Chats(),
		"unreadTotal": s.Chats.Unread(s.ViewerID),
		"stale":       s.Chats.Stale(),
	})
}

// StartChat finds or creates the conversation with another user
func (h *ChatHandler) StartChat(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	var req models.StartChatRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	chat, err := h.chatRepository.FindOrCreateChat(c.Request().Context(), v.ID, req.PartnerID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, chat)
}

// GetMessages opens (or reuses) the live conversation and returns its
// messages oldest first. Opening it marks incoming messages as read.
func (h *ChatHandler) GetMessages(c echo.Context) error {
	s, err := getSession(c, h.hub)
	if err != nil {
		return err
	}
	chatID := c.Param("id")
	if _, err := h.chatRepository.GetChat(c.Request().Context(), s.ViewerID, chatID); err != nil {
		return toHTTPError(err)
	}
	conv, err := s.Conversation(chatID)
	if err != nil {
		return toHTTPError(err)
	}
	if err := awaitSynced(c, conv.Synced()); err != nil {
		return err
	}
	return success(c, http.StatusOK, echo.Map{
		"messages": conv.Messages(),
		"stale":    conv.Stale(),
	})
}

// SendMessage sends a text message, or a media message when the request
// is multipart with a "media" file.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}

	var (
		content string
		media   *repositories.Attachment
	)
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		content = c.FormValue("content")
		if _, err := c.FormFile("media"); err == nil {
			name, contentType, data, err := readUpload(c, "media")
			if err != nil {
				return err
			}
			media = &repositories.Attachment{Filename: name, ContentType: contentType, Data: data}
		}
	} else {
		var req models.SendMessageRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
		content = req.Content
	}

	msg, err := h.chatRepository.SendMessage(c.Request().Context(), v.ID, c.Param("id"), content, media)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusCreated, msg)
}

// MarkRead marks the partner's messages in a chat as read
func (h *ChatHandler) MarkRead(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	n, err := h.chatRepository.MarkRead(c.Request().Context(), v.ID, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"updated": n})
}

// MarkDelivered marks the partner's sent messages in a chat as delivered
func (h *ChatHandler) MarkDelivered(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	n, err := h.chatRepository.MarkDelivered(c.Request().Context(), v.ID, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"updated": n})
}

// SetTyping sets the viewer's typing flag; it clears itself after a pause
func (h *ChatHandler) SetTyping(c echo.Context) error {
	s, err := getSession(c, h.hub)
	if err != nil {
		return err
	}
	var req models.TypingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	chatID := c.Param("id")
	ctx := c.Request().Context()
	if s.Typing == nil {
		err = h.chatRepository.SetTyping(ctx, s.ViewerID, chatID, req.Typing)
	} else {
		err = s.Typing.Set(ctx, chatID, req.Typing)
	}
	if err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CloseConversation drops the live subscription to a chat's messages
func (h *ChatHandler) CloseConversation(c echo.Context) error {
	s, err := getSession(c, h.hub)
	if err != nil {
		return err
	}
	s.CloseConversation(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
