package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/anonto42/socialicon/internal/chat"
	"github.com/anonto42/socialicon/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// LiveFrame is one push to a live client
type LiveFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// LiveHandler streams session updates over a websocket
type LiveHandler struct {
	hub      *session.Hub
	upgrader websocket.Upgrader
}

// NewLiveHandler creates a new LiveHandler
func NewLiveHandler(hub *session.Hub) *LiveHandler {
	return &LiveHandler{hub: hub, upgrader: newUpgrader()}
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// RegisterLiveRoutes registers the websocket route
func (h *LiveHandler) RegisterLiveRoutes(g *echo.Group) {
	g.GET("/live", h.Serve)
}

// Serve upgrades the connection and pushes a frame every time the
// viewer's feed, notifications, chat list or an open conversation change.
// Closing the last connection closes the open conversations.
func (h *LiveHandler) Serve(c echo.Context) error {
	s, err := getSession(c, h.hub)
	if err != nil {
		return err
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return nil
	}
	att := s.Attach()
	defer att.Detach()
	defer conn.Close()

	closed := make(chan struct{})
	go readPump(conn, closed)

	frames := []func() LiveFrame{
		func() LiveFrame { return feedFrame(s) },
		func() LiveFrame { return notificationsFrame(s) },
		func() LiveFrame { return chatsFrame(s) },
	}
	for _, f := range frames {
		if err := writeFrame(conn, f()); err != nil {
			return nil
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		var frame LiveFrame
		select {
		case <-s.Feed.Updates():
			frame = feedFrame(s)
		case <-s.Notifications.Updates():
			frame = notificationsFrame(s)
		case <-s.Chats.Updates():
			frame = chatsFrame(s)
		case <-att.ConversationUpdates():
			for _, conv := range att.ChangedConversations() {
				if err := writeFrame(conn, messagesFrame(conv)); err != nil {
					log.Printf("live %s: write: %v", s.ViewerID, err)
					return nil
				}
			}
			continue
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
			continue
		case <-s.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
				time.Now().Add(writeWait))
			return nil
		case <-closed:
			return nil
		}
		if err := writeFrame(conn, frame); err != nil {
			log.Printf("live %s: write: %v", s.ViewerID, err)
			return nil
		}
	}
}

// readPump discards client messages and keeps the read deadline fresh
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, frame LiveFrame) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}

func feedFrame(s *session.Session) LiveFrame {
	return LiveFrame{Type: "feed", Data: echo.Map{
		"posts":   s.Feed.Posts(),
		"hasMore": s.Feed.HasMore(),
		"stale":   s.Feed.Stale(),
	}}
}

func notificationsFrame(s *session.Session) LiveFrame {
	return LiveFrame{Type: "notifications", Data: echo.Map{
		"notifications": s.Notifications.Notifications(),
		"unreadCount":   s.Notifications.UnreadCount(),
	}}
}

func messagesFrame(conv *chat.Conversation) LiveFrame {
	return LiveFrame{Type: "messages", Data: echo.Map{
		"chatId":   conv.ChatID,
		"messages": conv.Messages(),
		"stale":    conv.Stale(),
	}}
}

func chatsFrame(s *session.Session) LiveFrame {
	return LiveFrame{Type: "chats", Data: echo.Map{
		"chats":       s.Chats.Chats(),
		"unreadTotal": s.Chats.Unread(s.ViewerID),
	}}
}
