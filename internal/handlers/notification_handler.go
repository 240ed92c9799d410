package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/socialicon/internal/notifications"
	"github.com/anonto42/socialicon/internal/repositories"
	"github.com/anonto42/socialicon/internal/session"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	hub                    *session.Hub
	notificationRepository repositories.NotificationRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(hub *session.Hub, notifRepo repositories.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{
		hub:                    hub,
		notificationRepository: notifRepo,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/grouped", h.GetGroupedNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
}

// view returns the viewer's live notification list once it has synced
func (h *NotificationHandler) view(c echo.Context) (*notifications.View, error) {
	s, err := getSession(c, h.hub)
	if err != nil {
		return nil, err
	}
	if err := awaitSynced(c, s.Notifications.Synced()); err != nil {
		return nil, err
	}
	return s.Notifications, nil
}

// GetNotifications returns the viewer's recent notifications, newest first.
// A limit beyond the live window is served by a one-off query.
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	if limit := intParam(c, "limit", 0, 500); limit > notifications.Window {
		viewer, err := getViewer(c)
		if err != nil {
			return err
		}
		ns, err := h.notificationRepository.GetRecent(c.Request().Context(), viewer.ID, limit)
		if err != nil {
			return toHTTPError(err)
		}
		return success(c, http.StatusOK, echo.Map{"notifications": ns})
	}

	v, err := h.view(c)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, echo.Map{
		"notifications": v.Notifications(),
		"unreadCount":   v.UnreadCount(),
		"stale":         v.Stale(),
	})
}

// GetGroupedNotifications buckets recent notifications by age
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	v, err := h.view(c)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, notifications.Group(v.Notifications(), time.Now()))
}

// GetUnreadCount returns the exact unread count, beyond the live window
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	viewer, err := getViewer(c)
	if err != nil {
		return err
	}
	count, err := h.notificationRepository.GetUnreadCount(c.Request().Context(), viewer.ID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"count": count})
}

// MarkAsRead marks one of the viewer's notifications as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	viewer, err := getViewer(c)
	if err != nil {
		return err
	}
	if err := h.notificationRepository.MarkAsRead(c.Request().Context(), viewer.ID, c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllAsRead marks every unread notification of the viewer as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	viewer, err := getViewer(c)
	if err != nil {
		return err
	}
	n, err := h.notificationRepository.MarkAllAsRead(c.Request().Context(), viewer.ID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"updated": n})
}
