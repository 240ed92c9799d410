package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/anonto42/socialicon/internal/comments"
	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
	"github.com/anonto42/socialicon/internal/repositories"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	store                 docstore.Store
	commentRepository     repositories.CommentRepository
	commentLikeRepository repositories.CommentLikeRepository
	userRepository        repositories.UserRepository
	upgrader              websocket.Upgrader
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(store docstore.Store, commentRepo repositories.CommentRepository, commentLikeRepo repositories.CommentLikeRepository, userRepo repositories.UserRepository) *CommentHandler {
	return &CommentHandler{
		store:                 store,
		commentRepository:     commentRepo,
		commentLikeRepository: commentLikeRepo,
		userRepository:        userRepo,
		upgrader:              newUpgrader(),
	}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.GET("/posts/:id/comments", h.GetCommentsByPostID)
	g.GET("/posts/:id/comments/live", h.StreamComments)
	g.POST("/posts/:id/comments", h.CreateComment)
	g.GET("/comments/:id/replies", h.GetReplies)
	g.PUT("/comments/:id", h.UpdateComment)
	g.DELETE("/comments/:id", h.DeleteComment)
	g.POST("/comments/:id/like", h.ToggleCommentLike)
	g.GET("/comments/:id/like", h.GetCommentLikeStatus)
	g.POST("/comments/:id/flag", h.FlagComment)
	g.POST("/comments/:id/hide", h.HideComment)
}

// CreateComment adds a comment, or a reply when parentId is set
func (h *CommentHandler) CreateComment(c echo.Context) error {
	actor, err := getActor(c, h.userRepository)
	if err != nil {
		return err
	}
	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	comment, err := h.commentRepository.AddComment(c.Request().Context(), actor, c.Param("id"), req)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusCreated, comment)
}

// GetCommentsByPostID returns the newest top-level comments of a post
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	view, err := comments.OpenThread(c.Request().Context(), h.store, v.ID, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return h.snapshot(c, view)
}

// GetReplies returns the replies under a comment, oldest first
func (h *CommentHandler) GetReplies(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	view, err := comments.OpenReplies(c.Request().Context(), h.store, v.ID, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return h.snapshot(c, view)
}

// snapshot answers with the first synced state of a comment view
func (h *CommentHandler) snapshot(c echo.Context, view *comments.View) error {
	defer view.Close()
	if err := awaitSynced(c, view.Synced()); err != nil {
		return err
	}
	if view.Stale() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Comments are temporarily unavailable")
	}
	return success(c, http.StatusOK, echo.Map{"comments": view.Comments()})
}

// StreamComments upgrades to a websocket and pushes a comments frame for the
// post's thread on every change until the client disconnects.
func (h *CommentHandler) StreamComments(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	view, err := comments.OpenThread(ctx, h.store, v.ID, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	defer view.Close()
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	defer conn.Close()

	closed := make(chan struct{})
	go readPump(conn, closed)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-view.Updates():
			frame := LiveFrame{Type: "comments", Data: echo.Map{
				"postId":   c.Param("id"),
				"comments": view.Comments(),
				"stale":    view.Stale(),
			}}
			if err := writeFrame(conn, frame); err != nil {
				return nil
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-closed:
			return nil
		}
	}
}

// UpdateComment edits the viewer's own comment
func (h *CommentHandler) UpdateComment(c echo.Context) error {
	actor, err := getActor(c, h.userRepository)
	if err != nil {
		return err
	}
	var req models.UpdateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	comment, err := h.commentRepository.EditComment(c.Request().Context(), actor, c.Param("id"), req)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, comment)
}

// DeleteComment deletes the viewer's own comment and its replies
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	actor, err := getActor(c, h.userRepository)
	if err != nil {
		return err
	}
	if err := h.commentRepository.DeleteComment(c.Request().Context(), actor, c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ToggleCommentLike likes or unlikes a comment
func (h *CommentHandler) ToggleCommentLike(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	commentID := c.Param("id")
	liked, err := h.commentLikeRepository.ToggleCommentLike(c.Request().Context(), v.ID, commentID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"commentId": commentID, "liked": liked})
}

// GetCommentLikeStatus checks if the viewer has liked a comment
func (h *CommentHandler) GetCommentLikeStatus(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	commentID := c.Param("id")
	liked, err := h.commentLikeRepository.HasUserLikedComment(c.Request().Context(), v.ID, commentID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"commentId": commentID, "liked": liked})
}

// FlagComment reports a comment for moderation
func (h *CommentHandler) FlagComment(c echo.Context) error {
	if _, err := getViewer(c); err != nil {
		return err
	}
	if err := h.commentRepository.FlagComment(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HideComment hides a comment; moderators only
func (h *CommentHandler) HideComment(c echo.Context) error {
	actor, err := getActor(c, h.userRepository)
	if err != nil {
		return err
	}
	if err := h.commentRepository.HideComment(c.Request().Context(), actor, c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
