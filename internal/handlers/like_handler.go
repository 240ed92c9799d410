package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/socialicon/internal/repositories"
	"github.com/anonto42/socialicon/internal/session"
)

// LikeHandler handles HTTP requests related to likes
type LikeHandler struct {
	likeRepository repositories.LikeRepository
	userRepository repositories.UserRepository
	hub            *session.Hub
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(likeRepo repositories.LikeRepository, userRepo repositories.UserRepository, hub *session.Hub) *LikeHandler {
	return &LikeHandler{
		likeRepository: likeRepo,
		userRepository: userRepo,
		hub:            hub,
	}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:id/like", h.ToggleLike)
	g.GET("/posts/:id/like", h.GetLikeStatus)
}

// ToggleLike likes or unlikes a post. The viewer's live feed shows the new
// count before the store confirms it.
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	actor, err := getActor(c, h.userRepository)
	if err != nil {
		return err
	}
	postID := c.Param("id")
	liked, err := h.likeRepository.ToggleLike(c.Request().Context(), actor, postID)
	if err != nil {
		return toHTTPError(err)
	}
	if s, ok := h.hub.Lookup(actor.ID); ok {
		delta := int64(-1)
		if liked {
			delta = 1
		}
		s.Feed.AdjustCounter(postID, "likesCount", delta)
	}
	return success(c, http.StatusOK, echo.Map{"postId": postID, "liked": liked})
}

// GetLikeStatus checks if the viewer has liked a post
func (h *LikeHandler) GetLikeStatus(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	postID := c.Param("id")
	liked, err := h.likeRepository.IsLiked(c.Request().Context(), v.ID, postID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"postId": postID, "liked": liked})
}
