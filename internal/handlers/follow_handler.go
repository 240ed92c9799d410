package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/socialicon/internal/repositories"
)

// FollowHandler handles follow and block requests
type FollowHandler struct {
	followRepository repositories.FollowRepository
	userRepository   repositories.UserRepository
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(followRepo repositories.FollowRepository, userRepo repositories.UserRepository) *FollowHandler {
	return &FollowHandler{
		followRepository: followRepo,
		userRepository:   userRepo,
	}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:id/follow", h.ToggleFollow)
	g.GET("/users/:id/followers", h.GetFollowers)
	g.GET("/users/:id/following", h.GetFollowing)
	g.POST("/users/:id/block", h.ToggleBlock)
}

// ToggleFollow follows or unfollows a user
func (h *FollowHandler) ToggleFollow(c echo.Context) error {
	actor, err := getActor(c, h.userRepository)
	if err != nil {
		return err
	}
	targetID := c.Param("id")
	ctx := c.Request().Context()
	if _, err := h.userRepository.GetUserByID(ctx, targetID); err != nil {
		return toHTTPError(err)
	}
	following, err := h.followRepository.ToggleFollow(ctx, actor, targetID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"userId": targetID, "following": following})
}

// GetFollowers lists the ids of a user's followers
func (h *FollowHandler) GetFollowers(c echo.Context) error {
	ids, err := h.followRepository.GetFollowerIDs(c.Request().Context(), c.Param("id"), intParam(c, "limit", 50, 500))
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"userIds": ids})
}

// GetFollowing lists the ids of the users someone follows
func (h *FollowHandler) GetFollowing(c echo.Context) error {
	ids, err := h.followRepository.GetFollowingIDs(c.Request().Context(), c.Param("id"), intParam(c, "limit", 50, 500))
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"userIds": ids})
}

// ToggleBlock blocks or unblocks a user
func (h *FollowHandler) ToggleBlock(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	targetID := c.Param("id")
	blocked, err := h.followRepository.ToggleBlock(c.Request().Context(), v.ID, targetID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"userId": targetID, "blocked": blocked})
}
