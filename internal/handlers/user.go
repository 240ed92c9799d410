package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/socialicon/internal/blob"
	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/feed"
	"github.com/anonto42/socialicon/internal/models"
	"github.com/anonto42/socialicon/internal/repositories"
)

// UserHandler handles user profile related HTTP requests
type UserHandler struct {
	userRepository   repositories.UserRepository
	followRepository repositories.FollowRepository
	browser          *feed.Browser
	blobs            blob.Store
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, followRepo repositories.FollowRepository, browser *feed.Browser, blobs blob.Store) *UserHandler {
	return &UserHandler{
		userRepository:   userRepo,
		followRepository: followRepo,
		browser:          browser,
		blobs:            blobs,
	}
}

// RegisterProfileRoutes registers user profile routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/users/me", h.GetProfile)
	g.POST("/users/me", h.CreateProfile)
	g.PUT("/users/me", h.UpdateProfile)
	g.POST("/users/me/photo", h.UploadImage(repositories.ImagePhoto))
	g.POST("/users/me/cover", h.UploadImage(repositories.ImageCover))
	g.PUT("/users/me/presence", h.Heartbeat)
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/by-username/:username", h.GetUserByUsername)
	g.GET("/users/:id", h.GetUser)
	g.GET("/users/:id/posts", h.GetUserPosts)
}

// GetProfile returns the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(c.Request().Context(), v.ID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, user)
}

// CreateProfile creates the profile document once after sign-up
func (h *UserHandler) CreateProfile(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	var req models.CreateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.DisplayName == "" {
		req.DisplayName = v.DisplayName
	}
	user, err := h.userRepository.CreateProfile(c.Request().Context(), v.ID, req, v.PhotoURL)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusCreated, user)
}

// UpdateProfile edits name, bio and website
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	var req models.UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.userRepository.UpdateProfile(ctx, v.ID, req); err != nil {
		return toHTTPError(err)
	}
	user, err := h.userRepository.GetUserByID(ctx, v.ID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, user)
}

// UploadImage stores a new profile photo or cover and records its URL
func (h *UserHandler) UploadImage(field repositories.ImageField) echo.HandlerFunc {
	return func(c echo.Context) error {
		v, err := getViewer(c)
		if err != nil {
			return err
		}
		name, contentType, data, err := readUpload(c, "file")
		if err != nil {
			return err
		}
		path := blob.AvatarPath(v.ID, name, time.Now())
		if field == repositories.ImageCover {
			path = blob.CoverPath(v.ID, name, time.Now())
		}
		ctx := c.Request().Context()
		url, err := h.blobs.Put(ctx, path, contentType, data)
		if err != nil {
			return toHTTPError(err)
		}
		if err := h.userRepository.SetImage(ctx, v.ID, field, url); err != nil {
			return toHTTPError(err)
		}
		return success(c, http.StatusOK, echo.Map{string(field): url})
	}
}

// Heartbeat marks the viewer online and refreshes lastActive
func (h *UserHandler) Heartbeat(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	if err := h.userRepository.SetPresence(c.Request().Context(), v.ID, true); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetUser returns a profile along with the viewer's relation to it
func (h *UserHandler) GetUser(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	user, err := h.userRepository.GetUserByID(ctx, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	return h.respondWithRelation(c, v.ID, user)
}

// GetUserByUsername resolves a profile by username
func (h *UserHandler) GetUserByUsername(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByUsername(c.Request().Context(), c.Param("username"))
	if err != nil {
		return toHTTPError(err)
	}
	return h.respondWithRelation(c, v.ID, user)
}

func (h *UserHandler) respondWithRelation(c echo.Context, viewerID string, user *models.UserProfile) error {
	ctx := c.Request().Context()
	following, blocked := false, false
	if viewerID != user.ID {
		var err error
		if following, err = h.followRepository.IsFollowing(ctx, viewerID, user.ID); err != nil {
			return toHTTPError(err)
		}
		if blocked, err = h.followRepository.IsBlocked(ctx, viewerID, user.ID); err != nil {
			return toHTTPError(err)
		}
	}
	return success(c, http.StatusOK, echo.Map{
		"user":        user,
		"isFollowing": following,
		"isBlocked":   blocked,
		"isSelf":      viewerID == user.ID,
	})
}

// GetUserPosts lists one profile tab: posts, reels, likes or saved. Pass
// the returned nextCursor as ?cursor= to fetch the following page.
func (h *UserHandler) GetUserPosts(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	tab := feed.ProfileTab(c.QueryParam("tab"))
	switch tab {
	case "":
		tab = feed.ProfilePosts
	case feed.ProfilePosts, feed.ProfileReels, feed.ProfileLikes, feed.ProfileSaved:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown profile tab")
	}
	var cursor docstore.Cursor
	if token := c.QueryParam("cursor"); token != "" {
		if cursor, err = docstore.ParseCursor(token); err != nil {
			return toHTTPError(err)
		}
	}
	page, err := h.browser.Profile(c.Request().Context(), v.ID, c.Param("id"), tab, cursor)
	if err != nil {
		return toHTTPError(err)
	}
	next := ""
	if page.HasMore {
		if next, err = page.Cursor.Token(); err != nil {
			return toHTTPError(err)
		}
	}
	return success(c, http.StatusOK, echo.Map{"posts": page.Posts, "tab": tab, "nextCursor": next})
}

// SearchUsers searches users by username prefix
func (h *UserHandler) SearchUsers(c echo.Context) error {
	users, err := h.userRepository.SearchUsers(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"users": users})
}
