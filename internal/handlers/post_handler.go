package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/socialicon/internal/models"
	"github.com/anonto42/socialicon/internal/repositories"
	"github.com/anonto42/socialicon/internal/visibility"
)

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository repositories.PostRepository
	userRepository repositories.UserRepository
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postRepo repositories.PostRepository, userRepo repositories.UserRepository) *PostHandler {
	return &PostHandler{
		postRepository: postRepo,
		userRepository: userRepo,
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:id", h.GetPost)
	g.PUT("/posts/:id", h.UpdatePost)
	g.DELETE("/posts/:id", h.DeletePost)
	g.POST("/posts/:id/view", h.RecordView)
}

// CreatePost creates a new post
func (h *PostHandler) CreatePost(c echo.Context) error {
	actor, err := getActor(c, h.userRepository)
	if err != nil {
		return err
	}
	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	post, err := h.postRepository.CreatePost(c.Request().Context(), actor, req)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusCreated, post)
}

// GetPost retrieves a post the viewer may see
func (h *PostHandler) GetPost(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	post, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	if !visibility.IsVisible(*post, v.ID, time.Now()) {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}
	return success(c, http.StatusOK, post)
}

// UpdatePost edits the content of the viewer's own post
func (h *PostHandler) UpdatePost(c echo.Context) error {
	actor, err := getActor(c, h.userRepository)
	if err != nil {
		return err
	}
	var req models.UpdatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	post, err := h.postRepository.UpdatePost(c.Request().Context(), actor, c.Param("id"), req)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, post)
}

// DeletePost deletes a post owned by the viewer, or any post for moderators
func (h *PostHandler) DeletePost(c echo.Context) error {
	actor, err := getActor(c, h.userRepository)
	if err != nil {
		return err
	}
	if err := h.postRepository.DeletePost(c.Request().Context(), actor, c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RecordView counts a view of the post
func (h *PostHandler) RecordView(c echo.Context) error {
	if _, err := getViewer(c); err != nil {
		return err
	}
	if err := h.postRepository.RecordView(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
