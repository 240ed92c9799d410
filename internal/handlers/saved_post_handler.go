package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/socialicon/internal/repositories"
)

// SavedPostHandler handles bookmark requests
type SavedPostHandler struct {
	savedPostRepository repositories.SavedPostRepository
}

// NewSavedPostHandler creates a new SavedPostHandler
func NewSavedPostHandler(savedPostRepo repositories.SavedPostRepository) *SavedPostHandler {
	return &SavedPostHandler{savedPostRepository: savedPostRepo}
}

// RegisterSavedPostRoutes registers saved post routes
func (h *SavedPostHandler) RegisterSavedPostRoutes(g *echo.Group) {
	g.POST("/posts/:id/save", h.ToggleSave)
	g.GET("/posts/:id/save", h.GetSaveStatus)
}

// ToggleSave bookmarks a post or removes the bookmark
func (h *SavedPostHandler) ToggleSave(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	postID := c.Param("id")
	saved, err := h.savedPostRepository.ToggleSave(c.Request().Context(), v.ID, postID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"postId": postID, "saved": saved})
}

func (h *SavedPostHandler) GetSaveStatus(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	postID := c.Param("id")
	saved, err := h.savedPostRepository.IsSaved(c.Request().Context(), v.ID, postID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"postId": postID, "saved": saved})
}
