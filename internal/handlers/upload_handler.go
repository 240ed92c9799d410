package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/socialicon/internal/blob"
)

// UploadHandler stores post media before the post itself is created
type UploadHandler struct {
	blobs blob.Store
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(blobs blob.Store) *UploadHandler {
	return &UploadHandler{blobs: blobs}
}

// RegisterUploadRoutes registers upload routes
func (h *UploadHandler) RegisterUploadRoutes(g *echo.Group) {
	g.POST("/uploads", h.UploadPostMedia)
}

// UploadPostMedia stores the "file" field and returns its download URL
func (h *UploadHandler) UploadPostMedia(c echo.Context) error {
	v, err := getViewer(c)
	if err != nil {
		return err
	}
	name, contentType, data, err := readUpload(c, "file")
	if err != nil {
		return err
	}
	if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "video/") {
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "Only images and videos can be uploaded")
	}

	url, err := h.blobs.Put(c.Request().Context(), blob.PostMediaPath(v.ID, name, time.Now()), contentType, data)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusCreated, echo.Map{"url": url, "contentType": contentType})
}
