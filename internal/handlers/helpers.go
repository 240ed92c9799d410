package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/feed"
	"github.com/anonto42/socialicon/internal/identity"
	"github.com/anonto42/socialicon/internal/models"
	"github.com/anonto42/socialicon/internal/repositories"
	"github.com/anonto42/socialicon/internal/session"
)

// maxUploadSize caps a single media upload
const maxUploadSize = 20 << 20

// ProfileLookup loads the acting user's profile
type ProfileLookup interface {
	GetUserByID(ctx context.Context, uid string) (*models.UserProfile, error)
}

// getViewer returns the authenticated viewer set by the auth middleware
func getViewer(c echo.Context) (identity.Viewer, error) {
	v, ok := identity.FromContext(c.Request().Context())
	if !ok {
		return identity.Viewer{}, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return v, nil
}

// getActor resolves the viewer's profile; mutations need the denormalized
// username and role.
func getActor(c echo.Context, users ProfileLookup) (repositories.Actor, error) {
	v, err := getViewer(c)
	if err != nil {
		return repositories.Actor{}, err
	}
	profile, err := users.GetUserByID(c.Request().Context(), v.ID)
	if err != nil {
		if docstore.IsNotFound(err) {
			return repositories.Actor{}, echo.NewHTTPError(http.StatusForbidden, "Create your profile first")
		}
		return repositories.Actor{}, toHTTPError(err)
	}
	return repositories.ActorFromProfile(profile), nil
}

// getSession returns the viewer's live session from the hub
func getSession(c echo.Context, hub *session.Hub) (*session.Session, error) {
	v, err := getViewer(c)
	if err != nil {
		return nil, err
	}
	s, err := hub.Get(c.Request().Context(), v.ID)
	if err != nil {
		return nil, toHTTPError(err)
	}
	return s, nil
}

// bindAndValidate decodes the request body into req and checks its tags
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	return nil
}

// toHTTPError maps domain errors onto HTTP status codes
func toHTTPError(err error) error {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case docstore.IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, "Resource not found")
	case docstore.IsPermissionDenied(err),
		errors.Is(err, repositories.ErrForbidden),
		errors.Is(err, feed.ErrPrivateTab):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, repositories.ErrUsernameTaken), errors.Is(err, repositories.ErrProfileExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case docstore.IsConflict(err):
		return echo.NewHTTPError(http.StatusConflict, "Concurrent update, retry")
	case errors.Is(err, docstore.ErrInvalidCursor),
		errors.Is(err, repositories.ErrSelfAction),
		errors.Is(err, repositories.ErrInvalidParent),
		errors.Is(err, repositories.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case docstore.IsUnavailable(err), errors.Is(err, session.ErrHubClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Service temporarily unavailable")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

// success writes the standard response envelope
func success(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

// readUpload reads the multipart file field named field
func readUpload(c echo.Context, field string) (name, contentType string, data []byte, err error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", "", nil, echo.NewHTTPError(http.StatusBadRequest, "Missing file field "+strconv.Quote(field))
	}
	if fh.Size > maxUploadSize {
		return "", "", nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File too large")
	}
	f, err := fh.Open()
	if err != nil {
		return "", "", nil, echo.NewHTTPError(http.StatusBadRequest, "Unreadable upload")
	}
	defer f.Close()
	data, err = io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		return "", "", nil, echo.NewHTTPError(http.StatusBadRequest, "Unreadable upload")
	}
	contentType = fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return fh.Filename, contentType, data, nil
}

// intParam reads a positive integer query parameter
func intParam(c echo.Context, name string, def, max int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// awaitSynced waits up to syncWait for a live view's first snapshot. A view
// that is still loading answers with what it has.
func awaitSynced(c echo.Context, synced <-chan struct{}) error {
	t := time.NewTimer(syncWait)
	defer t.Stop()
	select {
	case <-synced:
	case <-t.C:
	case <-c.Request().Context().Done():
		return echo.NewHTTPError(http.StatusRequestTimeout, "Request cancelled")
	}
	return nil
}
