package handlers

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/anonto42/socialicon/internal/middleware"
	"github.com/anonto42/socialicon/internal/models"
)

// devTokenTTL is the lifetime of tokens issued by DevToken
const devTokenTTL = 72 * time.Hour

// AuthHandler issues development tokens when the server runs without
// Firebase. Production clients sign in with Firebase directly.
type AuthHandler struct {
	jwtSecret string
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(jwtSecret string) *AuthHandler {
	return &AuthHandler{jwtSecret: jwtSecret}
}

// RegisterAuthRoutes registers authentication-related routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/dev-token", h.DevToken)
}

// DevTokenRequest defines the request body for a development token
type DevTokenRequest struct {
	UserID   string `json:"userId" validate:"required,max=128"`
	Name     string `json:"name" validate:"omitempty,max=80"`
	PhotoURL string `json:"photoURL" validate:"omitempty,url"`
}

// DevToken signs a token for an arbitrary user id
func (h *AuthHandler) DevToken(c echo.Context) error {
	var req DevTokenRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	now := time.Now()
	claims := models.JwtCustomClaims{
		UserID:   req.UserID,
		Name:     req.Name,
		PhotoURL: req.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(devTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := middleware.SignDevToken(h.jwtSecret, claims)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}
	return success(c, http.StatusOK, echo.Map{"token": token})
}
