package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/socialicon/internal/identity"
	"github.com/anonto42/socialicon/internal/models"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	v, ok := identity.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "no viewer")
	}
	return c.JSON(http.StatusOK, v)
}

func serve(mw echo.MiddlewareFunc, target, header string) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET("/me", whoami, mw)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthMiddleware(t *testing.T) {
	token, err := SignDevToken(secret, models.JwtCustomClaims{
		UserID: "u1",
		Name:   "Alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	rec := serve(JWTAuthMiddleware(secret), "/me", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"u1"`)
	assert.Contains(t, rec.Body.String(), `"displayName":"Alice"`)

	rec = serve(JWTAuthMiddleware(secret), "/me?token="+token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(JWTAuthMiddleware("other"), "/me", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(JWTAuthMiddleware(secret), "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(JWTAuthMiddleware(secret), "/me", "Token "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAuthMiddlewareRejectsExpired(t *testing.T) {
	token, err := SignDevToken(secret, models.JwtCustomClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	require.NoError(t, err)
	rec := serve(JWTAuthMiddleware(secret), "/me", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type fakeVerifier map[string]*auth.Token

func (f fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if tok, ok := f[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("bad token")
}

func TestFirebaseAuthMiddleware(t *testing.T) {
	verifier := fakeVerifier{"good": {UID: "fb-1", Claims: map[string]interface{}{"name": "Bob", "picture": "https://p/b.png"}}}

	rec := serve(FirebaseAuthMiddleware(verifier), "/me", "Bearer good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"fb-1"`)
	assert.Contains(t, rec.Body.String(), `"photoURL":"https://p/b.png"`)

	rec = serve(FirebaseAuthMiddleware(verifier), "/me", "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
