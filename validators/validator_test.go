package validators

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/socialicon/internal/models"
)

func TestValidateRequests(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(&models.CreatePostRequest{Content: "hi"}))
	assert.NoError(t, v.Validate(&models.CreatePostRequest{MediaURL: "https://cdn/x.png"}))

	err := v.Validate(&models.CreatePostRequest{})
	require.Error(t, err)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)

	assert.Error(t, v.Validate(&models.CreatePostRequest{Content: "x", Visibility: "friends"}))
	assert.Error(t, v.Validate(&models.CreateProfileRequest{Username: "a!"}))
	assert.NoError(t, v.Validate(&models.CreateProfileRequest{Username: "alice", DisplayName: "Alice"}))
}
