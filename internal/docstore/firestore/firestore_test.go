package firestore

import (
	"errors"
	"testing"

	fs "cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/anonto42/socialicon/internal/docstore"
)

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.True(t, docstore.IsNotFound(translate(status.Error(codes.NotFound, "missing"))))
	assert.True(t, docstore.IsPermissionDenied(translate(status.Error(codes.PermissionDenied, "rules"))))
	assert.True(t, docstore.IsUnavailable(translate(status.Error(codes.Unavailable, "offline"))))

	plain := errors.New("boom")
	assert.Equal(t, plain, translate(plain))
}

func TestUpdatesMapIncrements(t *testing.T) {
	got := updates(map[string]any{"likesCount": docstore.Inc(2)})
	assert.Len(t, got, 1)
	assert.Equal(t, "likesCount", got[0].Path)
	_, untranslated := got[0].Value.(docstore.Increment)
	assert.False(t, untranslated)
}

func TestChangeType(t *testing.T) {
	assert.Equal(t, docstore.Added, changeType(fs.DocumentAdded))
	assert.Equal(t, docstore.Modified, changeType(fs.DocumentModified))
	assert.Equal(t, docstore.Removed, changeType(fs.DocumentRemoved))
}
