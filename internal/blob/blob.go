// Package blob stores uploaded media and returns its public URL.
package blob

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
)

// Store is the blob storage contract.
type Store interface {
	Put(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
}

// Bucket writes objects to a Cloud Storage bucket obtained from the Firebase app.
type Bucket struct {
	handle *storage.BucketHandle
	name   string
}

// NewBucket wraps a bucket handle
func NewBucket(handle *storage.BucketHandle, name string) *Bucket {
	return &Bucket{handle: handle, name: name}
}

// Put uploads data and returns its Firebase download URL
func (b *Bucket) Put(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	w := b.handle.Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}
	return DownloadURL(b.name, objectPath), nil
}

// DownloadURL is the public media URL for an object in bucket
func DownloadURL(bucket, objectPath string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media", bucket, url.PathEscape(objectPath))
}

// Object is an upload held by Memory
type Object struct {
	ContentType string
	Data        []byte
}

// Memory keeps uploads in process
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

func (m *Memory) Put(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectPath] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
	return "memory://" + objectPath, nil
}

// Get returns a stored object
func (m *Memory) Get(objectPath string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[objectPath]
	return o, ok
}

// PostMediaPath is posts/<uid>/<unixms>_<name>
func PostMediaPath(uid, filename string, at time.Time) string {
	return stamped("posts/"+uid, filename, at)
}

// ChatMediaPath is chats/<chatId>/<unixms>_<name>
func ChatMediaPath(chatID, filename string, at time.Time) string {
	return stamped("chats/"+chatID, filename, at)
}

func AvatarPath(uid, filename string, at time.Time) string {
	return stamped("avatars/"+uid, filename, at)
}

func CoverPath(uid, filename string, at time.Time) string {
	return stamped("covers/"+uid, filename, at)
}

func stamped(dir, filename string, at time.Time) string {
	name := strings.ReplaceAll(path.Base(filename), " ", "_")
	if name == "." || name == "/" {
		name = "upload"
	}
	return fmt.Sprintf("%s/%d_%s", dir, at.UnixMilli(), name)
}
