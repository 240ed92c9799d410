// Package identity carries the authenticated viewer through request contexts.
package identity

import "context"

// Viewer is the authenticated user on whose behalf a request runs
type Viewer struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

type viewerKey struct{}

// WithViewer returns a context carrying v
func WithViewer(ctx context.Context, v Viewer) context.Context {
	return context.WithValue(ctx, viewerKey{}, v)
}

// FromContext returns the viewer stored in ctx, if any
func FromContext(ctx context.Context) (Viewer, bool) {
	v, ok := ctx.Value(viewerKey{}).(Viewer)
	return v, ok && v.ID != ""
}
