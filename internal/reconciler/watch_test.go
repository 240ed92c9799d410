package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/docstore/memory"
)

type note struct {
	ID   string `bson:"-"`
	Text string `bson:"text"`
}

func (n *note) SetID(id string) { n.ID = id }

type guarded struct {
	mu    sync.Mutex
	notes *Collection[note]
	calls int
}

func (g *guarded) apply(events []Event[note]) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.notes.Apply(events)
}

func (g *guarded) snapshot() ([]note, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.notes.Items(), g.calls
}

func newGuarded() *guarded {
	return &guarded{notes: NewCollection(func(n note) string { return n.ID })}
}

func TestWatchAppliesInitialAndLiveChanges(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, "notes", "n1", note{Text: "one"}))

	g := newGuarded()
	w, err := Watch(ctx, store, docstore.NewQuery("notes"), docstore.DecodeAs[note], g.apply)
	require.NoError(t, err)
	defer w.Close()

	<-w.Synced()
	items, _ := g.snapshot()
	require.Len(t, items, 1)
	assert.Equal(t, "one", items[0].Text)

	require.NoError(t, store.Update(ctx, "notes", "n1", map[string]any{"text": "uno"}))
	require.NoError(t, store.Set(ctx, "notes", "n2", note{Text: "two"}))
	assert.Eventually(t, func() bool {
		items, _ := g.snapshot()
		return len(items) == 2 && items[0].ID == "n2" && items[1].Text == "uno"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNoMutationAfterClose(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	g := newGuarded()
	w, err := Watch(ctx, store, docstore.NewQuery("notes"), docstore.DecodeAs[note], g.apply)
	require.NoError(t, err)
	<-w.Synced()

	w.Close()
	_, calls := g.snapshot()

	require.NoError(t, store.Set(ctx, "notes", "late", note{Text: "late"}))
	time.Sleep(50 * time.Millisecond)

	items, after := g.snapshot()
	assert.Equal(t, calls, after)
	assert.Empty(t, items)
}

func TestDecodeFailureIsSkipped(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, "notes", "bad", map[string]any{"text": int64(5)}))
	require.NoError(t, store.Set(ctx, "notes", "good", note{Text: "ok"}))

	g := newGuarded()
	w, err := Watch(ctx, store, docstore.NewQuery("notes"), docstore.DecodeAs[note], g.apply)
	require.NoError(t, err)
	defer w.Close()
	<-w.Synced()

	items, _ := g.snapshot()
	require.Len(t, items, 1)
	assert.Equal(t, "good", items[0].ID)
}

func TestStreamFailureMarksStaleAndKeepsData(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, "notes", "n1", note{Text: "one"}))

	g := newGuarded()
	w, err := Watch(ctx, store, docstore.NewQuery("notes"), docstore.DecodeAs[note], g.apply)
	require.NoError(t, err)
	<-w.Synced()

	store.Disconnect(errors.New("network down"))
	<-w.Done()

	assert.True(t, w.Stale())
	items, _ := g.snapshot()
	assert.Len(t, items, 1)
	w.Close()
}

func TestWatchSubscribeError(t *testing.T) {
	store := memory.New()
	store.FailQueries(docstore.ErrUnavailable)
	_, err := Watch(context.Background(), store, docstore.NewQuery("notes"), docstore.DecodeAs[note], func([]Event[note]) {})
	assert.True(t, docstore.IsUnavailable(err))
}
