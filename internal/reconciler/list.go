package reconciler

import (
	"context"
	"sync"

	"github.com/anonto42/socialicon/internal/docstore"
)

// List is a live collection backed by one subscription.
type List[T any] struct {
	mu      sync.Mutex
	items   *Collection[T]
	watcher *Watcher
	updates chan struct{}
}

// Open subscribes to q and keeps a List in sync with it. after, when not
// nil, runs on the delivery goroutine once each batch has been applied.
func Open[T any](ctx context.Context, store docstore.Store, q docstore.Query,
	key func(T) string, decode func(docstore.Document) (T, error), after func([]Event[T])) (*List[T], error) {
	l := &List[T]{
		items:   NewCollection(key),
		updates: make(chan struct{}, 1),
	}
	w, err := Watch(ctx, store, q, decode, func(events []Event[T]) {
		l.mu.Lock()
		l.items.Apply(events)
		l.mu.Unlock()
		if after != nil {
			after(events)
		}
		select {
		case l.updates <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	l.watcher = w
	return l, nil
}

// Items returns a snapshot of the list in arrival order
func (l *List[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.Items()
}

// Updates signals, coalesced, after every applied batch
func (l *List[T]) Updates() <-chan struct{} { return l.updates }

func (l *List[T]) Synced() <-chan struct{} { return l.watcher.Synced() }

func (l *List[T]) Stale() bool { return l.watcher.Stale() }

func (l *List[T]) Close() { l.watcher.Close() }
