package reconciler

import (
	"context"
	"log"
	"sync"

	"github.com/anonto42/socialicon/internal/docstore"
)

// Watcher drives one subscription and hands decoded batches to its apply
// function from a single goroutine.
type Watcher struct {
	sub    docstore.Subscription
	cancel context.CancelFunc
	done   chan struct{}
	synced chan struct{}

	mu  sync.Mutex
	err error
}

// Watch subscribes to q and calls apply for every batch, the initial
// snapshot included. Documents that fail to decode are logged and skipped;
// a failed stream is logged and marks the watcher stale. apply is never
// called after Close returns, so apply must not need a lock the caller of
// Close is holding.
func Watch[T any](ctx context.Context, store docstore.Store, q docstore.Query,
	decode func(docstore.Document) (T, error), apply func([]Event[T])) (*Watcher, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub, err := store.Subscribe(ctx, q)
	if err != nil {
		cancel()
		return nil, err
	}
	w := &Watcher{
		sub:    sub,
		cancel: cancel,
		done:   make(chan struct{}),
		synced: make(chan struct{}),
	}
	go w.run(q.Collection, func(batch []docstore.Change) {
		events := make([]Event[T], 0, len(batch))
		for _, ch := range batch {
			ev := Event[T]{Type: ch.Type, ID: ch.Doc.ID}
			item, err := decode(ch.Doc)
			if err != nil && ch.Type != docstore.Removed {
				log.Printf("reconciler: skipping %s/%s: %v", q.Collection, ch.Doc.ID, err)
				continue
			}
			ev.Item = item
			events = append(events, ev)
		}
		apply(events)
	})
	return w, nil
}

func (w *Watcher) run(collection string, handle func([]docstore.Change)) {
	defer close(w.done)
	first := true
	for batch := range w.sub.Changes() {
		handle(batch)
		if first {
			close(w.synced)
			first = false
		}
	}
	if err := w.sub.Err(); err != nil {
		log.Printf("reconciler: subscription on %s ended: %v", collection, err)
		w.mu.Lock()
		w.err = err
		w.mu.Unlock()
	}
}

// Synced is closed once the initial snapshot has been applied.
func (w *Watcher) Synced() <-chan struct{} { return w.synced }

// Done is closed when the stream has ended and apply will not run again.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Err returns the error that ended the stream, if any
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Stale reports whether the stream failed; data applied so far is retained.
func (w *Watcher) Stale() bool { return w.Err() != nil }

// Close cancels the subscription and waits for the delivery goroutine.
func (w *Watcher) Close() {
	w.cancel()
	w.sub.Close()
	<-w.done
}
