// Package feed assembles the home feed and the other post listings a viewer
// browses: explore, reels and profile tabs.
package feed

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/socialicon/internal/docstore"
	"github.com/anonto42/socialicon/internal/models"
	"github.com/anonto42/socialicon/internal/reconciler"
	"github.com/anonto42/socialicon/internal/visibility"
)

const (
	DefaultPageSize   = 40
	DefaultLiveWindow = 50
)

// SnapshotCache persists the last assembled feed so it can be served as
// stale data when the store is unreachable.
type SnapshotCache interface {
	Save(ctx context.Context, key string, posts []models.Post) error
	Load(ctx context.Context, key string) ([]models.Post, error)
}

// Options tunes an Assembler. Zero values take defaults.
type Options struct {
	PageSize   int
	LiveWindow int
	Now        func() time.Time
	Cache      SnapshotCache
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.LiveWindow <= 0 {
		o.LiveWindow = DefaultLiveWindow
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Assembler merges paginated public pages with live public and own-post
// windows and the viewer's follow and block sets. All watcher callbacks and
// API calls serialize on mu.
type Assembler struct {
	store    docstore.Store
	viewerID string
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	pages     *reconciler.Collection[models.Post]
	live      *reconciler.Collection[models.Post]
	own       *reconciler.Collection[models.Post]
	following map[string]bool
	blocked   map[string]bool
	pending   map[string]map[string]int64
	filter    Filter
	cursor    docstore.Cursor
	hasMore   bool
	loading   bool
	fetchErr  error
	watchers  []*reconciler.Watcher

	updates chan struct{}
}

// NewAssembler creates an assembler for viewerID. Call Start to load it.
func NewAssembler(store docstore.Store, viewerID string, opts Options) *Assembler {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Assembler{
		store:    store,
		viewerID: viewerID,
		opts:     opts.withDefaults(),
		ctx:      ctx,
		cancel:   cancel,
		updates:  make(chan struct{}, 1),
		filter:   Filter{Tab: TabLatest},
	}
	a.reset()
	return a
}

func postKey(p models.Post) string { return p.ID }

func (a *Assembler) reset() {
	a.pages = reconciler.NewCollection(postKey)
	a.live = reconciler.NewCollection(postKey)
	a.own = reconciler.NewCollection(postKey)
	a.following = make(map[string]bool)
	a.blocked = make(map[string]bool)
	a.pending = make(map[string]map[string]int64)
	a.cursor = docstore.Cursor{}
	a.hasMore = false
	a.fetchErr = nil
}

func (a *Assembler) cacheKey() string { return "feed:" + a.viewerID }

// publicQuery is the base query for every public window.
func (a *Assembler) publicQuery() docstore.Query {
	return docstore.NewQuery(models.CollectionPosts).
		Filter("visibility", docstore.OpEqual, string(models.VisibilityPublic)).
		Sorted("createdAt", true)
}

// Start opens the live streams and fetches the first page. Failures are
// logged and leave the assembler stale; a cached snapshot is served when
// the first page cannot be fetched. Start is called once; Refresh restarts.
func (a *Assembler) Start(ctx context.Context) error {
	a.startWatchers()

	page, err := a.store.Query(ctx, a.publicQuery().Window(a.opts.PageSize))
	if err != nil {
		log.Printf("feed: first page for %s failed: %v", a.viewerID, err)
		a.mu.Lock()
		a.fetchErr = err
		a.mu.Unlock()
		a.loadSnapshot(ctx)
		a.notify()
		return err
	}
	posts := decodePosts(page.Docs)

	a.mu.Lock()
	a.pages.Reset(posts)
	a.cursor = page.Cursor
	a.hasMore = len(page.Docs) == a.opts.PageSize
	a.fetchErr = nil
	a.mu.Unlock()

	a.saveSnapshot(ctx)
	a.notify()
	return nil
}

func (a *Assembler) startWatchers() {
	decode := docstore.DecodeAs[models.Post]
	watch := func(q docstore.Query, apply func([]reconciler.Event[models.Post])) {
		w, err := reconciler.Watch(a.ctx, a.store, q, decode, apply)
		if err != nil {
			log.Printf("feed: subscribe %s for %s failed: %v", q.Collection, a.viewerID, err)
			a.mu.Lock()
			a.fetchErr = err
			a.mu.Unlock()
			return
		}
		a.mu.Lock()
		a.watchers = append(a.watchers, w)
		a.mu.Unlock()
	}

	watch(a.publicQuery().Window(a.opts.LiveWindow), a.applyLive)
	watch(docstore.NewQuery(models.CollectionPosts).
		Filter("authorId", docstore.OpEqual, a.viewerID).
		Sorted("createdAt", true).
		Window(a.opts.LiveWindow), a.applyOwn)

	relations := func(collection, actorField, targetField string, set func() map[string]bool) {
		w, err := reconciler.Watch(a.ctx, a.store,
			docstore.NewQuery(collection).Filter(actorField, docstore.OpEqual, a.viewerID),
			func(d docstore.Document) (string, error) {
				v, _ := docstore.Lookup(d.Data, targetField)
				s, _ := v.(string)
				return s, nil
			},
			func(events []reconciler.Event[string]) {
				a.mu.Lock()
				m := set()
				for _, ev := range events {
					target := ev.Item
					if target == "" {
						target = strings.TrimPrefix(ev.ID, a.viewerID+"_")
					}
					if ev.Type == docstore.Removed {
						delete(m, target)
					} else {
						m[target] = true
					}
				}
				a.mu.Unlock()
				a.notify()
			})
		if err != nil {
			log.Printf("feed: subscribe %s for %s failed: %v", collection, a.viewerID, err)
			a.mu.Lock()
			a.fetchErr = err
			a.mu.Unlock()
			return
		}
		a.mu.Lock()
		a.watchers = append(a.watchers, w)
		a.mu.Unlock()
	}
	relations(models.CollectionFollows, "followerId", "followedId", func() map[string]bool { return a.following })
	relations(models.CollectionBlocks, "blockerId", "blockedId", func() map[string]bool { return a.blocked })
}

// applyLive merges the live public window. Modified posts also refresh the
// paginated copy; a removal is confirmed against the store before it drops
// the paginated copy, since leaving a limited window is not a deletion.
func (a *Assembler) applyLive(events []reconciler.Event[models.Post]) {
	var confirm []string
	a.mu.Lock()
	a.live.Apply(events)
	for _, ev := range events {
		switch ev.Type {
		case docstore.Added, docstore.Modified:
			a.pages.Replace(ev.Item)
			delete(a.pending, ev.ID)
		case docstore.Removed:
			if a.pages.Has(ev.ID) {
				confirm = append(confirm, ev.ID)
			}
		}
	}
	a.mu.Unlock()

	for _, id := range confirm {
		doc, err := a.store.Get(a.ctx, models.CollectionPosts, id)
		a.mu.Lock()
		switch {
		case docstore.IsNotFound(err):
			a.pages.Remove(id)
		case err != nil:
			log.Printf("feed: confirm removal of %s: %v", id, err)
		default:
			if p, err := docstore.DecodeAs[models.Post](doc); err == nil {
				a.pages.Replace(p)
			}
		}
		a.mu.Unlock()
	}
	a.notify()
}

func (a *Assembler) applyOwn(events []reconciler.Event[models.Post]) {
	a.mu.Lock()
	a.own.Apply(events)
	for _, ev := range events {
		switch ev.Type {
		case docstore.Added, docstore.Modified:
			a.pages.Replace(ev.Item)
			a.live.Replace(ev.Item)
			delete(a.pending, ev.ID)
		case docstore.Removed:
			a.pages.Remove(ev.ID)
			a.live.Remove(ev.ID)
		}
	}
	a.mu.Unlock()
	a.notify()
}

// LoadMore appends the next page. It is a no-op while another page is
// loading or once the last page has been seen.
func (a *Assembler) LoadMore(ctx context.Context) (int, error) {
	a.mu.Lock()
	if a.loading || !a.hasMore {
		a.mu.Unlock()
		return 0, nil
	}
	a.loading = true
	cursor := a.cursor
	a.mu.Unlock()

	page, err := a.store.Query(ctx, a.publicQuery().Window(a.opts.PageSize).After(cursor))

	a.mu.Lock()
	a.loading = false
	if err != nil {
		a.fetchErr = err
		a.mu.Unlock()
		log.Printf("feed: next page for %s failed: %v", a.viewerID, err)
		a.notify()
		return 0, err
	}
	added := a.pages.AppendPage(decodePosts(page.Docs))
	if !page.Cursor.IsZero() {
		a.cursor = page.Cursor
	}
	a.hasMore = len(page.Docs) == a.opts.PageSize
	a.fetchErr = nil
	a.mu.Unlock()

	a.saveSnapshot(ctx)
	a.notify()
	return added, nil
}

// SetFilter changes the client-side view. The underlying streams do not
// depend on the filter, so nothing is resubscribed.
func (a *Assembler) SetFilter(f Filter) {
	if f.Tab == "" {
		f.Tab = TabLatest
	}
	a.mu.Lock()
	a.filter = f
	a.mu.Unlock()
	a.notify()
}

func (a *Assembler) Filter() Filter {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.filter
}

// Posts returns the ordered, filtered feed.
func (a *Assembler) Posts() []models.Post {
	a.mu.Lock()
	raw := a.rawLocked()
	in := Input{
		ViewerID:  a.viewerID,
		Filter:    a.filter,
		Following: copySet(a.following),
		Blocked:   copySet(a.blocked),
		Now:       a.opts.Now(),
	}
	a.mu.Unlock()
	return Assemble(raw, in)
}

// rawLocked merges the sources, freshest first, and overlays optimistic
// counter adjustments.
func (a *Assembler) rawLocked() []models.Post {
	raw := make([]models.Post, 0, a.live.Len()+a.own.Len()+a.pages.Len())
	raw = append(raw, a.live.Items()...)
	raw = append(raw, a.own.Items()...)
	raw = append(raw, a.pages.Items()...)
	for i := range raw {
		if deltas, ok := a.pending[raw[i].ID]; ok {
			raw[i].LikesCount += deltas["likesCount"]
			raw[i].CommentsCount += deltas["commentsCount"]
			raw[i].ViewsCount += deltas["viewsCount"]
		}
	}
	return raw
}

// TrendingTags ranks tags over the visible live window.
func (a *Assembler) TrendingTags(n int) []TagCount {
	a.mu.Lock()
	posts := visibility.Filter(a.live.Items(), a.viewerID, a.opts.Now())
	a.mu.Unlock()
	return TrendingTags(posts, n)
}

// AdjustCounter records an optimistic counter change for postID. The next
// server snapshot of the post replaces it.
func (a *Assembler) AdjustCounter(postID, field string, delta int64) {
	a.mu.Lock()
	deltas, ok := a.pending[postID]
	if !ok {
		deltas = make(map[string]int64)
		a.pending[postID] = deltas
	}
	deltas[field] += delta
	a.mu.Unlock()
	a.notify()
}

// WaitSynced blocks until every live stream has applied its initial snapshot.
func (a *Assembler) WaitSynced(ctx context.Context) error {
	a.mu.Lock()
	watchers := append([]*reconciler.Watcher(nil), a.watchers...)
	a.mu.Unlock()
	for _, w := range watchers {
		select {
		case <-w.Synced():
		case <-w.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (a *Assembler) HasMore() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasMore
}

// Stale reports whether the last fetch or any live stream failed.
func (a *Assembler) Stale() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fetchErr != nil {
		return true
	}
	for _, w := range a.watchers {
		if w.Stale() {
			return true
		}
	}
	return false
}

// Refresh tears down every stream and starts over from the first page.
func (a *Assembler) Refresh(ctx context.Context) error {
	a.stopWatchers()
	a.mu.Lock()
	a.reset()
	a.mu.Unlock()
	return a.Start(ctx)
}

// Updates signals, coalesced, whenever the assembled feed may have changed.
func (a *Assembler) Updates() <-chan struct{} { return a.updates }

// Close stops all streams and persists the final snapshot.
func (a *Assembler) Close() {
	a.cancel()
	a.stopWatchers()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.saveSnapshot(ctx)
}

func (a *Assembler) stopWatchers() {
	a.mu.Lock()
	watchers := a.watchers
	a.watchers = nil
	a.mu.Unlock()
	for _, w := range watchers {
		w.Close()
	}
}

func (a *Assembler) notify() {
	select {
	case a.updates <- struct{}{}:
	default:
	}
}

func (a *Assembler) saveSnapshot(ctx context.Context) {
	if a.opts.Cache == nil {
		return
	}
	a.mu.Lock()
	posts := Assemble(a.rawLocked(), Input{ViewerID: a.viewerID, Filter: Filter{Tab: TabLatest}, Now: a.opts.Now()})
	a.mu.Unlock()
	if len(posts) == 0 {
		return
	}
	if err := a.opts.Cache.Save(ctx, a.cacheKey(), posts); err != nil {
		log.Printf("feed: save snapshot for %s: %v", a.viewerID, err)
	}
}

func (a *Assembler) loadSnapshot(ctx context.Context) {
	if a.opts.Cache == nil {
		return
	}
	posts, err := a.opts.Cache.Load(ctx, a.cacheKey())
	if err != nil {
		log.Printf("feed: load snapshot for %s: %v", a.viewerID, err)
		return
	}
	a.mu.Lock()
	a.pages.Reset(posts)
	a.mu.Unlock()
}

func decodePosts(docs []docstore.Document) []models.Post {
	posts := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		p, err := docstore.DecodeAs[models.Post](d)
		if err != nil {
			log.Printf("feed: skipping post %s: %v", d.ID, err)
			continue
		}
		posts = append(posts, p)
	}
	return posts
}

func copySet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
