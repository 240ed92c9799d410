package mongo

import (
	"context"
	"log"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anonto42/socialicon/internal/docstore"
)

type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID any `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.M `bson:"fullDocument"`
}

// Subscribe opens a change stream before running the initial query so no
// write between the two is missed. Events are matched against the query in
// process; the limit window is maintained by evicting overflow and
// re-querying after removals.
func (s *Store) Subscribe(ctx context.Context, q docstore.Query) (docstore.Subscription, error) {
	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{
		"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}},
	}}}}
	ctx, cancel := context.WithCancel(ctx)
	cs, err := s.db.Collection(q.Collection).Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, translate(err)
	}
	q.StartAfter = docstore.Cursor{}
	initial, err := s.find(ctx, q)
	if err != nil {
		cs.Close(context.Background())
		cancel()
		return nil, err
	}

	sub := &subscription{
		store:  s,
		query:  q,
		cs:     cs,
		cancel: cancel,
		window: make(map[string]docstore.Document, len(initial)),
		out:    make(chan []docstore.Change),
		done:   make(chan struct{}),
	}
	batch := make([]docstore.Change, len(initial))
	for i, d := range initial {
		sub.window[d.ID] = d
		batch[i] = docstore.Change{Type: docstore.Added, Doc: d}
	}
	go sub.run(ctx, batch)
	return sub, nil
}

type subscription struct {
	store  *Store
	query  docstore.Query
	cs     *mongo.ChangeStream
	cancel context.CancelFunc
	window map[string]docstore.Document
	out    chan []docstore.Change
	done   chan struct{}

	mu   sync.Mutex
	err  error
	once sync.Once
}

func (s *subscription) run(ctx context.Context, initial []docstore.Change) {
	defer close(s.done)
	defer close(s.out)
	defer s.cs.Close(context.Background())

	if !s.send(ctx, initial) {
		return
	}
	for s.cs.Next(ctx) {
		var ev changeEvent
		if err := s.cs.Decode(&ev); err != nil {
			log.Printf("mongo: decode change event: %v", err)
			continue
		}
		changes, err := s.apply(ctx, ev)
		if err != nil {
			s.fail(err)
			return
		}
		if len(changes) > 0 && !s.send(ctx, changes) {
			return
		}
	}
	if err := s.cs.Err(); err != nil && ctx.Err() == nil {
		s.fail(translate(err))
	}
}

func (s *subscription) send(ctx context.Context, batch []docstore.Change) bool {
	select {
	case s.out <- batch:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *subscription) fail(err error) {
	log.Printf("mongo: change stream on %s failed: %v", s.query.Collection, err)
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *subscription) apply(ctx context.Context, ev changeEvent) ([]docstore.Change, error) {
	id := toDocument(bson.M{"_id": ev.DocumentKey.ID}).ID
	prev, tracked := s.window[id]

	if ev.OperationType == "delete" || ev.FullDocument == nil {
		if !tracked {
			return nil, nil
		}
		delete(s.window, id)
		return s.backfill(ctx, []docstore.Change{{Type: docstore.Removed, Doc: prev}})
	}

	doc := toDocument(ev.FullDocument)
	matches := docstore.Match(doc.Data, s.query.Where)
	if matches && s.query.OrderBy != nil {
		_, matches = docstore.Lookup(doc.Data, s.query.OrderBy.Field)
	}
	switch {
	case tracked && matches:
		s.window[id] = doc
		return []docstore.Change{{Type: docstore.Modified, Doc: doc}}, nil
	case tracked:
		delete(s.window, id)
		return s.backfill(ctx, []docstore.Change{{Type: docstore.Removed, Doc: doc}})
	case matches:
		s.window[id] = doc
		return s.evict([]docstore.Change{{Type: docstore.Added, Doc: doc}}), nil
	}
	return nil, nil
}

// evict drops documents that no longer fit the limit window.
func (s *subscription) evict(changes []docstore.Change) []docstore.Change {
	if s.query.Limit <= 0 || len(s.window) <= s.query.Limit {
		return changes
	}
	docs := make([]docstore.Document, 0, len(s.window))
	for _, d := range s.window {
		docs = append(docs, d)
	}
	docstore.SortDocs(docs, s.query.OrderBy)
	for _, d := range docs[s.query.Limit:] {
		delete(s.window, d.ID)
		if len(changes) > 0 && changes[len(changes)-1].Type == docstore.Added && changes[len(changes)-1].Doc.ID == d.ID {
			changes = changes[:len(changes)-1]
			continue
		}
		changes = append(changes, docstore.Change{Type: docstore.Removed, Doc: d})
	}
	return changes
}

// backfill re-queries a limited window after a removal to pull in the next document.
func (s *subscription) backfill(ctx context.Context, changes []docstore.Change) ([]docstore.Change, error) {
	if s.query.Limit <= 0 || len(s.window) >= s.query.Limit {
		return changes, nil
	}
	docs, err := s.store.find(ctx, s.query)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if _, ok := s.window[d.ID]; ok {
			continue
		}
		s.window[d.ID] = d
		changes = append(changes, docstore.Change{Type: docstore.Added, Doc: d})
	}
	return s.evict(changes), nil
}

func (s *subscription) Changes() <-chan []docstore.Change { return s.out }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}
