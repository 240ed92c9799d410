// Package memory is an in-process docstore.Store with server-side
// increments and live change streams. It backs tests and local development.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/anonto42/socialicon/internal/docstore"
)

// Access is the kind of operation a Rule is asked about
type Access int

const (
	Read Access = iota
	Write
)

// Rule emulates server-side security rules. A non-nil error rejects the
// operation; it is wrapped with docstore.ErrPermissionDenied.
type Rule func(access Access, collection, id string) error

type record struct {
	data    map[string]any
	version uint64
}

// Store is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*record
	subs        map[*subscription]struct{}
	version     uint64
	rule        Rule
	queryErr    error
	closed      bool
}

var _ docstore.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]*record),
		subs:        make(map[*subscription]struct{}),
	}
}

// SetRule installs rule; nil allows everything.
func (s *Store) SetRule(rule Rule) {
	s.mu.Lock()
	s.rule = rule
	s.mu.Unlock()
}

// FailQueries makes every Query and Subscribe call fail with err until it is
// called again with nil.
func (s *Store) FailQueries(err error) {
	s.mu.Lock()
	s.queryErr = err
	s.mu.Unlock()
}

// Disconnect terminates every open subscription with err, as a dropped
// connection would.
func (s *Store) Disconnect(err error) {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[*subscription]struct{})
	s.mu.Unlock()
	for sub := range subs {
		sub.fail(err)
	}
}

func (s *Store) check(access Access, collection, id string) error {
	if s.closed {
		return docstore.ErrClosed
	}
	if s.rule == nil {
		return nil
	}
	if err := s.rule(access, collection, id); err != nil {
		return fmt.Errorf("%w: %v", docstore.ErrPermissionDenied, err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, collection string, data any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data any) error {
	return s.Batch(ctx, []docstore.Mutation{docstore.SetOp(collection, id, data)})
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(Read, collection, id); err != nil {
		return docstore.Document{}, err
	}
	rec, ok := s.collections[collection][id]
	if !ok {
		return docstore.Document{}, fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, collection, id)
	}
	return docstore.Document{ID: id, Data: rec.data}.Clone(), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.Batch(ctx, []docstore.Mutation{docstore.UpdateOp(collection, id, fields)})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.Batch(ctx, []docstore.Mutation{docstore.DeleteOp(collection, id)})
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.Update(ctx, collection, id, map[string]any{field: docstore.Inc(delta)})
}

func (s *Store) Query(ctx context.Context, q docstore.Query) (docstore.Page, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Page{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(Read, q.Collection, ""); err != nil {
		return docstore.Page{}, err
	}
	if s.queryErr != nil {
		return docstore.Page{}, s.queryErr
	}
	return docstore.NewPage(s.evaluate(q), q.OrderBy), nil
}

// evaluate must be called with s.mu held.
func (s *Store) evaluate(q docstore.Query) []docstore.Document {
	coll := s.collections[q.Collection]
	docs := make([]docstore.Document, 0, len(coll))
	for id, rec := range coll {
		docs = append(docs, docstore.Document{ID: id, Data: rec.data})
	}
	out := docstore.Evaluate(docs, q)
	for i := range out {
		out[i] = out[i].Clone()
	}
	return out
}

// Batch stages every mutation against a scratch view and commits only when
// all of them succeed.
func (s *Store) Batch(ctx context.Context, mutations []docstore.Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	type key struct{ collection, id string }
	staged := make(map[key]*record)
	current := func(k key) *record {
		if rec, ok := staged[k]; ok {
			return rec
		}
		return s.collections[k.collection][k.id]
	}
	var order []key

	for _, m := range mutations {
		if err := s.check(Write, m.Collection, m.ID); err != nil {
			return err
		}
		k := key{m.Collection, m.ID}
		if _, seen := staged[k]; !seen {
			order = append(order, k)
		}
		switch m.Kind {
		case docstore.MutationSet, docstore.MutationCreate:
			if m.Kind == docstore.MutationCreate && current(k) != nil {
				return fmt.Errorf("%w: %s/%s exists", docstore.ErrConflict, m.Collection, m.ID)
			}
			data, err := docstore.Encode(m.Data)
			if err != nil {
				return err
			}
			staged[k] = &record{data: data}
		case docstore.MutationUpdate:
			cur := current(k)
			if len(m.Guard) > 0 && (cur == nil || !docstore.Match(cur.data, m.Guard)) {
				return fmt.Errorf("%w: %s/%s guard", docstore.ErrConflict, m.Collection, m.ID)
			}
			if cur == nil {
				return fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, m.Collection, m.ID)
			}
			data, err := docstore.ApplyUpdate(cur.data, m.Fields)
			if err != nil {
				return err
			}
			staged[k] = &record{data: data}
		case docstore.MutationDelete:
			staged[k] = nil
		case docstore.MutationDeleteExisting:
			if current(k) == nil {
				return fmt.Errorf("%w: %s/%s missing", docstore.ErrConflict, m.Collection, m.ID)
			}
			staged[k] = nil
		default:
			return fmt.Errorf("unknown mutation kind %d", m.Kind)
		}
	}

	touched := make(map[string]struct{})
	for _, k := range order {
		rec := staged[k]
		coll := s.collections[k.collection]
		if rec == nil {
			if _, ok := coll[k.id]; !ok {
				continue
			}
			delete(coll, k.id)
		} else {
			if coll == nil {
				coll = make(map[string]*record)
				s.collections[k.collection] = coll
			}
			s.version++
			rec.version = s.version
			coll[k.id] = rec
		}
		touched[k.collection] = struct{}{}
	}
	for sub := range s.subs {
		if _, ok := touched[sub.query.Collection]; ok {
			s.refresh(sub)
		}
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, q docstore.Query) (docstore.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(Read, q.Collection, ""); err != nil {
		return nil, err
	}
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	sub := newSubscription(s, q)
	s.subs[sub] = struct{}{}
	if !s.refresh(sub) {
		// The initial snapshot is delivered even when the window is empty.
		sub.push(nil)
	}
	go sub.pump()
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.stopped:
		}
	}()
	return sub, nil
}

// refresh recomputes the window of sub and queues the difference. It
// reports whether a batch was queued. Must be called with s.mu held.
func (s *Store) refresh(sub *subscription) bool {
	docs := s.evaluate(sub.query)
	coll := s.collections[sub.query.Collection]
	next := make(map[string]uint64, len(docs))
	for _, d := range docs {
		next[d.ID] = coll[d.ID].version
	}
	var changes []docstore.Change
	for id := range sub.window {
		if _, still := next[id]; still {
			continue
		}
		data := map[string]any{}
		if rec, ok := coll[id]; ok {
			data = docstore.Document{Data: rec.data}.Clone().Data
		}
		changes = append(changes, docstore.Change{Type: docstore.Removed, Doc: docstore.Document{ID: id, Data: data}})
	}
	for _, d := range docs {
		prev, had := sub.window[d.ID]
		switch {
		case !had:
			changes = append(changes, docstore.Change{Type: docstore.Added, Doc: d})
		case prev != next[d.ID]:
			changes = append(changes, docstore.Change{Type: docstore.Modified, Doc: d})
		}
	}
	sub.window = next
	if len(changes) == 0 {
		return false
	}
	sub.push(changes)
	return true
}

func (s *Store) unsubscribe(sub *subscription) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
}

// Close terminates all subscriptions and rejects further operations.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	subs := s.subs
	s.subs = make(map[*subscription]struct{})
	s.mu.Unlock()
	for sub := range subs {
		sub.Close()
	}
	return nil
}
