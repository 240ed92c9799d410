// Package firestore implements docstore.Store on Cloud Firestore through the
// Firebase Admin SDK client.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	fs "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/anonto42/socialicon/internal/docstore"
)

// Store wraps a Firestore client
type Store struct {
	client *fs.Client
}

var _ docstore.Store = (*Store)(nil)

// New wraps client. The Store owns the client and closes it on Close.
func New(client *fs.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Create(ctx context.Context, collection string, data any) (string, error) {
	m, err := docstore.Encode(data)
	if err != nil {
		return "", err
	}
	ref, _, err := s.client.Collection(collection).Add(ctx, m)
	if err != nil {
		return "", translate(err)
	}
	return ref.ID, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data any) error {
	m, err := docstore.Encode(data)
	if err != nil {
		return err
	}
	_, err = s.client.Collection(collection).Doc(id).Set(ctx, m)
	return translate(err)
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return docstore.Document{}, translate(err)
	}
	return fromSnapshot(snap), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, updates(fields))
	return translate(err)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	return translate(err)
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.Update(ctx, collection, id, map[string]any{field: docstore.Inc(delta)})
}

func (s *Store) Query(ctx context.Context, q docstore.Query) (docstore.Page, error) {
	snaps, err := s.build(q).Documents(ctx).GetAll()
	if err != nil {
		return docstore.Page{}, translate(err)
	}
	docs := make([]docstore.Document, len(snaps))
	for i, snap := range snaps {
		docs[i] = fromSnapshot(snap)
	}
	return docstore.NewPage(docs, q.OrderBy), nil
}

// build translates q. Ordered queries add the document id as a tiebreak so
// the cursor values line up with the OrderBy clauses.
func (s *Store) build(q docstore.Query) fs.Query {
	fq := s.client.Collection(q.Collection).Query
	for _, p := range q.Where {
		fq = fq.Where(p.Field, string(p.Op), p.Value)
	}
	c := q.StartAfter
	switch {
	case q.OrderBy != nil:
		dir := fs.Asc
		if q.OrderBy.Desc {
			dir = fs.Desc
		}
		fq = fq.OrderBy(q.OrderBy.Field, dir).OrderBy(fs.DocumentID, dir)
		if !c.IsZero() {
			fq = fq.StartAfter(c.Value, c.ID)
		}
	case !c.IsZero():
		fq = fq.OrderBy(fs.DocumentID, fs.Asc).StartAfter(c.ID)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq
}

// Batch runs every mutation inside one transaction.
func (s *Store) Batch(ctx context.Context, mutations []docstore.Mutation) error {
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		// Firestore requires every read to precede the first write.
		for _, m := range mutations {
			if err := s.precondition(tx, m); err != nil {
				return err
			}
		}
		for _, m := range mutations {
			ref := s.client.Collection(m.Collection).Doc(m.ID)
			switch m.Kind {
			case docstore.MutationSet:
				data, err := docstore.Encode(m.Data)
				if err != nil {
					return err
				}
				if err := tx.Set(ref, data); err != nil {
					return err
				}
			case docstore.MutationCreate:
				data, err := docstore.Encode(m.Data)
				if err != nil {
					return err
				}
				if err := tx.Create(ref, data); err != nil {
					return err
				}
			case docstore.MutationUpdate:
				if err := tx.Update(ref, updates(m.Fields)); err != nil {
					return err
				}
			case docstore.MutationDelete, docstore.MutationDeleteExisting:
				if err := tx.Delete(ref); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown mutation kind %d", m.Kind)
			}
		}
		return nil
	})
	return translate(err)
}

// precondition checks the conditional part of m inside tx.
func (s *Store) precondition(tx *fs.Transaction, m docstore.Mutation) error {
	guarded := m.Kind == docstore.MutationUpdate && len(m.Guard) > 0
	if m.Kind != docstore.MutationCreate && m.Kind != docstore.MutationDeleteExisting && !guarded {
		return nil
	}
	snap, err := tx.Get(s.client.Collection(m.Collection).Doc(m.ID))
	missing := status.Code(err) == codes.NotFound
	if err != nil && !missing {
		return err
	}
	switch {
	case m.Kind == docstore.MutationCreate && !missing:
		return fmt.Errorf("%w: %s/%s exists", docstore.ErrConflict, m.Collection, m.ID)
	case m.Kind == docstore.MutationDeleteExisting && missing:
		return fmt.Errorf("%w: %s/%s missing", docstore.ErrConflict, m.Collection, m.ID)
	case guarded && (missing || !docstore.Match(fromSnapshot(snap).Data, m.Guard)):
		return fmt.Errorf("%w: %s/%s guard", docstore.ErrConflict, m.Collection, m.ID)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, q docstore.Query) (docstore.Subscription, error) {
	fq := s.build(q)
	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		it:     fq.Snapshots(ctx),
		cancel: cancel,
		out:    make(chan []docstore.Change),
		done:   make(chan struct{}),
	}
	go sub.run(ctx)
	return sub, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

type subscription struct {
	it     *fs.QuerySnapshotIterator
	cancel context.CancelFunc
	out    chan []docstore.Change
	done   chan struct{}

	mu   sync.Mutex
	err  error
	once sync.Once
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.out)
	defer s.it.Stop()
	first := true
	for {
		qs, err := s.it.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) || ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return
			}
			log.Printf("firestore: snapshot listener failed: %v", err)
			s.mu.Lock()
			s.err = translate(err)
			s.mu.Unlock()
			return
		}
		batch := make([]docstore.Change, 0, len(qs.Changes))
		for _, ch := range qs.Changes {
			batch = append(batch, docstore.Change{Type: changeType(ch.Kind), Doc: fromSnapshot(ch.Doc)})
		}
		if len(batch) == 0 && !first {
			continue
		}
		first = false
		select {
		case s.out <- batch:
		case <-ctx.Done():
			return
		}
	}
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

func changeType(kind fs.DocumentChangeKind) docstore.ChangeType {
	switch kind {
	case fs.DocumentRemoved:
		return docstore.Removed
	case fs.DocumentModified:
		return docstore.Modified
	default:
		return docstore.Added
	}
}

func fromSnapshot(snap *fs.DocumentSnapshot) docstore.Document {
	return docstore.Document{ID: snap.Ref.ID, Data: docstore.NormalizeMap(snap.Data())}
}

func updates(fields map[string]any) []fs.Update {
	out := make([]fs.Update, 0, len(fields))
	for path, value := range fields {
		if inc, ok := value.(docstore.Increment); ok {
			out = append(out, fs.Update{Path: path, Value: fs.Increment(inc.Delta)})
			continue
		}
		out = append(out, fs.Update{Path: path, Value: docstore.Normalize(value)})
	}
	return out
}

// translate maps gRPC status codes onto the docstore error taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", docstore.ErrNotFound, err)
	case codes.AlreadyExists, codes.FailedPrecondition:
		return fmt.Errorf("%w: %v", docstore.ErrConflict, err)
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %v", docstore.ErrPermissionDenied, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	return err
}
