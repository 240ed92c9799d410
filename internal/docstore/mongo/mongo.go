// Package mongo implements docstore.Store on MongoDB. Subscriptions use
// change streams, so the deployment must be a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anonto42/socialicon/internal/docstore"
)

// Mongo error codes that mean the operation was rejected for authorization.
const (
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
)

// Store keeps documents in one database, one collection per docstore collection
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ docstore.Store = (*Store)(nil)

// New creates a Store over database. Close disconnects client.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Create inserts a new document with a generated string id
func (s *Store) Create(ctx context.Context, collection string, data any) (string, error) {
	m, err := docstore.Encode(data)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	m["_id"] = id
	if _, err := s.db.Collection(collection).InsertOne(ctx, m); err != nil {
		return "", translate(err)
	}
	return id, nil
}

// Set replaces the document, inserting it when absent
func (s *Store) Set(ctx context.Context, collection, id string, data any) error {
	m, err := docstore.Encode(data)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, m, options.Replace().SetUpsert(true))
	return translate(err)
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var m bson.M
	if err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return docstore.Document{}, translate(err)
	}
	return toDocument(m), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, updateDoc(fields))
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, collection, id)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	return translate(err)
}

// Increment applies $inc on the server
func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	return s.Update(ctx, collection, id, map[string]any{field: docstore.Inc(delta)})
}

func (s *Store) Query(ctx context.Context, q docstore.Query) (docstore.Page, error) {
	docs, err := s.find(ctx, q)
	if err != nil {
		return docstore.Page{}, err
	}
	return docstore.NewPage(docs, q.OrderBy), nil
}

func (s *Store) find(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	coll := s.db.Collection(q.Collection)
	clauses := predicates(q.Where)
	sortDir := 1
	if q.OrderBy != nil && q.OrderBy.Desc {
		sortDir = -1
	}
	if q.OrderBy != nil {
		clauses = append(clauses, bson.M{q.OrderBy.Field: bson.M{"$exists": true}})
	}
	if !q.StartAfter.IsZero() {
		clauses = append(clauses, after(q.StartAfter, q.OrderBy))
	}

	findOptions := options.Find()
	if q.OrderBy != nil {
		findOptions.SetSort(bson.D{{Key: q.OrderBy.Field, Value: sortDir}, {Key: "_id", Value: sortDir}})
	} else {
		findOptions.SetSort(bson.D{{Key: "_id", Value: 1}})
	}
	if q.Limit > 0 {
		findOptions.SetLimit(int64(q.Limit))
	}

	filter := bson.D{}
	if len(clauses) > 0 {
		filter = bson.D{{Key: "$and", Value: clauses}}
	}
	cur, err := coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close(ctx)

	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, translate(err)
	}
	docs := make([]docstore.Document, len(raw))
	for i, m := range raw {
		docs[i] = toDocument(m)
	}
	return docs, nil
}

// insert fails with ErrConflict when id is already taken.
func (s *Store) insert(ctx context.Context, collection, id string, data any) error {
	m, err := docstore.Encode(data)
	if err != nil {
		return err
	}
	m["_id"] = id
	if _, err := s.db.Collection(collection).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s/%s exists", docstore.ErrConflict, collection, id)
		}
		return translate(err)
	}
	return nil
}

func (s *Store) guardedUpdate(ctx context.Context, m docstore.Mutation) error {
	filter := bson.M{"_id": m.ID, "$and": predicates(m.Guard)}
	res, err := s.db.Collection(m.Collection).UpdateOne(ctx, filter, updateDoc(m.Fields))
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s/%s guard", docstore.ErrConflict, m.Collection, m.ID)
	}
	return nil
}

func (s *Store) deleteExisting(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s/%s missing", docstore.ErrConflict, collection, id)
	}
	return nil
}

// Batch applies the mutations inside a multi-document transaction
func (s *Store) Batch(ctx context.Context, mutations []docstore.Mutation) error {
	session, err := s.client.StartSession()
	if err != nil {
		return translate(err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, m := range mutations {
			var err error
			switch m.Kind {
			case docstore.MutationSet:
				err = s.Set(sc, m.Collection, m.ID, m.Data)
			case docstore.MutationCreate:
				err = s.insert(sc, m.Collection, m.ID, m.Data)
			case docstore.MutationUpdate:
				if len(m.Guard) > 0 {
					err = s.guardedUpdate(sc, m)
				} else {
					err = s.Update(sc, m.Collection, m.ID, m.Fields)
				}
			case docstore.MutationDelete:
				err = s.Delete(sc, m.Collection, m.ID)
			case docstore.MutationDeleteExisting:
				err = s.deleteExisting(sc, m.Collection, m.ID)
			default:
				err = fmt.Errorf("unknown mutation kind %d", m.Kind)
			}
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}

// Close disconnects the client
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func toDocument(m bson.M) docstore.Document {
	id := fmt.Sprint(docstore.Normalize(m["_id"]))
	data := make(map[string]any, len(m))
	for k, v := range m {
		if k == "_id" {
			continue
		}
		data[k] = v
	}
	return docstore.Document{ID: id, Data: docstore.NormalizeMap(data)}
}

func updateDoc(fields map[string]any) bson.M {
	set := bson.M{}
	inc := bson.M{}
	for path, value := range fields {
		if i, ok := value.(docstore.Increment); ok {
			inc[path] = i.Delta
			continue
		}
		set[path] = docstore.Normalize(value)
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	return update
}

func predicates(preds []docstore.Predicate) bson.A {
	clauses := bson.A{}
	for _, p := range preds {
		v := docstore.Normalize(p.Value)
		var cond bson.M
		switch p.Op {
		case docstore.OpEqual:
			cond = bson.M{"$eq": v}
		case docstore.OpNotEqual:
			cond = bson.M{"$exists": true, "$ne": v}
		case docstore.OpLess:
			cond = bson.M{"$lt": v}
		case docstore.OpLessEqual:
			cond = bson.M{"$lte": v}
		case docstore.OpGreater:
			cond = bson.M{"$gt": v}
		case docstore.OpGreaterEqual:
			cond = bson.M{"$gte": v}
		case docstore.OpArrayContains:
			cond = bson.M{"$elemMatch": bson.M{"$eq": v}}
		case docstore.OpIn:
			cond = bson.M{"$in": v}
		default:
			continue
		}
		clauses = append(clauses, bson.M{p.Field: cond})
	}
	return clauses
}

// after selects documents ordered strictly after cursor, ties broken by _id.
func after(cursor docstore.Cursor, order *docstore.Order) bson.M {
	if order == nil {
		return bson.M{"_id": bson.M{"$gt": cursor.ID}}
	}
	op := "$gt"
	if order.Desc {
		op = "$lt"
	}
	return bson.M{"$or": bson.A{
		bson.M{order.Field: bson.M{op: cursor.Value}},
		bson.M{order.Field: cursor.Value, "_id": bson.M{op: cursor.ID}},
	}}
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %v", docstore.ErrNotFound, err)
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorCode(codeUnauthorized) || se.HasErrorCode(codeAuthenticationFailed)) {
		return fmt.Errorf("%w: %v", docstore.ErrPermissionDenied, err)
	}
	return err
}
