// Package docstore is the narrow, typed contract the rest of the backend uses
// to talk to the remote document database. Implementations live in the
// memory, firestore and mongo subpackages.
package docstore

import (
	"context"
)

// Store is implemented by every document-store backend.
type Store interface {
	// Create stores data under a generated id and returns that id.
	Create(ctx context.Context, collection string, data any) (string, error)
	// Set creates or replaces the document with a caller-chosen id.
	Set(ctx context.Context, collection, id string, data any) error
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Update merges fields into an existing document. Keys may be dotted
	// paths into nested maps and values may be Inc(delta).
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete removes a document. Deleting an absent document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Increment adjusts a numeric field server-side.
	Increment(ctx context.Context, collection, id, field string, delta int64) error
	Query(ctx context.Context, q Query) (Page, error)
	// Subscribe streams changes to the result window of q. The first batch
	// lists the current window as added.
	Subscribe(ctx context.Context, q Query) (Subscription, error)
	// Batch applies all mutations atomically. A failed precondition on a
	// create, delete-existing or guarded update aborts the whole batch with
	// ErrConflict.
	Batch(ctx context.Context, mutations []Mutation) error
	Close() error
}

// Subscription is a cancellable stream of change batches.
type Subscription interface {
	// Changes is closed when the subscription ends.
	Changes() <-chan []Change
	// Err reports why the stream ended. It is nil after Close.
	Err() error
	// Close stops delivery. No batch is delivered after Close returns.
	Close() error
}

// Document is a normalized document: values are string, bool, int64,
// float64, time.Time, []any, map[string]any or nil.
type Document struct {
	ID   string
	Data map[string]any
}

// DataTo decodes the document into a bson-tagged struct
func (d Document) DataTo(v any) error {
	return Decode(d.Data, v)
}

// Identifiable is implemented by models that carry their document id
type Identifiable interface {
	SetID(id string)
}

// DecodeAs decodes doc into a fresh T and stamps its id.
func DecodeAs[T any, PT interface {
	*T
	Identifiable
}](doc Document) (T, error) {
	var out T
	if err := doc.DataTo(PT(&out)); err != nil {
		return out, err
	}
	PT(&out).SetID(doc.ID)
	return out, nil
}

// ChangeType classifies a change in a subscription batch
type ChangeType string

const (
	Added    ChangeType = "added"
	Modified ChangeType = "modified"
	Removed  ChangeType = "removed"
)

type Change struct {
	Type ChangeType
	Doc  Document
}

// Increment is a server-applied numeric adjustment used as an Update value.
type Increment struct {
	Delta int64
}

// Inc returns an Update value that adds delta to the field server-side
func Inc(delta int64) Increment {
	return Increment{Delta: delta}
}

// MutationKind is the operation a batch Mutation performs
type MutationKind int

const (
	MutationSet MutationKind = iota
	MutationUpdate
	MutationDelete
	// MutationCreate writes a new document and fails with ErrConflict when
	// one already exists.
	MutationCreate
	// MutationDeleteExisting removes a document and fails with ErrConflict
	// when it is absent.
	MutationDeleteExisting
)

// Mutation is one write in a Batch.
type Mutation struct {
	Kind       MutationKind
	Collection string
	ID         string
	Data       any            // MutationSet, MutationCreate
	Fields     map[string]any // MutationUpdate
	// Guard makes an update conditional: the batch fails with ErrConflict
	// unless the document exists and matches every predicate.
	Guard []Predicate
}

func SetOp(collection, id string, data any) Mutation {
	return Mutation{Kind: MutationSet, Collection: collection, ID: id, Data: data}
}

func UpdateOp(collection, id string, fields map[string]any) Mutation {
	return Mutation{Kind: MutationUpdate, Collection: collection, ID: id, Fields: fields}
}

// GuardedUpdateOp updates the document only while it matches guard.
func GuardedUpdateOp(collection, id string, guard Predicate, fields map[string]any) Mutation {
	return Mutation{Kind: MutationUpdate, Collection: collection, ID: id, Fields: fields, Guard: []Predicate{guard}}
}

func DeleteOp(collection, id string) Mutation {
	return Mutation{Kind: MutationDelete, Collection: collection, ID: id}
}

func CreateOp(collection, id string, data any) Mutation {
	return Mutation{Kind: MutationCreate, Collection: collection, ID: id, Data: data}
}

func DeleteExistingOp(collection, id string) Mutation {
	return Mutation{Kind: MutationDeleteExisting, Collection: collection, ID: id}
}
