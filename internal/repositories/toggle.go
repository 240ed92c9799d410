package repositories

import (
	"context"

	"github.com/anonto42/socialicon/internal/docstore"
)

// toggleAttempts bounds how often a toggle re-reads its relation after a
// concurrent toggle of the same relation won the race.
const toggleAttempts = 5

// relationToggle describes a relation record such as a like or a follow,
// together with the counters that track it.
type relationToggle struct {
	collection string
	id         string
	record     func() any
	counters   func(delta int64) []docstore.Mutation
}

// toggle flips the relation and applies its counters in one batch. The
// relation write is conditional: creating fails when the record appeared
// and deleting fails when it vanished, so the counters only move when the
// relation did. It reports the new state.
func toggle(ctx context.Context, store docstore.Store, t relationToggle) (bool, error) {
	for attempt := 1; ; attempt++ {
		on, err := exists(ctx, store, t.collection, t.id)
		if err != nil {
			return false, err
		}
		delta := int64(1)
		relation := docstore.CreateOp(t.collection, t.id, t.record())
		if on {
			delta = -1
			relation = docstore.DeleteExistingOp(t.collection, t.id)
		}
		mutations := []docstore.Mutation{relation}
		if t.counters != nil {
			mutations = append(mutations, t.counters(delta)...)
		}
		err = store.Batch(ctx, mutations)
		if err == nil {
			return !on, nil
		}
		if !docstore.IsConflict(err) || attempt == toggleAttempts {
			return on, err
		}
	}
}

// exists reports whether a relation record is present
func exists(ctx context.Context, store docstore.Store, collection, id string) (bool, error) {
	_, err := store.Get(ctx, collection, id)
	switch {
	case err == nil:
		return true, nil
	case docstore.IsNotFound(err):
		return false, nil
	}
	return false, err
}
