package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/anonto42/socialicon/internal/docstore"
)

func TestUpdateDocSplitsSetAndInc(t *testing.T) {
	got := updateDoc(map[string]any{
		"lastMessage":   "hi",
		"unreadCount.b": docstore.Inc(1),
	})
	assert.Equal(t, bson.M{
		"$set": bson.M{"lastMessage": "hi"},
		"$inc": bson.M{"unreadCount.b": int64(1)},
	}, got)
}

func TestPredicates(t *testing.T) {
	got := predicates([]docstore.Predicate{
		docstore.Where("authorId", docstore.OpEqual, "a"),
		docstore.Where("participants", docstore.OpArrayContains, "u1"),
		docstore.Where("type", docstore.OpIn, []string{"image", "video"}),
	})
	assert.Equal(t, bson.A{
		bson.M{"authorId": bson.M{"$eq": "a"}},
		bson.M{"participants": bson.M{"$elemMatch": bson.M{"$eq": "u1"}}},
		bson.M{"type": bson.M{"$in": []any{"image", "video"}}},
	}, got)
}

func TestAfterDescendingCursor(t *testing.T) {
	cursor := docstore.Cursor{ID: "p9", Value: int64(5)}
	got := after(cursor, &docstore.Order{Field: "createdAt", Desc: true})
	assert.Equal(t, bson.M{"$or": bson.A{
		bson.M{"createdAt": bson.M{"$lt": int64(5)}},
		bson.M{"createdAt": int64(5), "_id": bson.M{"$lt": "p9"}},
	}}, got)
}

func TestAfterUnorderedCursor(t *testing.T) {
	got := after(docstore.Cursor{ID: "p3"}, nil)
	assert.Equal(t, bson.M{"_id": bson.M{"$gt": "p3"}}, got)
}

func TestToDocumentStripsID(t *testing.T) {
	oid := primitive.NewObjectID()
	doc := toDocument(bson.M{"_id": oid, "n": int32(2)})
	assert.Equal(t, oid.Hex(), doc.ID)
	assert.Equal(t, map[string]any{"n": int64(2)}, doc.Data)
}

func TestEvictKeepsLimitWindow(t *testing.T) {
	s := &subscription{
		query: docstore.NewQuery("posts").Sorted("score", true).Window(2),
		window: map[string]docstore.Document{
			"a": {ID: "a", Data: map[string]any{"score": int64(3)}},
			"b": {ID: "b", Data: map[string]any{"score": int64(2)}},
			"c": {ID: "c", Data: map[string]any{"score": int64(1)}},
		},
	}
	changes := s.evict([]docstore.Change{{Type: docstore.Added, Doc: s.window["c"]}})
	assert.Empty(t, changes)
	assert.Len(t, s.window, 2)
	assert.NotContains(t, s.window, "c")
}
