package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/socialicon/internal/docstore"
)

type post struct {
	ID         string    `bson:"-"`
	AuthorID   string    `bson:"authorId"`
	LikesCount int64     `bson:"likesCount"`
	Tags       []string  `bson:"tags"`
	CreatedAt  time.Time `bson:"createdAt"`
}

func (p *post) SetID(id string) { p.ID = id }

func receive(t *testing.T, sub docstore.Subscription) []docstore.Change {
	t.Helper()
	select {
	case batch, ok := <-sub.Changes():
		require.True(t, ok, "subscription closed")
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
	}
	return nil
}

func TestCreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	id, err := s.Create(ctx, "posts", post{AuthorID: "a", Tags: []string{"go"}, CreatedAt: at})
	require.NoError(t, err)

	doc, err := s.Get(ctx, "posts", id)
	require.NoError(t, err)
	got, err := docstore.DecodeAs[post](doc)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "a", got.AuthorID)
	assert.Equal(t, []string{"go"}, got.Tags)
	assert.True(t, at.Equal(got.CreatedAt))
}

func TestGetMissingIsNotFound(t *testing.T) {
	_, err := New().Get(context.Background(), "posts", "nope")
	assert.True(t, docstore.IsNotFound(err))
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	err := New().Update(context.Background(), "posts", "nope", map[string]any{"content": "x"})
	assert.True(t, docstore.IsNotFound(err))
}

func TestDeleteAbsentIsNotAnError(t *testing.T) {
	assert.NoError(t, New().Delete(context.Background(), "posts", "nope"))
}

func TestUpdateDottedPathAndIncrement(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "chats", "c1", map[string]any{
		"unreadCount": map[string]any{"a": int64(2), "b": int64(0)},
	}))

	require.NoError(t, s.Update(ctx, "chats", "c1", map[string]any{
		"unreadCount.a":  int64(0),
		"unreadCount.b":  docstore.Inc(1),
		"typingStatus.a": true,
		"lastMessage":    "hi",
	}))

	doc, err := s.Get(ctx, "chats", "c1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": int64(0), "b": int64(1)}, doc.Data["unreadCount"])
	assert.Equal(t, map[string]any{"a": true}, doc.Data["typingStatus"])
	assert.Equal(t, "hi", doc.Data["lastMessage"])
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "posts", "p1", post{AuthorID: "a"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Increment(ctx, "posts", "p1", "likesCount", 1))
		}()
	}
	wg.Wait()

	doc, err := s.Get(ctx, "posts", "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), doc.Data["likesCount"])
}

func TestBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "posts", "p1", post{AuthorID: "a"}))

	err := s.Batch(ctx, []docstore.Mutation{
		docstore.SetOp("likes", "u_p1", map[string]any{"userId": "u", "postId": "p1"}),
		docstore.UpdateOp("posts", "p1", map[string]any{"likesCount": docstore.Inc(1)}),
		docstore.UpdateOp("users", "missing", map[string]any{"likesReceived": docstore.Inc(1)}),
	})
	require.True(t, docstore.IsNotFound(err))

	_, err = s.Get(ctx, "likes", "u_p1")
	assert.True(t, docstore.IsNotFound(err))
	doc, err := s.Get(ctx, "posts", "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), doc.Data["likesCount"])
}

func TestQueryPagination(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, s.Set(ctx, "posts", id, post{AuthorID: "x", CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	q := docstore.NewQuery("posts").Sorted("createdAt", true).Window(2)

	page, err := s.Query(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "d"}, ids(page.Docs))
	assert.Equal(t, "d", page.Cursor.ID)

	// The cursor carries its sort value, so deleting the document behind
	// it does not break the next page.
	require.NoError(t, s.Delete(ctx, "posts", "d"))
	page, err = s.Query(ctx, q.After(page.Cursor))
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, ids(page.Docs))

	page, err = s.Query(ctx, q.After(page.Cursor))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(page.Docs))
}

func TestBatchCreateConflictsWhenPresent(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Batch(ctx, []docstore.Mutation{
		docstore.CreateOp("likes", "u_p1", map[string]any{"userId": "u"}),
	}))
	require.NoError(t, s.Set(ctx, "posts", "p1", map[string]any{"likesCount": 1}))

	err := s.Batch(ctx, []docstore.Mutation{
		docstore.CreateOp("likes", "u_p1", map[string]any{"userId": "u"}),
		docstore.UpdateOp("posts", "p1", map[string]any{"likesCount": docstore.Inc(1)}),
	})
	assert.True(t, docstore.IsConflict(err))
	doc, err := s.Get(ctx, "posts", "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Data["likesCount"])
}

func TestBatchDeleteExistingConflictsWhenAbsent(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "posts", "p1", map[string]any{"likesCount": 0}))

	err := s.Batch(ctx, []docstore.Mutation{
		docstore.DeleteExistingOp("likes", "u_p1"),
		docstore.UpdateOp("posts", "p1", map[string]any{"likesCount": docstore.Inc(-1)}),
	})
	assert.True(t, docstore.IsConflict(err))
	doc, err := s.Get(ctx, "posts", "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), doc.Data["likesCount"])
}

func TestQueryPredicates(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "posts", "1", post{AuthorID: "a", Tags: []string{"go", "db"}, LikesCount: 3}))
	require.NoError(t, s.Set(ctx, "posts", "2", post{AuthorID: "b", Tags: []string{"js"}, LikesCount: 7}))
	require.NoError(t, s.Set(ctx, "posts", "3", post{AuthorID: "c", LikesCount: 1}))

	cases := []struct {
		name string
		pred docstore.Predicate
		want []string
	}{
		{"equal", docstore.Where("authorId", docstore.OpEqual, "b"), []string{"2"}},
		{"not equal", docstore.Where("authorId", docstore.OpNotEqual, "b"), []string{"1", "3"}},
		{"greater", docstore.Where("likesCount", docstore.OpGreater, 2), []string{"1", "2"}},
		{"less equal", docstore.Where("likesCount", docstore.OpLessEqual, int64(3)), []string{"1", "3"}},
		{"array contains", docstore.Where("tags", docstore.OpArrayContains, "db"), []string{"1"}},
		{"in", docstore.Where("authorId", docstore.OpIn, []string{"a", "c"}), []string{"1", "3"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := s.Query(ctx, docstore.Query{Collection: "posts", Where: []docstore.Predicate{tc.pred}})
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(page.Docs))
		})
	}
}

func TestSubscribeInitialAndIncrementalBatches(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "posts", "p1", post{AuthorID: "a"}))

	sub, err := s.Subscribe(ctx, docstore.NewQuery("posts").Filter("authorId", docstore.OpEqual, "a"))
	require.NoError(t, err)
	defer sub.Close()

	initial := receive(t, sub)
	require.Len(t, initial, 1)
	assert.Equal(t, docstore.Added, initial[0].Type)

	require.NoError(t, s.Increment(ctx, "posts", "p1", "likesCount", 1))
	batch := receive(t, sub)
	require.Len(t, batch, 1)
	assert.Equal(t, docstore.Modified, batch[0].Type)
	assert.Equal(t, int64(1), batch[0].Doc.Data["likesCount"])

	// Writes that do not touch the window produce no batch.
	require.NoError(t, s.Set(ctx, "posts", "other", post{AuthorID: "b"}))

	require.NoError(t, s.Delete(ctx, "posts", "p1"))
	batch = receive(t, sub)
	require.Len(t, batch, 1)
	assert.Equal(t, docstore.Removed, batch[0].Type)
	assert.Equal(t, "p1", batch[0].Doc.ID)
}

func TestSubscribeEmptyWindowStillDeliversInitialBatch(t *testing.T) {
	sub, err := New().Subscribe(context.Background(), docstore.NewQuery("follows"))
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, receive(t, sub))
}

func TestSubscribeHonoursLimitWindow(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Set(ctx, "posts", "old", post{CreatedAt: base}))
	require.NoError(t, s.Set(ctx, "posts", "mid", post{CreatedAt: base.Add(time.Minute)}))

	sub, err := s.Subscribe(ctx, docstore.NewQuery("posts").Sorted("createdAt", true).Window(2))
	require.NoError(t, err)
	defer sub.Close()
	assert.Len(t, receive(t, sub), 2)

	require.NoError(t, s.Set(ctx, "posts", "new", post{CreatedAt: base.Add(time.Hour)}))
	batch := receive(t, sub)
	require.Len(t, batch, 2)
	assert.Equal(t, docstore.Removed, batch[0].Type)
	assert.Equal(t, "old", batch[0].Doc.ID)
	assert.Equal(t, docstore.Added, batch[1].Type)
	assert.Equal(t, "new", batch[1].Doc.ID)
}

func TestCloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s := New()
	sub, err := s.Subscribe(ctx, docstore.NewQuery("posts"))
	require.NoError(t, err)
	receive(t, sub)

	require.NoError(t, sub.Close())
	require.NoError(t, s.Set(ctx, "posts", "p1", post{}))

	_, ok := <-sub.Changes()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
}

func TestContextCancelClosesSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := New().Subscribe(ctx, docstore.NewQuery("posts"))
	require.NoError(t, err)
	receive(t, sub)
	cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.Changes():
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestDisconnectEndsStreamWithError(t *testing.T) {
	s := New()
	sub, err := s.Subscribe(context.Background(), docstore.NewQuery("posts"))
	require.NoError(t, err)
	receive(t, sub)

	boom := errors.New("connection reset")
	s.Disconnect(boom)

	for range sub.Changes() {
	}
	assert.ErrorIs(t, sub.Err(), boom)
}

func TestRuleDeniesWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.SetRule(func(access Access, collection, id string) error {
		if access == Write && collection == "posts" {
			return errors.New("read only")
		}
		return nil
	})

	err := s.Set(ctx, "posts", "p1", post{})
	assert.True(t, docstore.IsPermissionDenied(err))
	_, err = s.Get(ctx, "posts", "p1")
	assert.True(t, docstore.IsNotFound(err))
}

func TestFailQueries(t *testing.T) {
	s := New()
	s.FailQueries(docstore.ErrUnavailable)
	_, err := s.Query(context.Background(), docstore.NewQuery("posts"))
	assert.True(t, docstore.IsUnavailable(err))

	s.FailQueries(nil)
	_, err = s.Query(context.Background(), docstore.NewQuery("posts"))
	assert.NoError(t, err)
}

func ids(docs []docstore.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestGuardedUpdateConflictsWhenGuardFails(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Set(ctx, "messages", "m1", map[string]any{"status": "sent"}))
	require.NoError(t, s.Set(ctx, "chats", "c1", map[string]any{"unreadCount": map[string]any{"u1": 1}}))
	markRead := []docstore.Mutation{
		docstore.GuardedUpdateOp("messages", "m1", docstore.Where("status", docstore.OpNotEqual, "read"), map[string]any{"status": "read"}),
		docstore.UpdateOp("chats", "c1", map[string]any{"unreadCount.u1": docstore.Inc(-1)}),
	}

	require.NoError(t, s.Batch(ctx, markRead))
	assert.True(t, docstore.IsConflict(s.Batch(ctx, markRead)))

	doc, err := s.Get(ctx, "chats", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), doc.Data["unreadCount"].(map[string]any)["u1"])

	err = s.Batch(ctx, []docstore.Mutation{
		docstore.GuardedUpdateOp("messages", "gone", docstore.Where("status", docstore.OpNotEqual, "read"), map[string]any{"status": "read"}),
	})
	assert.True(t, docstore.IsConflict(err))
}
