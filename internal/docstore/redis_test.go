package docstore_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/shopmate/internal/docstore"
)

type counter struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Tag   string `json:"tag,omitempty"`
}

func newRedisStore(t *testing.T) *docstore.RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := docstore.NewRedisStore(client)
	store.MaxRetries = 256
	return store
}

func TestRedisStoreCRUD(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	var got counter
	err := store.Get(ctx, "counters", "a", &got)
	require.ErrorIs(t, err, docstore.ErrNotFound)

	require.NoError(t, store.Set(ctx, "counters", "a", counter{Name: "alpha", Count: 1, Tag: "x"}))
	require.NoError(t, store.Get(ctx, "counters", "a", &got))
	require.Equal(t, counter{Name: "alpha", Count: 1, Tag: "x"}, got)

	require.NoError(t, store.Set(ctx, "counters", "a", map[string]any{"count": 5}, docstore.Merge()))
	require.NoError(t, store.Get(ctx, "counters", "a", &got))
	require.Equal(t, counter{Name: "alpha", Count: 5, Tag: "x"}, got)

	require.NoError(t, store.Set(ctx, "counters", "a", counter{Name: "replaced"}))
	got = counter{}
	require.NoError(t, store.Get(ctx, "counters", "a", &got))
	require.Equal(t, counter{Name: "replaced"}, got)

	require.NoError(t, store.Delete(ctx, "counters", "a"))
	require.ErrorIs(t, store.Get(ctx, "counters", "a", &got), docstore.ErrNotFound)
	require.NoError(t, store.Delete(ctx, "counters", "a"))
}

func TestRedisStoreAddAndQuery(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	id, err := store.Add(ctx, "counters", counter{Name: "one", Count: 1, Tag: "hot"})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	_, err = store.Add(ctx, "counters", counter{Name: "two", Count: 2})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "counters", "z", counter{Name: "three", Count: 1, Tag: "hot"}))

	all, err := store.Query(ctx, "counters")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		require.Less(t, all[i-1].ID, all[i].ID)
	}

	hot, err := store.Query(ctx, "counters", docstore.Where("tag", "hot"), docstore.Where("count", 1))
	require.NoError(t, err)
	require.Len(t, hot, 2)

	none, err := store.Query(ctx, "counters", docstore.Where("count", "1"))
	require.NoError(t, err)
	require.Empty(t, none)

	empty, err := store.Query(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestRedisStoreUpdateIsAtomic(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				errs <- store.Update(ctx, "counters", "shared", func(cur docstore.Document, exists bool) (any, error) {
					var c counter
					if exists {
						if err := cur.Decode(&c); err != nil {
							return nil, err
						}
					}
					c.Count++
					return c, nil
				})
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var got counter
	require.NoError(t, store.Get(ctx, "counters", "shared", &got))
	require.Equal(t, workers*perWorker, got.Count)
}

func TestRedisStoreUpdateSkipAndDelete(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	err := store.Update(ctx, "counters", "x", func(docstore.Document, bool) (any, error) {
		return nil, docstore.ErrSkip
	})
	require.NoError(t, err)
	var got counter
	require.ErrorIs(t, store.Get(ctx, "counters", "x", &got), docstore.ErrNotFound)

	boom := errors.New("boom")
	err = store.Update(ctx, "counters", "x", func(docstore.Document, bool) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, store.Set(ctx, "counters", "x", counter{Count: 1}))
	require.NoError(t, store.Update(ctx, "counters", "x", func(docstore.Document, bool) (any, error) {
		return nil, nil
	}))
	require.ErrorIs(t, store.Get(ctx, "counters", "x", &got), docstore.ErrNotFound)
}

func TestPathAndValidation(t *testing.T) {
	require.Equal(t, "users/u1/savedVouchers", docstore.Path("users", " u1 ", "/savedVouchers/"))

	store := newRedisStore(t)
	require.ErrorIs(t, store.Set(context.Background(), "", "id", counter{}), docstore.ErrInvalidPath)
	require.ErrorIs(t, store.Get(context.Background(), "c", " ", &counter{}), docstore.ErrInvalidPath)
}

func TestRedisStoreDistinctDocumentsDoNotConflict(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), PoolSize: 64})
	t.Cleanup(func() { _ = client.Close() })
	store := docstore.NewRedisStore(client)
	ctx := context.Background()

	const docs = 100
	const perDoc = 5
	var wg sync.WaitGroup
	errs := make(chan error, docs*perDoc)
	for d := 0; d < docs; d++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < perDoc; i++ {
				errs <- store.Update(ctx, "carts", id, func(cur docstore.Document, exists bool) (any, error) {
					var c counter
					if exists {
						if err := cur.Decode(&c); err != nil {
							return nil, err
						}
					}
					c.Count++
					return c, nil
				})
			}
		}(fmt.Sprintf("cart-%d", d))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := store.Query(ctx, "carts")
	require.NoError(t, err)
	require.Len(t, all, docs)
	for _, doc := range all {
		var c counter
		require.NoError(t, doc.Decode(&c))
		require.Equal(t, perDoc, c.Count, doc.ID)
	}
}

func TestRedisStoreIndexedQuery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := docstore.NewRedisStore(client).WithIndex("orders", "tag", "count")
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "orders", "o1", counter{Name: "a", Count: 1, Tag: "u1"}))
	require.NoError(t, store.Set(ctx, "orders", "o2", counter{Name: "b", Count: 2, Tag: "u1"}))
	require.NoError(t, store.Set(ctx, "orders", "o3", counter{Name: "c", Count: 1, Tag: "u2"}))

	require.True(t, mr.Exists("doc:{orders}:o1"))
	members, err := mr.Members(`doc:{orders}#tag="u1"`)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"o1", "o2"}, members)

	got, err := store.Query(ctx, "orders", docstore.Where("tag", "u1"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "o1", got[0].ID)

	got, err = store.Query(ctx, "orders", docstore.Where("count", 1.0), docstore.Where("tag", "u1"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "o1", got[0].ID)

	require.NoError(t, store.Set(ctx, "orders", "o2", map[string]any{"tag": "u2"}, docstore.Merge()))
	got, err = store.Query(ctx, "orders", docstore.Where("tag", "u2"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	members, err = mr.Members(`doc:{orders}#tag="u1"`)
	require.NoError(t, err)
	require.Equal(t, []string{"o1"}, members)

	require.NoError(t, store.Delete(ctx, "orders", "o1"))
	require.False(t, mr.Exists(`doc:{orders}#tag="u1"`))
	got, err = store.Query(ctx, "orders", docstore.Where("tag", "u1"))
	require.NoError(t, err)
	require.Empty(t, got)

	all, err := store.Query(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, all, 2)
}
