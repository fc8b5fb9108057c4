package notify_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/shopmate/internal/common"
	"github.com/noah-isme/shopmate/internal/docstore"
	"github.com/noah-isme/shopmate/internal/notify"
)

func newStore(t *testing.T) docstore.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return docstore.NewRedisStore(client)
}

func TestNewOrderPlacedTask(t *testing.T) {
	task, err := notify.NewOrderPlacedTask(notify.OrderPlaced{OrderID: "o1", UserID: "u1", Total: decimal.NewFromInt(215_000)})
	require.NoError(t, err)
	require.Equal(t, notify.TypeOrderPlaced, task.Type())
	require.JSONEq(t, `{"orderId":"o1","userId":"u1","total":"215000"}`, string(task.Payload()))

	_, err = notify.NewOrderPlacedTask(notify.OrderPlaced{OrderID: "o1"})
	require.Error(t, err)
}

func TestProcessOrderPlacedIsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	first := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	now := first
	h := &notify.Handler{Store: store, Now: func() time.Time { return now }}

	task, err := notify.NewOrderPlacedTask(notify.OrderPlaced{OrderID: "o1", UserID: "u1", Total: decimal.NewFromInt(215_000), PayURL: "https://pay/o1"})
	require.NoError(t, err)
	require.NoError(t, h.ProcessOrderPlaced(ctx, task))

	now = first.Add(time.Hour)
	require.NoError(t, h.ProcessOrderPlaced(ctx, task))

	items, err := notify.List(ctx, store, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "o1", items[0].ID)
	require.Equal(t, first, items[0].CreatedAt.UTC())
	require.Contains(t, items[0].Body, "215000")
	require.Equal(t, "https://pay/o1", items[0].Link)
}

func TestProcessOrderPlacedSkipsRetryOnBadPayload(t *testing.T) {
	h := &notify.Handler{Store: newStore(t)}
	err := h.ProcessOrderPlaced(context.Background(), asynq.NewTask(notify.TypeOrderPlaced, []byte("not json")))
	require.True(t, errors.Is(err, asynq.SkipRetry))

	err = h.ProcessOrderPlaced(context.Background(), asynq.NewTask(notify.TypeOrderPlaced, []byte(`{"orderId":"o1"}`)))
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestListNewestFirstAndHTTP(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Minute)
		h := &notify.Handler{Store: store, Now: func() time.Time { return at }}
		task, err := notify.NewOrderPlacedTask(notify.OrderPlaced{OrderID: id, UserID: "u1"})
		require.NoError(t, err)
		require.NoError(t, h.ProcessOrderPlaced(ctx, task))
	}

	items, err := notify.List(ctx, store, "u1")
	require.NoError(t, err)
	require.Equal(t, "c", items[0].ID)
	require.Equal(t, "a", items[2].ID)

	hh := &notify.HTTPHandler{Store: store}
	rec := httptest.NewRecorder()
	hh.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/me/notifications", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me/notifications", nil)
	hh.List(rec, req.WithContext(common.WithUserID(req.Context(), "u1")))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":"c"`)
}
