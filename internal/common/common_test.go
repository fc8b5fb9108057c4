package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,max=5"`
}

func TestDecodeJSONValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"bad","name":"too long"}`))
	var dst signup
	err := DecodeJSON(req, &dst)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	require.Equal(t, map[string]string{"email": "must be a valid email address", "name": "must be at most 5"}, appErr.Details)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.vn","name":"Lan","extra":1}`))
	err = DecodeJSON(req, &dst)
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "invalid payload", appErr.Message)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err = DecodeJSON(req, &dst)
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "request body is required", appErr.Message)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, Conflict("CART_EMPTY", "cart is empty", nil))
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "CART_EMPTY", body.Error.Code)

	rec = httptest.NewRecorder()
	WriteError(rec, errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "boom")
}

func TestPaginate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=2&limit=500", nil)
	page, perPage := ParsePagination(req, 10, 2)
	require.Equal(t, 2, page)
	require.Equal(t, 2, perPage)

	items, meta := Paginate([]int{1, 2, 3, 4, 5}, page, perPage)
	require.Equal(t, []int{3, 4}, items)
	require.Equal(t, 5, meta.TotalItems)

	items, _ = Paginate([]int{1}, 3, 2)
	require.Empty(t, items)
}

func TestIdentifyAndRequireUser(t *testing.T) {
	h := IdentifyUser(RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := UserID(r.Context())
		_, _ = w.Write([]byte(id))
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeader, " u1 ")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "u1", rec.Body.String())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.1.1:5000"
	require.Equal(t, "10.1.1.1", ClientIP(req))
	req.Header.Set("X-Real-IP", "198.51.100.2")
	require.Equal(t, "198.51.100.2", ClientIP(req))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", ClientIP(req))
	req.Header.Set("X-Forwarded-For", "not-an-ip")
	require.Equal(t, "198.51.100.2", ClientIP(req))

	mapped := httptest.NewRequest(http.MethodGet, "/", nil)
	mapped.RemoteAddr = "[::ffff:192.0.2.7]:443"
	require.Equal(t, "192.0.2.7", ClientIP(mapped))
}

func TestIdemMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	status := http.StatusInternalServerError
	calls := 0
	h := Idem{R: client}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))
	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		req.Header.Set("Idempotency-Key", "k1")
		req = req.WithContext(WithUserID(req.Context(), user))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusInternalServerError, send("u1"))
	status = http.StatusCreated
	require.Equal(t, http.StatusCreated, send("u1"), "failed attempts release the key")
	require.Equal(t, http.StatusConflict, send("u1"))
	require.Equal(t, http.StatusCreated, send("u2"), "keys are scoped per user")
	require.Equal(t, 3, calls)
}
