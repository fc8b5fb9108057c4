package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/shopmate/internal/common"
	"github.com/noah-isme/shopmate/internal/docstore"
)

// Notification is stored under users/{uid}/notifications/{id}.
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Handler processes notification tasks.
type Handler struct {
	Store  docstore.Store
	Now    func() time.Time
	Logger zerolog.Logger
}

func (h *Handler) now() time.Time {
	if h != nil && h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Register attaches task handlers to mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeOrderPlaced, h.ProcessOrderPlaced)
}

// ProcessOrderPlaced writes the order notification. Redelivery of the same
// order leaves the existing record untouched.
func (h *Handler) ProcessOrderPlaced(ctx context.Context, t *asynq.Task) error {
	if h == nil || h.Store == nil {
		return errors.New("notify handler not configured")
	}
	var p OrderPlaced
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s: %v: %w", TypeOrderPlaced, err, asynq.SkipRetry)
	}
	if p.OrderID == "" || p.UserID == "" {
		return fmt.Errorf("incomplete %s payload: %w", TypeOrderPlaced, asynq.SkipRetry)
	}
	n := Notification{
		ID:        p.OrderID,
		Kind:      "order_placed",
		Title:     "Đặt hàng thành công",
		Body:      fmt.Sprintf("Đơn hàng %s đã được tạo, tổng %s đ. Vui lòng hoàn tất thanh toán.", p.OrderID, p.Total.StringFixed(0)),
		Link:      p.PayURL,
		CreatedAt: h.now(),
	}
	err := h.Store.Update(ctx, path(p.UserID), p.OrderID, func(_ docstore.Document, exists bool) (any, error) {
		if exists {
			return nil, docstore.ErrSkip
		}
		return n, nil
	})
	if err != nil {
		return err
	}
	h.Logger.Debug().Str("order_id", p.OrderID).Str("user_id", p.UserID).Msg("notification_written")
	return nil
}

// List returns the user's notifications, newest first.
func List(ctx context.Context, store docstore.Store, userID string) ([]Notification, error) {
	docs, err := store.Query(ctx, path(userID))
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(docs))
	for _, doc := range docs {
		var n Notification
		if err := doc.Decode(&n); err != nil {
			continue
		}
		if n.ID == "" {
			n.ID = doc.ID
		}
		out = append(out, n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func path(userID string) string {
	return docstore.Path("users", userID, "notifications")
}

// HTTPHandler serves the notification inbox.
type HTTPHandler struct {
	Store docstore.Store
}

// List handles GET /api/v1/users/me/notifications.
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	items, err := List(r.Context(), h.Store, userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load notifications", nil)
		return
	}
	common.Data(w, http.StatusOK, items)
}
