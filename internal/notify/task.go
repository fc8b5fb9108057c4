// Package notify delivers in-app notifications through background tasks.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

// TypeOrderPlaced is the asynq task type for new orders.
const TypeOrderPlaced = "notify:order_placed"

// OrderPlaced is the task payload.
type OrderPlaced struct {
	OrderID string          `json:"orderId"`
	UserID  string          `json:"userId"`
	Total   decimal.Decimal `json:"total"`
	PayURL  string          `json:"payUrl,omitempty"`
}

// NewOrderPlacedTask encodes p. The task id is the order id so a retried
// checkout cannot queue the same notification twice.
func NewOrderPlacedTask(p OrderPlaced) (*asynq.Task, error) {
	if strings.TrimSpace(p.OrderID) == "" || strings.TrimSpace(p.UserID) == "" {
		return nil, errors.New("notify: order and user ids are required")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode order placed: %w", err)
	}
	return asynq.NewTask(TypeOrderPlaced, payload,
		asynq.TaskID("order-placed:"+p.OrderID),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	), nil
}

// Enqueuer hands tasks to the background worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task) error
}

// AsynqEnqueuer adapts an asynq client.
type AsynqEnqueuer struct {
	Client *asynq.Client
}

// Enqueue submits task. A duplicate task id counts as success.
func (e AsynqEnqueuer) Enqueue(ctx context.Context, task *asynq.Task) error {
	if e.Client == nil {
		return errors.New("notify: task client not configured")
	}
	_, err := e.Client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}
