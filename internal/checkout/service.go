// Package checkout turns a priced cart into an order with a payment link.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/shopmate/internal/cart"
	"github.com/noah-isme/shopmate/internal/common"
	"github.com/noah-isme/shopmate/internal/docstore"
	"github.com/noah-isme/shopmate/internal/notify"
	"github.com/noah-isme/shopmate/internal/payment"
	"github.com/noah-isme/shopmate/internal/pricing"
	"github.com/noah-isme/shopmate/internal/voucher"
)

// Collection holds orders.
const Collection = "orders"

var (
	// ErrEmptyCart is returned when checking out a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNotFound is returned for unknown orders or orders owned by another user.
	ErrNotFound = errors.New("order not found")
	// ErrUserRequired is returned when no user id is supplied.
	ErrUserRequired = errors.New("user is required for checkout")
)

// Input is the checkout request body.
type Input struct {
	CartID      string `json:"cartId" validate:"required,max=128"`
	Name        string `json:"name" validate:"required,max=120"`
	Phone       string `json:"phone" validate:"required,min=8,max=20"`
	Email       string `json:"email" validate:"omitempty,email"`
	Address     string `json:"address" validate:"required,max=300"`
	Note        string `json:"note" validate:"max=500"`
	VoucherCode string `json:"voucherCode" validate:"max=64"`
}

// Carts is the cart capability checkout needs.
type Carts interface {
	Get(ctx context.Context, cartID string) (cart.Cart, error)
	Clear(ctx context.Context, cartID string) error
}

// Vouchers is the voucher capability checkout needs.
type Vouchers interface {
	Lookup(ctx context.Context, code string) *voucher.Voucher
	ReserveUsage(ctx context.Context, voucherID string) error
	ReleaseUsage(ctx context.Context, voucherID string) error
}

// Payments opens payment links.
type Payments interface {
	Create(ctx context.Context, orderID string, amount decimal.Decimal, exp int, info string) (payment.Payment, error)
}

// Locker serialises checkouts of the same cart.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service coordinates cart, voucher, payment and notification for one checkout.
type Service struct {
	Store       docstore.Store
	Carts       Carts
	Vouchers    Vouchers
	Payments    Payments
	Locker      Locker
	Notifier    notify.Enqueuer
	ShippingFee decimal.Decimal
	CurrencyExp int
	LockTTL     time.Duration
	Now         func() time.Time
	Logger      zerolog.Logger
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil || s.Carts == nil || s.Payments == nil {
		return errors.New("checkout service not configured")
	}
	return nil
}

// Create places an order for the cart in. Only one checkout per cart runs at a time.
func (s *Service) Create(ctx context.Context, userID string, in Input) (Order, error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	if strings.TrimSpace(userID) == "" {
		return Order{}, ErrUserRequired
	}
	in = trimInput(in)
	if err := common.Validate(in); err != nil {
		return Order{}, err
	}
	ctx, span := otel.Tracer("checkout.Service").Start(ctx, "CheckoutService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("cart.id", in.CartID))

	if s.Locker == nil {
		return s.create(ctx, userID, in)
	}
	var order Order
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	err := s.Locker.WithLock(ctx, "checkout:"+in.CartID, ttl, func(ctx context.Context) error {
		var err error
		order, err = s.create(ctx, userID, in)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return order, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	return order, nil
}

func (s *Service) create(ctx context.Context, userID string, in Input) (Order, error) {
	c, err := s.Carts.Get(ctx, in.CartID)
	if err != nil {
		return Order{}, fmt.Errorf("load cart: %w", err)
	}
	if c.IsEmpty() {
		return Order{}, ErrEmptyCart
	}

	now := s.now()
	v := s.lookupVoucher(ctx, in.VoucherCode)
	summary := pricing.Compute(c.Lines, s.ShippingFee, v, now)
	if v != nil && summary.Discount.IsPositive() {
		switch err := s.Vouchers.ReserveUsage(ctx, v.ID); {
		case errors.Is(err, voucher.ErrUsageLimitReached):
			s.Logger.Warn().Str("code", v.Code).Str("cart_id", in.CartID).Msg("voucher_exhausted_at_checkout")
			summary = pricing.Compute(c.Lines, s.ShippingFee, nil, now)
			summary.VoucherCode = v.Code
			summary.VoucherNote = err.Error()
			v = nil
		case err != nil:
			return Order{}, fmt.Errorf("reserve voucher: %w", err)
		}
	} else {
		v = nil
	}

	order := Order{
		UserID: userID,
		CartID: in.CartID,
		Customer: Customer{
			Name:    in.Name,
			Phone:   in.Phone,
			Email:   in.Email,
			Address: in.Address,
			Note:    in.Note,
		},
		Lines:     c.Lines,
		Summary:   summary,
		Status:    StatusPendingPayment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if v != nil {
		order.VoucherID = v.ID
	}
	id, err := s.Store.Add(ctx, Collection, order)
	if err != nil {
		s.releaseVoucher(ctx, order.VoucherID)
		return Order{}, fmt.Errorf("store order: %w", err)
	}
	order.ID = id

	pay, payErr := s.Payments.Create(ctx, id, summary.Total, s.CurrencyExp, "Thanh toán đơn hàng "+id)
	if payErr != nil {
		order.Status = StatusPaymentFailed
		order.UpdatedAt = s.now()
		if err := s.Store.Set(ctx, Collection, id, order); err != nil {
			s.Logger.Error().Err(err).Str("order_id", id).Msg("order_status_update_failed")
		}
		s.releaseVoucher(ctx, order.VoucherID)
		return order, fmt.Errorf("create payment: %w", payErr)
	}

	order.Status = StatusAwaitingPayment
	order.Gateway = pay.Gateway
	order.PayURL = pay.PayURL
	order.UpdatedAt = s.now()
	if err := s.Store.Set(ctx, Collection, id, order); err != nil {
		return Order{}, fmt.Errorf("store order: %w", err)
	}
	if err := s.Carts.Clear(ctx, in.CartID); err != nil {
		s.Logger.Warn().Err(err).Str("cart_id", in.CartID).Msg("cart_clear_failed")
	}
	s.enqueueNotification(ctx, order)
	return order, nil
}

func (s *Service) lookupVoucher(ctx context.Context, code string) *voucher.Voucher {
	if s.Vouchers == nil || code == "" {
		return nil
	}
	return s.Vouchers.Lookup(ctx, code)
}

func (s *Service) releaseVoucher(ctx context.Context, voucherID string) {
	if voucherID == "" || s.Vouchers == nil {
		return
	}
	if err := s.Vouchers.ReleaseUsage(ctx, voucherID); err != nil {
		s.Logger.Warn().Err(err).Str("voucher_id", voucherID).Msg("voucher_release_failed")
	}
}

func (s *Service) enqueueNotification(ctx context.Context, order Order) {
	if s.Notifier == nil {
		return
	}
	task, err := notify.NewOrderPlacedTask(notify.OrderPlaced{
		OrderID: order.ID,
		UserID:  order.UserID,
		Total:   order.Summary.Total,
		PayURL:  order.PayURL,
	})
	if err == nil {
		err = s.Notifier.Enqueue(ctx, task)
	}
	if err != nil {
		s.Logger.Warn().Err(err).Str("order_id", order.ID).Msg("notify_enqueue_failed")
	}
}

// Get returns an order owned by userID.
func (s *Service) Get(ctx context.Context, userID, orderID string) (Order, error) {
	if s == nil || s.Store == nil {
		return Order{}, errors.New("checkout service not configured")
	}
	var o Order
	if err := s.Store.Get(ctx, Collection, orderID, &o); err != nil {
		if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidPath) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	if o.UserID != userID {
		return Order{}, ErrNotFound
	}
	if o.ID == "" {
		o.ID = orderID
	}
	return o, nil
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Order, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("checkout service not configured")
	}
	docs, err := s.Store.Query(ctx, Collection, docstore.Where("userId", userID))
	if err != nil {
		return nil, err
	}
	out := make([]Order, 0, len(docs))
	for _, doc := range docs {
		var o Order
		if err := doc.Decode(&o); err != nil {
			continue
		}
		if o.ID == "" {
			o.ID = doc.ID
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func trimInput(in Input) Input {
	in.CartID = strings.TrimSpace(in.CartID)
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.Address = strings.TrimSpace(in.Address)
	in.Note = strings.TrimSpace(in.Note)
	in.VoucherCode = strings.TrimSpace(in.VoucherCode)
	return in
}
