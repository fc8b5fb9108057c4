package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/shopmate/internal/obs"
)

// ErrPaymentUnavailable is returned when neither gateway produced a payment.
var ErrPaymentUnavailable = errors.New("payment: no gateway available")

// Service creates payments on the primary gateway and falls back when it fails.
type Service struct {
	Primary  Gateway
	Fallback Gateway
	Logger   zerolog.Logger
}

// Payment is a created payment link.
type Payment struct {
	Gateway     string `json:"gateway"`
	PayURL      string `json:"payUrl"`
	AmountMinor string `json:"amount"`
}

// Create opens a payment for amount, converted to minor units with exponent exp.
func (s *Service) Create(ctx context.Context, orderID string, amount decimal.Decimal, exp int, info string) (Payment, error) {
	ctx, span := otel.Tracer("payment.Service").Start(ctx, "PaymentService.Create")
	defer span.End()
	minor := MinorUnits(amount, exp)
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("payment.amount", minor))

	if s == nil || (s.Primary == nil && s.Fallback == nil) {
		return Payment{}, ErrPaymentUnavailable
	}

	var primaryErr error
	if s.Primary != nil {
		p, err := s.attempt(ctx, s.Primary, orderID, minor, info)
		if err == nil {
			return p, nil
		}
		primaryErr = err
		span.RecordError(err)
	}
	if s.Fallback == nil {
		span.SetStatus(codes.Error, "payment unavailable")
		return Payment{}, fmt.Errorf("%w: %w", ErrPaymentUnavailable, primaryErr)
	}
	if primaryErr != nil {
		s.Logger.Warn().Err(primaryErr).Str("order_id", orderID).Str("fallback", s.Fallback.Name()).Msg("payment_gateway_fallback")
	}
	p, err := s.attempt(ctx, s.Fallback, orderID, minor, info)
	if err != nil {
		span.SetStatus(codes.Error, "payment unavailable")
		return Payment{}, fmt.Errorf("%w: %w", ErrPaymentUnavailable, errors.Join(primaryErr, err))
	}
	return p, nil
}

func (s *Service) attempt(ctx context.Context, g Gateway, orderID, minor, info string) (Payment, error) {
	res, err := g.CreatePayment(ctx, orderID, minor, info)
	if err != nil {
		obs.CountPayment(g.Name(), "error")
		return Payment{}, err
	}
	obs.CountPayment(g.Name(), "ok")
	return Payment{Gateway: g.Name(), PayURL: res.PayURL, AmountMinor: minor}, nil
}
