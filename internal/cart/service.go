package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/shopmate/internal/catalog"
	"github.com/noah-isme/shopmate/internal/docstore"
	"github.com/noah-isme/shopmate/internal/pricing"
	"github.com/noah-isme/shopmate/internal/voucher"
)

// Collection holds one document per cart id.
const Collection = "carts"

// ErrInvalidCartID is returned for a blank cart id.
var ErrInvalidCartID = errors.New("cart id is required")

// ProductSource resolves catalog prices.
type ProductSource interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

// VoucherSource performs the soft voucher lookup used for quotes.
type VoucherSource interface {
	Lookup(ctx context.Context, code string) *voucher.Voucher
}

// Service encapsulates cart domain operations.
type Service struct {
	Store       docstore.Store
	Catalog     ProductSource
	Vouchers    VoucherSource
	ShippingFee decimal.Decimal
	TTL         time.Duration
	Now         func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

// decode reads a stored cart. A cart idle longer than the TTL comes back empty.
func (s *Service) decode(id string, doc docstore.Document, exists bool) (Cart, error) {
	c := Cart{ID: id}
	if exists {
		if err := doc.Decode(&c); err != nil {
			return Cart{}, fmt.Errorf("decode cart: %w", err)
		}
	}
	s.normalize(id, &c)
	return c, nil
}

func (s *Service) normalize(id string, c *Cart) {
	c.ID = id
	if c.Lines == nil || (!c.UpdatedAt.IsZero() && s.now().Sub(c.UpdatedAt) > s.ttl()) {
		c.Lines = []pricing.Line{}
	}
}

// Get returns the cart, or an empty one when nothing has been stored yet.
func (s *Service) Get(ctx context.Context, cartID string) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return Cart{}, ErrInvalidCartID
	}
	var c Cart
	if err := s.Store.Get(ctx, Collection, cartID, &c); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return Cart{}, err
	}
	s.normalize(cartID, &c)
	return c, nil
}

// mutate applies fn to the cart in one atomic update and returns the stored result.
func (s *Service) mutate(ctx context.Context, cartID string, fn func(*Cart) error) (Cart, error) {
	if err := s.ready(); err != nil {
		return Cart{}, err
	}
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return Cart{}, ErrInvalidCartID
	}
	var out Cart
	err := s.Store.Update(ctx, Collection, cartID, func(cur docstore.Document, exists bool) (any, error) {
		c, err := s.decode(cartID, cur, exists)
		if err != nil {
			return nil, err
		}
		if err := fn(&c); err != nil {
			return nil, err
		}
		c.UpdatedAt = s.now()
		out = c
		return c, nil
	})
	if err != nil {
		return Cart{}, err
	}
	return out, nil
}

// AddItem adds qty of a product. The unit price always comes from the catalog.
func (s *Service) AddItem(ctx context.Context, cartID, productID, size string, qty int) (Cart, error) {
	if qty <= 0 {
		return Cart{}, ErrInvalidQuantity
	}
	if s == nil || s.Catalog == nil {
		return Cart{}, errors.New("cart service not configured")
	}
	productID = strings.TrimSpace(productID)
	product, err := s.Catalog.Get(ctx, productID)
	if err != nil {
		return Cart{}, err
	}
	return s.mutate(ctx, cartID, func(c *Cart) error {
		return c.Add(productID, size, product.Price, qty)
	})
}

// UpdateItem sets a line's quantity; zero or less removes it.
func (s *Service) UpdateItem(ctx context.Context, cartID, productID, size string, qty int) (Cart, error) {
	return s.mutate(ctx, cartID, func(c *Cart) error {
		return c.SetQuantity(productID, size, qty)
	})
}

// RemoveItem drops a line. Removing a missing line is not an error.
func (s *Service) RemoveItem(ctx context.Context, cartID, productID, size string) (Cart, error) {
	return s.mutate(ctx, cartID, func(c *Cart) error {
		c.Remove(productID, size)
		return nil
	})
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, cartID string) error {
	_, err := s.mutate(ctx, cartID, func(c *Cart) error {
		c.Clear()
		return nil
	})
	return err
}

// Quote prices the cart with an optional voucher code. Unknown or ineligible
// vouchers are withheld rather than rejected.
func (s *Service) Quote(ctx context.Context, cartID, voucherCode string) (pricing.Summary, error) {
	c, err := s.Get(ctx, cartID)
	if err != nil {
		return pricing.Summary{}, err
	}
	var v *voucher.Voucher
	if s.Vouchers != nil && strings.TrimSpace(voucherCode) != "" {
		v = s.Vouchers.Lookup(ctx, voucherCode)
	}
	return pricing.Compute(c.Lines, s.ShippingFee, v, s.now()), nil
}
