package voucher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/shopmate/internal/common"
	"github.com/noah-isme/shopmate/internal/docstore"
	"github.com/noah-isme/shopmate/internal/obs"
)

// Collection holds voucher documents keyed by id.
const Collection = "vouchers"

const (
	codeIndex       = "voucherCodes"
	savedCollection = "savedVouchers"
)

// SavedVoucher is the per-user join record under users/{uid}/savedVouchers/{voucherId}.
type SavedVoucher struct {
	VoucherID string    `json:"voucherId"`
	Quantity  int       `json:"quantity"`
	SavedAt   time.Time `json:"savedAt"`
	Voucher   *Voucher  `json:"voucher,omitempty"`
}

type codeEntry struct {
	VoucherID string `json:"voucherId"`
}

// Service owns voucher documents, usage counters, and saved-voucher records.
type Service struct {
	Store  docstore.Store
	Now    func() time.Time
	Logger zerolog.Logger
}

func (s *Service) ready() error {
	if s == nil || s.Store == nil {
		return errors.New("voucher service not configured")
	}
	return nil
}

// Create seeds a new voucher. Codes are unique case-insensitively, and a
// caller-supplied id must not already be taken.
func (s *Service) Create(ctx context.Context, v Voucher) (Voucher, error) {
	if err := s.ready(); err != nil {
		return Voucher{}, err
	}
	v.Code = NormalizeCode(v.Code)
	if details := validateVoucher(v); len(details) > 0 {
		return Voucher{}, common.NewValidationError(details)
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}

	err := s.Store.Update(ctx, codeIndex, v.Code, func(_ docstore.Document, exists bool) (any, error) {
		if exists {
			return nil, ErrDuplicateCode
		}
		return codeEntry{VoucherID: v.ID}, nil
	})
	if err != nil {
		return Voucher{}, err
	}
	err = s.Store.Update(ctx, Collection, v.ID, func(_ docstore.Document, exists bool) (any, error) {
		if exists {
			return nil, ErrDuplicateID
		}
		return v, nil
	})
	if err != nil {
		_ = s.Store.Delete(ctx, codeIndex, v.Code)
		if errors.Is(err, ErrDuplicateID) {
			return Voucher{}, err
		}
		return Voucher{}, fmt.Errorf("store voucher: %w", err)
	}
	return v, nil
}

// Get loads a voucher by id.
func (s *Service) Get(ctx context.Context, id string) (Voucher, error) {
	if err := s.ready(); err != nil {
		return Voucher{}, err
	}
	var v Voucher
	if err := s.Store.Get(ctx, Collection, id, &v); err != nil {
		if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidPath) {
			return Voucher{}, ErrNotFound
		}
		return Voucher{}, err
	}
	if v.ID == "" {
		v.ID = id
	}
	return v, nil
}

// GetByCode finds a voucher by code, ignoring case and surrounding whitespace.
func (s *Service) GetByCode(ctx context.Context, code string) (Voucher, error) {
	if err := s.ready(); err != nil {
		return Voucher{}, err
	}
	code = NormalizeCode(code)
	if code == "" {
		return Voucher{}, ErrNotFound
	}
	var entry codeEntry
	if err := s.Store.Get(ctx, codeIndex, code, &entry); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return Voucher{}, ErrNotFound
		}
		return Voucher{}, err
	}
	return s.Get(ctx, entry.VoucherID)
}

// ListActive returns vouchers a shopper can currently use, sorted by code.
func (s *Service) ListActive(ctx context.Context) ([]Voucher, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	docs, err := s.Store.Query(ctx, Collection, docstore.Where("isActive", true))
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]Voucher, 0, len(docs))
	for _, doc := range docs {
		var v Voucher
		if err := doc.Decode(&v); err != nil {
			s.Logger.Warn().Err(err).Str("voucher_id", doc.ID).Msg("voucher_decode_failed")
			continue
		}
		if v.Usable(now) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Lookup is the soft lookup used while pricing: a blank, unknown, or unreadable
// code yields nil and is logged, never returned as an error.
func (s *Service) Lookup(ctx context.Context, code string) *Voucher {
	if NormalizeCode(code) == "" {
		return nil
	}
	v, err := s.GetByCode(ctx, code)
	if err != nil {
		result := "error"
		if errors.Is(err, ErrNotFound) {
			result = "not_found"
		}
		obs.CountVoucher(result)
		s.Logger.Warn().Err(err).Str("code", NormalizeCode(code)).Msg("voucher_withheld")
		return nil
	}
	obs.CountVoucher("found")
	return &v
}

// ReserveUsage atomically increments usedCount unless the usage limit is reached.
func (s *Service) ReserveUsage(ctx context.Context, voucherID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	err := s.Store.Update(ctx, Collection, voucherID, func(cur docstore.Document, exists bool) (any, error) {
		if !exists {
			return nil, ErrNotFound
		}
		var v Voucher
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		if v.Exhausted() {
			return nil, ErrUsageLimitReached
		}
		v.UsedCount++
		return v, nil
	})
	switch {
	case err == nil:
		obs.CountVoucher("reserved")
	case errors.Is(err, ErrUsageLimitReached):
		obs.CountVoucher("exhausted")
	}
	return err
}

// ReleaseUsage undoes a ReserveUsage whose order never reached payment.
func (s *Service) ReleaseUsage(ctx context.Context, voucherID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.Store.Update(ctx, Collection, voucherID, func(cur docstore.Document, exists bool) (any, error) {
		if !exists {
			return nil, docstore.ErrSkip
		}
		var v Voucher
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		if v.UsedCount <= 0 {
			return nil, docstore.ErrSkip
		}
		v.UsedCount--
		return v, nil
	})
}

// SaveForUser records that userID saved the voucher. Saving again increments
// the quantity; the existence check and the write happen in one atomic update.
func (s *Service) SaveForUser(ctx context.Context, userID, voucherID string) (SavedVoucher, error) {
	if err := s.ready(); err != nil {
		return SavedVoucher{}, err
	}
	if _, err := s.Get(ctx, voucherID); err != nil {
		return SavedVoucher{}, err
	}
	var saved SavedVoucher
	err := s.Store.Update(ctx, savedPath(userID), voucherID, func(cur docstore.Document, exists bool) (any, error) {
		if exists {
			if err := cur.Decode(&saved); err != nil {
				return nil, err
			}
			saved.Quantity++
		} else {
			saved = SavedVoucher{VoucherID: voucherID, Quantity: 1, SavedAt: s.now()}
		}
		return saved, nil
	})
	if err != nil {
		return SavedVoucher{}, err
	}
	return saved, nil
}

// SaveByCode attaches a voucher to a user by code, as when a prize is won.
// An unknown code is logged and reported as not saved.
func (s *Service) SaveByCode(ctx context.Context, userID, code string) (bool, error) {
	v, err := s.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.Logger.Warn().Str("code", NormalizeCode(code)).Str("user_id", userID).Msg("voucher_code_not_found")
			return false, nil
		}
		return false, err
	}
	if _, err := s.SaveForUser(ctx, userID, v.ID); err != nil {
		return false, err
	}
	return true, nil
}

// ListSaved returns the user's saved vouchers with voucher details attached where available.
func (s *Service) ListSaved(ctx context.Context, userID string) ([]SavedVoucher, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	docs, err := s.Store.Query(ctx, savedPath(userID))
	if err != nil {
		return nil, err
	}
	out := make([]SavedVoucher, 0, len(docs))
	for _, doc := range docs {
		var sv SavedVoucher
		if err := doc.Decode(&sv); err != nil {
			continue
		}
		if v, err := s.Get(ctx, sv.VoucherID); err == nil {
			sv.Voucher = &v
		}
		out = append(out, sv)
	}
	return out, nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func savedPath(userID string) string {
	return docstore.Path("users", userID, savedCollection)
}

func validateVoucher(v Voucher) map[string]string {
	details := map[string]string{}
	if v.Code == "" {
		details["code"] = "is required"
	}
	if !v.DiscountType.Valid() {
		details["discountType"] = "must be one of PERCENTAGE FIXED"
	}
	if v.DiscountValue.IsNegative() {
		details["discount"] = "must be at least 0"
	} else if v.DiscountType == Percentage && v.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		details["discount"] = "must be at most 100"
	}
	if v.MinOrderAmount.IsNegative() {
		details["minOrderAmount"] = "must be at least 0"
	}
	if v.MaxDiscountAmount != nil && v.MaxDiscountAmount.IsNegative() {
		details["maxDiscountAmount"] = "must be at least 0"
	}
	if v.UsageLimit != nil && *v.UsageLimit < 0 {
		details["usageLimit"] = "must be at least 0"
	}
	if v.UsedCount < 0 {
		details["usedCount"] = "must be at least 0"
	}
	return details
}
