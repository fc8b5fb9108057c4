package voucher

import (
	"errors"
	"net/http"

	"github.com/noah-isme/shopmate/internal/common"
	"github.com/noah-isme/shopmate/internal/docstore"
)

// Handler exposes voucher listing, saving, and administrative seeding endpoints.
type Handler struct {
	Svc *Service
}

type saveRequest struct {
	Code string `json:"code" validate:"required"`
}

// ListActive returns vouchers currently available to shoppers.
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.Svc.ListActive(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list vouchers", nil)
		return
	}
	common.Data(w, http.StatusOK, vouchers)
}

// Create seeds a voucher.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload Voucher
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	created, err := h.Svc.Create(r.Context(), payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, created)
}

// Save attaches a voucher to the calling user by code.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	var payload saveRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	v, err := h.Svc.GetByCode(r.Context(), payload.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	saved, err := h.Svc.SaveForUser(r.Context(), userID, v.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	saved.Voucher = &v
	common.Data(w, http.StatusOK, saved)
}

// ListSaved returns the calling user's saved vouchers.
func (h *Handler) ListSaved(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	saved, err := h.Svc.ListSaved(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list saved vouchers", nil)
		return
	}
	common.Data(w, http.StatusOK, saved)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "VOUCHER_NOT_FOUND", "voucher not found", nil)
	case errors.Is(err, ErrDuplicateCode), errors.Is(err, ErrDuplicateID):
		common.JSONError(w, http.StatusConflict, "VOUCHER_EXISTS", "voucher already exists", nil)
	case errors.Is(err, ErrUsageLimitReached):
		common.JSONError(w, http.StatusConflict, "VOUCHER_EXHAUSTED", "voucher usage limit reached", nil)
	case errors.Is(err, docstore.ErrConflict):
		common.WriteError(w, common.Conflict("CONCURRENT_UPDATE", "the resource changed concurrently, please retry", err))
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher request failed", nil)
	}
}
