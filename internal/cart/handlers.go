package cart

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/shopmate/internal/catalog"
	"github.com/noah-isme/shopmate/internal/common"
	"github.com/noah-isme/shopmate/internal/docstore"
	"github.com/noah-isme/shopmate/internal/pricing"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Size      string `json:"size" validate:"max=32"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
}

type updateItemRequest struct {
	Size     string `json:"size" validate:"max=32"`
	Quantity int    `json:"quantity" validate:"min=0,max=99"`
}

type quoteRequest struct {
	VoucherCode string `json:"voucherCode" validate:"max=64"`
}

type cartResponse struct {
	Cart
	Summary pricing.Summary `json:"summary"`
}

func (h *Handler) respond(w http.ResponseWriter, status int, c Cart) {
	common.Data(w, status, cartResponse{
		Cart:    c,
		Summary: pricing.Compute(c.Lines, h.Svc.ShippingFee, nil, h.Svc.now()),
	})
}

// Get handles GET /api/v1/carts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, c)
}

// AddItem handles POST /api/v1/carts/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, "id"), payload.ProductID, payload.Size, payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, c)
}

// UpdateItem handles PATCH /api/v1/carts/{id}/items/{productId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var payload updateItemRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.Svc.UpdateItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productId"), payload.Size, payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, c)
}

// RemoveItem handles DELETE /api/v1/carts/{id}/items/{productId}?size=.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productId"), r.URL.Query().Get("size"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, c)
}

// Quote handles POST /api/v1/carts/{id}/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var payload quoteRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	summary, err := h.Svc.Quote(r.Context(), chi.URLParam(r, "id"), payload.VoucherCode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, summary)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case common.IsAppError(err):
		common.WriteError(w, err)
	case errors.Is(err, ErrInvalidCartID):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
	case errors.Is(err, ErrInvalidQuantity):
		common.WriteError(w, common.NewValidationError(map[string]string{"quantity": "must be at least 1"}))
	case errors.Is(err, ErrLineNotFound):
		common.JSONError(w, http.StatusNotFound, "CART_LINE_NOT_FOUND", "item is not in the cart", nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found", nil)
	case errors.Is(err, docstore.ErrConflict):
		common.WriteError(w, common.Conflict("CONCURRENT_UPDATE", "the resource changed concurrently, please retry", err))
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart operation failed", nil)
	}
}
