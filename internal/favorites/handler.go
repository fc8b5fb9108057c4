package favorites

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/shopmate/internal/catalog"
	"github.com/noah-isme/shopmate/internal/common"
	"github.com/noah-isme/shopmate/internal/docstore"
)

// Handler exposes favorites for the calling user.
type Handler struct {
	Svc *Service
}

type toggleRequest struct {
	ProductID string `json:"productId" validate:"required,max=128"`
}

// List handles GET /api/v1/users/me/favorites.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	favs, err := h.Svc.List(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, favs)
}

// Toggle handles POST /api/v1/users/me/favorites.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	var payload toggleRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	favorited, err := h.Svc.Toggle(r.Context(), userID, payload.ProductID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]bool{"favorited": favorited})
}

// Check handles GET /api/v1/users/me/favorites/{productId}.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "login required", nil)
		return
	}
	exists, err := h.Svc.IsFavorite(r.Context(), userID, chi.URLParam(r, "productId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]bool{"favorited": exists})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductRequired):
		common.WriteError(w, common.NewValidationError(map[string]string{"productId": "is required"}))
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found", nil)
	case errors.Is(err, docstore.ErrConflict):
		common.WriteError(w, common.Conflict("CONCURRENT_UPDATE", "the resource changed concurrently, please retry", err))
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "favorites unavailable", nil)
	}
}
