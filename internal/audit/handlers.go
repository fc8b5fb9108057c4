package audit

import (
	"net/http"
	"strings"

	"github.com/noah-isme/shopmate/internal/common"
)

// Handler exposes the audit trail to administrators.
type Handler struct {
	Svc *Service
}

// List handles GET /api/v1/admin/audit-logs?actor=&resource=&page=&limit=.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := h.Svc.List(r.Context(), Filter{
		ActorID:  strings.TrimSpace(q.Get("actor")),
		Resource: strings.TrimSpace(q.Get("resource")),
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch audit logs", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 50, 200)
	items, meta := common.Paginate(entries, page, perPage)
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "pagination": meta})
}
