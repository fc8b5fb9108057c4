package assistant

import (
	"errors"
	"net/http"

	"github.com/noah-isme/shopmate/internal/common"
)

// Handler exposes the chat endpoint.
type Handler struct {
	Svc *Service
}

type messageRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}

// Message handles POST /api/v1/assistant/messages.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var payload messageRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	reply, err := h.Svc.Reply(r.Context(), payload.Text)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			common.WriteError(w, common.NewValidationError(map[string]string{"text": "is required"}))
			return
		}
		common.JSONError(w, http.StatusServiceUnavailable, "ASSISTANT_UNAVAILABLE", "assistant is temporarily unavailable", nil)
		return
	}
	common.Data(w, http.StatusOK, reply)
}
