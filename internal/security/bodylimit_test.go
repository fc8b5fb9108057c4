package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/noah-isme/shopmate/internal/common"
)

type payload struct {
	Text string `json:"text"`
}

func decodeHandler(t *testing.T, captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p payload
		if err := common.DecodeJSON(r, &p); err != nil {
			common.WriteError(w, err)
			return
		}
		*captured = p.Text
		w.WriteHeader(http.StatusOK)
	})
}

func TestBodyLimitAllowsWithinLimit(t *testing.T) {
	var captured string
	handler := BodyLimit{Max: 64}.Middleware(decodeHandler(t, &captured))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/assistant/messages", strings.NewReader(`{"text":"xin chào"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured != "xin chào" {
		t.Fatalf("expected body to pass through, got %q", captured)
	}
}

func TestBodyLimitRejectsOversizedWhileReading(t *testing.T) {
	var captured string
	handler := BodyLimit{Max: 16}.Middleware(decodeHandler(t, &captured))

	// io.MultiReader hides the length so only the reader can enforce the cap.
	body := io.MultiReader(strings.NewReader(`{"text":"`+strings.Repeat("a", 64)+`"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/messages", body)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "PAYLOAD_TOO_LARGE") {
		t.Fatalf("expected error envelope, got %s", rr.Body.String())
	}
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	called := false
	handler := BodyLimit{Max: 5}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader("content"))
	req.ContentLength = 100
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge || called {
		t.Fatalf("expected 413 before the handler, got %d (called=%v)", rr.Code, called)
	}
}
