// Package audit keeps a trail of administrative writes in the document store.
package audit

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/shopmate/internal/docstore"
)

// Collection holds audit entries.
const Collection = "auditLogs"

// Entry is one recorded request.
type Entry struct {
	ID         string    `json:"id,omitempty"`
	ActorID    string    `json:"actorId,omitempty"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resourceId,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	IP         string    `json:"ip,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Service persists audit entries.
type Service struct {
	Store docstore.Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Record stores e, stamping CreatedAt and deriving Action and Resource from the route when empty.
func (s *Service) Record(ctx context.Context, e Entry, route string) (string, error) {
	if s == nil || s.Store == nil {
		return "", errors.New("audit: store not configured")
	}
	e.Action = buildAction(e.Action, e.Method, route)
	e.Resource = buildResource(e.Resource, route)
	e.CreatedAt = s.now()
	return s.Store.Add(ctx, Collection, e)
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	ActorID  string
	Resource string
}

func (f Filter) docstore() []docstore.Filter {
	var out []docstore.Filter
	if f.ActorID != "" {
		out = append(out, docstore.Where("actorId", f.ActorID))
	}
	if f.Resource != "" {
		out = append(out, docstore.Where("resource", f.Resource))
	}
	return out
}

// List returns matching entries newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("audit: store not configured")
	}
	docs, err := s.Store.Query(ctx, Collection, f.docstore()...)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		var e Entry
		if err := doc.Decode(&e); err != nil {
			continue
		}
		e.ID = doc.ID
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

// buildResource turns /api/v1/admin/vouchers into admin.vouchers.
func buildResource(resource, route string) string {
	if trimmed := strings.TrimSpace(resource); trimmed != "" {
		return trimmed
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		segments = segments[2:]
	}
	return strings.Join(segments, ".")
}
