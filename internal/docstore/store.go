// Package docstore implements the document persistence contract the rest of the
// service is written against: keyed JSON documents grouped into collections,
// with an atomic read-modify-write primitive for counters and check-then-act flows.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrConflict is returned when an optimistic update could not be applied after retrying.
	ErrConflict = errors.New("docstore: concurrent update conflict")
	// ErrSkip may be returned by an UpdateFunc to abort without writing.
	ErrSkip = errors.New("docstore: skip write")
	// ErrInvalidPath is returned for empty collection names or ids.
	ErrInvalidPath = errors.New("docstore: collection and id are required")
)

// Document is a stored JSON document and its id.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document body into dst.
func (d Document) Decode(dst any) error {
	if len(d.Data) == 0 {
		return ErrNotFound
	}
	return json.Unmarshal(d.Data, dst)
}

// Filter is an equality constraint on a top-level document field.
type Filter struct {
	Field string
	Value any
}

// Where builds an equality filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// SetOption tweaks Set behaviour.
type SetOption func(*setOptions)

type setOptions struct {
	merge bool
}

// Merge makes Set merge top-level fields into the existing document instead of replacing it.
func Merge() SetOption {
	return func(o *setOptions) { o.merge = true }
}

// UpdateFunc receives the current document (exists reports whether it was
// found) and returns the replacement value. It may run more than once.
type UpdateFunc func(current Document, exists bool) (any, error)

// Store is the persistence capability used by every service in this module.
type Store interface {
	Get(ctx context.Context, collection, id string, dst any) error
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Set(ctx context.Context, collection, id string, doc any, opts ...SetOption) error
	Delete(ctx context.Context, collection, id string) error
	Add(ctx context.Context, collection string, doc any) (string, error)
	Update(ctx context.Context, collection, id string, fn UpdateFunc) error
}

// Path joins path segments into a nested collection name, e.g.
// Path("users", uid, "savedVouchers").
func Path(segments ...string) string {
	cleaned := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(strings.TrimSpace(s), "/")
		if s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return strings.Join(cleaned, "/")
}

func checkPath(collection, id string) error {
	if strings.TrimSpace(collection) == "" || strings.TrimSpace(id) == "" {
		return ErrInvalidPath
	}
	return nil
}

func applySetOptions(opts []SetOption) setOptions {
	var o setOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func encode(doc any) (json.RawMessage, error) {
	if raw, ok := doc.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode document: %w", err)
	}
	return data, nil
}

// mergeFields overlays the top-level fields of patch onto base.
func mergeFields(base, patch json.RawMessage) (json.RawMessage, error) {
	if len(base) == 0 {
		return patch, nil
	}
	var current map[string]json.RawMessage
	if err := json.Unmarshal(base, &current); err != nil {
		return nil, fmt.Errorf("docstore: decode existing document: %w", err)
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(patch, &overlay); err != nil {
		return nil, fmt.Errorf("docstore: merge requires an object: %w", err)
	}
	if current == nil {
		current = make(map[string]json.RawMessage, len(overlay))
	}
	for k, v := range overlay {
		current[k] = v
	}
	return json.Marshal(current)
}

// matches reports whether every filter holds for the document body. Values
// are compared after a JSON round trip, so 3 and 3.0 are equal but "3" is not.
func matches(data json.RawMessage, filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	for _, f := range filters {
		got, ok := fields[f.Field]
		if !ok {
			return false
		}
		want, err := json.Marshal(f.Value)
		if err != nil {
			return false
		}
		if !jsonEqual(got, want) {
			return false
		}
	}
	return true
}

func jsonEqual(a, b json.RawMessage) bool {
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}
