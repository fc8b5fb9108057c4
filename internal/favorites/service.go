// Package favorites keeps each user's saved products.
package favorites

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/shopmate/internal/catalog"
	"github.com/noah-isme/shopmate/internal/docstore"
)

// ErrProductRequired is returned when no product id is given.
var ErrProductRequired = errors.New("product id is required")

// Favorite marks a product the user saved.
type Favorite struct {
	ProductID string    `json:"productId"`
	SavedAt   time.Time `json:"savedAt"`
}

// Products resolves product ids.
type Products interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

// Service stores favorites under users/{uid}/favorites/{productId}.
type Service struct {
	Store   docstore.Store
	Catalog Products
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func path(userID string) string {
	return docstore.Path("users", userID, "favorites")
}

// Toggle flips the favorite state of productID and reports the new state.
func (s *Service) Toggle(ctx context.Context, userID, productID string) (bool, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return false, ErrProductRequired
	}
	if s.Catalog != nil {
		if _, err := s.Catalog.Get(ctx, productID); err != nil {
			return false, err
		}
	}
	var favorited bool
	err := s.Store.Update(ctx, path(userID), productID, func(_ docstore.Document, exists bool) (any, error) {
		favorited = !exists
		if exists {
			return nil, nil
		}
		return Favorite{ProductID: productID, SavedAt: s.now()}, nil
	})
	return favorited, err
}

// IsFavorite reports whether userID saved productID.
func (s *Service) IsFavorite(ctx context.Context, userID, productID string) (bool, error) {
	var f Favorite
	err := s.Store.Get(ctx, path(userID), strings.TrimSpace(productID), &f)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, docstore.ErrInvalidPath):
		return false, nil
	default:
		return false, err
	}
}

// List returns the user's favorites, most recently saved first.
func (s *Service) List(ctx context.Context, userID string) ([]Favorite, error) {
	docs, err := s.Store.Query(ctx, path(userID))
	if err != nil {
		return nil, err
	}
	out := make([]Favorite, 0, len(docs))
	for _, doc := range docs {
		var f Favorite
		if err := doc.Decode(&f); err != nil {
			continue
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SavedAt.After(out[j].SavedAt) })
	return out, nil
}
