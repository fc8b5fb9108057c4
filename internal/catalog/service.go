package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/shopmate/internal/common"
	"github.com/noah-isme/shopmate/internal/docstore"
)

// Collection is the document collection holding products.
const Collection = "products"

// ErrNotFound is returned when a product does not exist.
var ErrNotFound = errors.New("product not found")

// Service reads products from the document store through a Redis cache.
type Service struct {
	store  docstore.Store
	cache  *Cache
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store  docstore.Store
	Cache  *Cache
	Logger zerolog.Logger
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Brand    string
	Page     int
	Limit    int
}

// NewService validates dependencies and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	return &Service{store: cfg.Store, cache: cfg.Cache, logger: cfg.Logger}, nil
}

// List returns the whole catalog in store order.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return cached(ctx, s.cache, s.logger, listKey, s.load)
}

func (s *Service) load(ctx context.Context) ([]Product, error) {
	docs, err := s.store.Query(ctx, Collection)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products := make([]Product, 0, len(docs))
	for _, doc := range docs {
		var p Product
		if err := doc.Decode(&p); err != nil {
			s.logger.Warn().Err(err).Str("product_id", doc.ID).Msg("product_decode_failed")
			continue
		}
		if p.ID == "" {
			p.ID = doc.ID
		}
		products = append(products, p)
	}
	return products, nil
}

// Get loads a single product. Unknown ids are not cached.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	return cached(ctx, s.cache, s.logger, productKey(id), func(ctx context.Context) (Product, error) {
		var p Product
		if err := s.store.Get(ctx, Collection, id, &p); err != nil {
			if errors.Is(err, docstore.ErrNotFound) || errors.Is(err, docstore.ErrInvalidPath) {
				return Product{}, ErrNotFound
			}
			return Product{}, err
		}
		if p.ID == "" {
			p.ID = id
		}
		return p, nil
	})
}

// Put stores a product and evicts it and the list from the cache.
func (s *Service) Put(ctx context.Context, p Product) error {
	if strings.TrimSpace(p.ID) == "" {
		return common.NewValidationError(map[string]string{"id": "is required"})
	}
	if err := s.store.Set(ctx, Collection, p.ID, p); err != nil {
		return err
	}
	return s.cache.evict(ctx, p.ID)
}

// Invalidate clears the cached product list.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.evict(ctx)
}

// ParseListParams reads listing filters from the query string.
func (s *Service) ParseListParams(values url.Values) ListParams {
	return ListParams{
		Query:    strings.TrimSpace(values.Get("q")),
		Category: strings.TrimSpace(values.Get("category")),
		Brand:    strings.TrimSpace(values.Get("brand")),
	}
}

// Search applies case-insensitive substring filters over the catalog.
func (s *Service) Search(ctx context.Context, params ListParams) ([]Product, error) {
	products, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if !containsFold(p.Category, params.Category) || !containsFold(p.Brand, params.Brand) {
			continue
		}
		if params.Query != "" && !containsFold(p.Name, params.Query) && !containsFold(p.Description, params.Query) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
