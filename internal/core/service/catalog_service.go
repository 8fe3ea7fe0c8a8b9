package service

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var tracer = otel.Tracer("github.com/rl1809/storefront/internal/core/service")

// CatalogService serves read-only views over a catalog loaded once at startup.
type CatalogService struct {
	products   []domain.Product
	byID       map[string]domain.Product
	categories []string
	pageSize   int
	ceiling    decimal.Decimal

	mu       sync.Mutex
	browsers map[string]*browserEntry
}

type browserEntry struct {
	browser  *Browser
	lastUsed time.Time
}

func NewCatalogService(ctx context.Context, repo port.CatalogRepository, pageSize int, ceiling decimal.Decimal) (*CatalogService, error) {
	if repo == nil {
		panic("service: nil catalog repository")
	}
	if pageSize <= 0 {
		return nil, errors.Errorf("page size must be positive, got %d", pageSize)
	}

	products, err := repo.ListProducts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		if _, dup := byID[p.ID]; dup {
			return nil, errors.Errorf("duplicate product id %q", p.ID)
		}
		byID[p.ID] = p
	}

	return &CatalogService{
		products:   products,
		byID:       byID,
		categories: Categories(products),
		pageSize:   pageSize,
		ceiling:    ceiling,
		browsers:   make(map[string]*browserEntry),
	}, nil
}

func (s *CatalogService) Products() []domain.Product {
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out
}

func (s *CatalogService) Categories() []string {
	out := make([]string, len(s.categories))
	copy(out, s.categories)
	return out
}

func (s *CatalogService) Product(id string) (domain.Product, error) {
	p, ok := s.byID[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (s *CatalogService) PageSize() int {
	return s.pageSize
}

func (s *CatalogService) PriceCeiling() decimal.Decimal {
	return s.ceiling
}

func (s *CatalogService) DefaultFilter() domain.Filter {
	return domain.DefaultFilter(s.ceiling)
}

// Query runs a one-off filtered, paginated query that keeps no state.
func (s *CatalogService) Query(ctx context.Context, f domain.Filter, page int) domain.ProductPage {
	_, span := tracer.Start(ctx, "catalog.query", trace.WithAttributes(
		attribute.String("filter.category", f.Category),
		attribute.String("filter.search", f.Search),
		attribute.Int("page", page),
	))
	defer span.End()

	result := QueryProducts(s.products, f, page, s.pageSize)
	span.SetAttributes(attribute.Int("result.total", result.TotalProducts))
	return result
}

// Browser returns the browse state of a session, creating it on first use.
func (s *CatalogService) Browser(sessionID string) *Browser {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.browsers[sessionID]
	if !ok {
		entry = &browserEntry{browser: NewBrowser(s.products, s.pageSize, s.ceiling)}
		s.browsers[sessionID] = entry
	}
	entry.lastUsed = time.Now()
	return entry.browser
}

// SweepBrowsers drops the browse state of sessions idle since cutoff. A
// returning shopper starts again from the default view.
func (s *CatalogService) SweepBrowsers(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, entry := range s.browsers {
		if !entry.lastUsed.After(cutoff) {
			delete(s.browsers, id)
			evicted++
		}
	}
	return evicted
}
