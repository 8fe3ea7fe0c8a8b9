package service

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

// Browser is the filter and pagination state of one shopper's catalog view.
type Browser struct {
	products []domain.Product
	pageSize int
	ceiling  decimal.Decimal

	mu          sync.Mutex
	filter      domain.Filter
	currentPage int
}

func NewBrowser(products []domain.Product, pageSize int, ceiling decimal.Decimal) *Browser {
	return &Browser{
		products:    products,
		pageSize:    pageSize,
		ceiling:     ceiling,
		filter:      domain.DefaultFilter(ceiling),
		currentPage: 1,
	}
}

// UpdateFilters merges patch into the current filter. The page always goes
// back to 1: a page number from the previous result set means nothing here.
func (b *Browser) UpdateFilters(patch domain.FilterPatch) domain.ProductPage {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.filter = b.filter.Apply(patch)
	b.currentPage = 1
	return b.viewLocked()
}

func (b *Browser) ClearFilters() domain.ProductPage {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.filter = domain.DefaultFilter(b.ceiling)
	b.currentPage = 1
	return b.viewLocked()
}

func (b *Browser) SetPage(page int) domain.ProductPage {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.currentPage = page
	return b.viewLocked()
}

func (b *Browser) View() domain.ProductPage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.viewLocked()
}

func (b *Browser) Filter() domain.Filter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.filter
}

func (b *Browser) CurrentPage() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentPage
}

func (b *Browser) viewLocked() domain.ProductPage {
	return QueryProducts(b.products, b.filter, b.currentPage, b.pageSize)
}
