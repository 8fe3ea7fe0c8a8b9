package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type CatalogRepository interface {
	// ListProducts returns the whole catalog in its display order
	ListProducts(ctx context.Context) ([]domain.Product, error)
}
