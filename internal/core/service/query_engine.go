package service

import (
	"strings"

	"github.com/rl1809/storefront/internal/core/domain"
)

// FilterProducts keeps the products matching every part of f, in source order.
func FilterProducts(products []domain.Product, f domain.Filter) []domain.Product {
	search := strings.ToLower(f.Search)

	filtered := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if p.Price.LessThan(f.MinPrice) || p.Price.GreaterThan(f.MaxPrice) {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

// TotalPages is ceil(count / pageSize).
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 || count <= 0 {
		return 0
	}
	return (count-1)/pageSize + 1
}

// Paginate returns the 1-indexed page of products. Pages outside the result
// set are empty.
func Paginate(products []domain.Product, page, pageSize int) []domain.Product {
	if page < 1 || page > TotalPages(len(products), pageSize) {
		return []domain.Product{}
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, len(products))

	out := make([]domain.Product, end-start)
	copy(out, products[start:end])
	return out
}

func QueryProducts(products []domain.Product, f domain.Filter, page, pageSize int) domain.ProductPage {
	filtered := FilterProducts(products, f)
	return domain.ProductPage{
		Products:      Paginate(filtered, page, pageSize),
		CurrentPage:   page,
		TotalPages:    TotalPages(len(filtered), pageSize),
		TotalProducts: len(filtered),
		PageSize:      pageSize,
	}
}

// Categories lists the distinct categories of the full catalog in order of
// first appearance.
func Categories(products []domain.Product) []string {
	seen := make(map[string]struct{}, len(products))
	categories := make([]string, 0)
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	return categories
}
