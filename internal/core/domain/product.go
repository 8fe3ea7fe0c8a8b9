package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

// Product is an immutable catalog entry. It is loaded once at startup and
// shared read-only by the query engine and the cart.
type Product struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Image       string          `json:"image" db:"image"`
	Category    string          `json:"category" db:"category"`
	Description string          `json:"description" db:"description"`
	Stock       int             `json:"stock" db:"stock"`
}

type ProductPage struct {
	Products      []Product `json:"products"`
	CurrentPage   int       `json:"currentPage"`
	TotalPages    int       `json:"totalPages"`
	TotalProducts int       `json:"totalProducts"`
	PageSize      int       `json:"pageSize"`
}
