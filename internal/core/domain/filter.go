package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultPriceCeiling = 2000

type Filter struct {
	Category string          `json:"category"`
	Search   string          `json:"search"`
	MinPrice decimal.Decimal `json:"minPrice"`
	MaxPrice decimal.Decimal `json:"maxPrice"`
}

// FilterPatch is a partial filter update. Nil fields keep their prior value.
type FilterPatch struct {
	Category *string
	Search   *string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

func DefaultFilter(ceiling decimal.Decimal) Filter {
	return Filter{
		MinPrice: decimal.Zero,
		MaxPrice: ceiling,
	}
}

func (f Filter) Apply(p FilterPatch) Filter {
	if p.Category != nil {
		f.Category = *p.Category
	}
	if p.Search != nil {
		f.Search = *p.Search
	}
	if p.MinPrice != nil {
		f.MinPrice = *p.MinPrice
	}
	if p.MaxPrice != nil {
		f.MaxPrice = *p.MaxPrice
	}
	return f
}

func (p FilterPatch) IsEmpty() bool {
	return p.Category == nil && p.Search == nil && p.MinPrice == nil && p.MaxPrice == nil
}

// ParseMinPrice turns raw user input into a lower bound. Anything that is not
// a number, or is zero, falls back to 0.
func ParseMinPrice(raw string) decimal.Decimal {
	return parseBound(raw, decimal.Zero)
}

// ParseMaxPrice turns raw user input into an upper bound. Anything that is not
// a number, or is zero, falls back to the ceiling.
func ParseMaxPrice(raw string, ceiling decimal.Decimal) decimal.Decimal {
	return parseBound(raw, ceiling)
}

func parseBound(raw string, fallback decimal.Decimal) decimal.Decimal {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || v.IsZero() {
		return fallback
	}
	return v
}
