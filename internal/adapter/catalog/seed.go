// Package catalog holds the storefront's built-in product list.
package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

// Seed serves the built-in product list.
type Seed struct{}

func (Seed) ListProducts(context.Context) ([]domain.Product, error) {
	return SeedProducts(), nil
}

// SeedProducts returns a fresh copy of the built-in catalog in display order.
func SeedProducts() []domain.Product {
	return []domain.Product{
		{
			ID:          "1",
			Name:        "Wireless Headphones",
			Price:       decimal.RequireFromString("199.99"),
			Image:       "https://images.pexels.com/photos/3394650/pexels-photo-3394650.jpeg?auto=compress&cs=tinysrgb&w=500",
			Category:    "Electronics",
			Description: "High-quality wireless headphones with noise cancellation",
			Stock:       15,
		},
		{
			ID:          "2",
			Name:        "Smartphone",
			Price:       decimal.RequireFromString("699.99"),
			Image:       "https://images.pexels.com/photos/699122/pexels-photo-699122.jpeg?auto=compress&cs=tinysrgb&w=500",
			Category:    "Electronics",
			Description: "Latest smartphone with advanced features",
			Stock:       8,
		},
		{
			ID:          "3",
			Name:        "Coffee Mug",
			Price:       decimal.RequireFromString("24.99"),
			Image:       "https://images.pexels.com/photos/302899/pexels-photo-302899.jpeg?auto=compress&cs=tinysrgb&w=500",
			Category:    "Home",
			Description: "Beautiful ceramic coffee mug for your morning brew",
			Stock:       25,
		},
		{
			ID:          "4",
			Name:        "Laptop",
			Price:       decimal.RequireFromString("1299.99"),
			Image:       "https://images.pexels.com/photos/205421/pexels-photo-205421.jpeg?auto=compress&cs=tinysrgb&w=500",
			Category:    "Electronics",
			Description: "Powerful laptop for work and entertainment",
			Stock:       5,
		},
		{
			ID:          "5",
			Name:        "Book Collection",
			Price:       decimal.RequireFromString("49.99"),
			Image:       "https://images.pexels.com/photos/1370295/pexels-photo-1370295.jpeg?auto=compress&cs=tinysrgb&w=500",
			Category:    "Books",
			Description: "Collection of bestselling novels",
			Stock:       12,
		},
		{
			ID:          "6",
			Name:        "Watch",
			Price:       decimal.RequireFromString("299.99"),
			Image:       "https://images.pexels.com/photos/190819/pexels-photo-190819.jpeg?auto=compress&cs=tinysrgb&w=500",
			Category:    "Fashion",
			Description: "Elegant watch with leather strap",
			Stock:       7,
		},
		{
			ID:          "7",
			Name:        "Sunglasses",
			Price:       decimal.RequireFromString("159.99"),
			Image:       "https://images.pexels.com/photos/46710/pexels-photo-46710.jpeg?auto=compress&cs=tinysrgb&w=500",
			Category:    "Fashion",
			Description: "Stylish sunglasses with UV protection",
			Stock:       20,
		},
		{
			ID:          "8",
			Name:        "Plant Pot",
			Price:       decimal.RequireFromString("34.99"),
			Image:       "https://images.pexels.com/photos/1084199/pexels-photo-1084199.jpeg?auto=compress&cs=tinysrgb&w=500",
			Category:    "Home",
			Description: "Beautiful ceramic plant pot for your home",
			Stock:       18,
		},
		{
			ID:          "9",
			Name:        "Camera",
			Price:       decimal.RequireFromString("899.99"),
			Image:       "https://images.pexels.com/photos/90946/pexels-photo-90946.jpeg?auto=compress&cs=tinysrgb&w=500",
			Category:    "Electronics",
			Description: "Professional camera for photography enthusiasts",
			Stock:       3,
		},
		{
			ID:          "10",
			Name:        "Backpack",
			Price:       decimal.RequireFromString("79.99"),
			Image:       "https://images.pexels.com/photos/2905238/pexels-photo-2905238.jpeg?auto=compress&cs=tinysrgb&w=500",
			Category:    "Fashion",
			Description: "Durable backpack for travel and daily use",
			Stock:       14,
		},
		{
			ID:          "11",
			Name:        "Gaming Mouse",
			Price:       decimal.RequireFromString("89.99"),
			Image:       "https://images.pexels.com/photos/2148216/pexels-photo-2148216.jpeg?auto=compress&cs=tinysrgb&w=500",
			Category:    "Electronics",
			Description: "High-precision gaming mouse with RGB lighting",
			Stock:       22,
		},
		{
			ID:          "12",
			Name:        "Candle Set",
			Price:       decimal.RequireFromString("39.99"),
			Image:       "https://images.pexels.com/photos/1123262/pexels-photo-1123262.jpeg?auto=compress&cs=tinysrgb&w=500",
			Category:    "Home",
			Description: "Aromatic candle set for relaxation",
			Stock:       30,
		},
	}
}
