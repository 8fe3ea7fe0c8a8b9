package domain

import "github.com/shopspring/decimal"

// CartItem pairs a product with a positive quantity. The product is embedded
// by value when the cart is persisted.
type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

func (i CartItem) LineTotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is a point-in-time view of a cart aggregate.
type Cart struct {
	Items     []CartItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

func NewCart(items []CartItem) Cart {
	cart := Cart{
		Items: make([]CartItem, len(items)),
		Total: decimal.Zero,
	}
	copy(cart.Items, items)
	for _, item := range items {
		cart.Total = cart.Total.Add(item.LineTotal())
		cart.ItemCount += item.Quantity
	}
	return cart
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
