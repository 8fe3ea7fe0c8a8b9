package service

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/persist"
)

const DefaultCartKey = "cart"

// CartService is the cart aggregate: at most one item per product id, every
// quantity positive. Each mutation writes the whole item list back through
// the store and hands a fresh snapshot to subscribers.
//
// Stock is not checked here; it is informational only.
type CartService struct {
	key   string
	store *persist.Store[[]domain.CartItem]

	mu        sync.Mutex
	items     []domain.CartItem
	snapshot  domain.Cart
	observers map[int]func(domain.Cart)
	nextID    int
}

// NewCartService loads the cart stored under key. A missing or unreadable
// entry yields an empty cart.
func NewCartService(ctx context.Context, store *persist.Store[[]domain.CartItem], key string) *CartService {
	if store == nil {
		panic("service: nil cart store")
	}
	items := sanitize(store.Read(ctx, key, nil))
	return &CartService{
		key:       key,
		store:     store,
		items:     items,
		snapshot:  domain.NewCart(items),
		observers: make(map[int]func(domain.Cart)),
	}
}

func (c *CartService) Key() string {
	return c.key
}

func (c *CartService) AddToCart(ctx context.Context, product domain.Product) domain.Cart {
	return c.mutate(ctx, "cart.add", product.ID, func(items []domain.CartItem) []domain.CartItem {
		if i := indexOf(items, product.ID); i >= 0 {
			items[i].Quantity++
			return items
		}
		return append(items, domain.CartItem{Product: product, Quantity: 1})
	})
}

// RemoveFromCart drops the entry for productID. Unknown ids are ignored.
func (c *CartService) RemoveFromCart(ctx context.Context, productID string) domain.Cart {
	return c.mutate(ctx, "cart.remove", productID, func(items []domain.CartItem) []domain.CartItem {
		return remove(items, productID)
	})
}

// UpdateQuantity sets an absolute quantity. Zero or less removes the entry;
// unknown ids are ignored.
func (c *CartService) UpdateQuantity(ctx context.Context, productID string, quantity int) domain.Cart {
	return c.mutate(ctx, "cart.update_quantity", productID, func(items []domain.CartItem) []domain.CartItem {
		if quantity <= 0 {
			return remove(items, productID)
		}
		if i := indexOf(items, productID); i >= 0 {
			items[i].Quantity = quantity
		}
		return items
	})
}

func (c *CartService) ClearCart(ctx context.Context) domain.Cart {
	return c.mutate(ctx, "cart.clear", "", func([]domain.CartItem) []domain.CartItem {
		return []domain.CartItem{}
	})
}

// RemovePurchased takes paid-for quantities out of the cart. Anything added
// after the snapshot was taken stays.
func (c *CartService) RemovePurchased(ctx context.Context, purchased []domain.CartItem) domain.Cart {
	return c.mutate(ctx, "cart.remove_purchased", "", func(items []domain.CartItem) []domain.CartItem {
		for _, p := range purchased {
			i := indexOf(items, p.Product.ID)
			if i < 0 {
				continue
			}
			if items[i].Quantity <= p.Quantity {
				items = remove(items, p.Product.ID)
				continue
			}
			items[i].Quantity -= p.Quantity
		}
		return items
	})
}

func (c *CartService) Snapshot() domain.Cart {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.NewCart(c.snapshot.Items)
}

func (c *CartService) Items() []domain.CartItem {
	return c.Snapshot().Items
}

func (c *CartService) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.ItemCount
}

// Subscribe calls fn with the new snapshot after every mutation.
func (c *CartService) Subscribe(fn func(domain.Cart)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.observers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

func (c *CartService) mutate(ctx context.Context, op, productID string, fn func([]domain.CartItem) []domain.CartItem) domain.Cart {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("cart.key", c.key),
		attribute.String("product.id", productID),
	))
	defer span.End()

	c.mu.Lock()
	working := make([]domain.CartItem, len(c.items))
	copy(working, c.items)
	c.items = fn(working)
	c.snapshot = domain.NewCart(c.items)
	c.store.Write(ctx, c.key, c.items)
	snapshot := c.snapshot
	observers := make([]func(domain.Cart), 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.mu.Unlock()

	span.SetAttributes(attribute.Int("cart.item_count", snapshot.ItemCount))
	for _, o := range observers {
		o(domain.NewCart(snapshot.Items))
	}
	return domain.NewCart(snapshot.Items)
}

func indexOf(items []domain.CartItem, productID string) int {
	for i, item := range items {
		if item.Product.ID == productID {
			return i
		}
	}
	return -1
}

func remove(items []domain.CartItem, productID string) []domain.CartItem {
	out := items[:0]
	for _, item := range items {
		if item.Product.ID != productID {
			out = append(out, item)
		}
	}
	return out
}

// sanitize drops entries a well-behaved writer never produces: non-positive
// quantities and repeated product ids (the first occurrence wins).
func sanitize(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		if _, ok := seen[item.Product.ID]; ok {
			continue
		}
		seen[item.Product.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}
