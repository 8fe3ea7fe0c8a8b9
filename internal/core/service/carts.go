package service

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/persist"
)

type cartEntry struct {
	cart     *CartService
	lastUsed time.Time
}

// Carts hands out one cart aggregate per scope. The empty scope maps to the
// plain "cart" key; any other scope gets "cart:<scope>".
type Carts struct {
	store *persist.Store[[]domain.CartItem]

	mu    sync.Mutex
	carts map[string]*cartEntry
}

func NewCarts(store *persist.Store[[]domain.CartItem]) *Carts {
	if store == nil {
		panic("service: nil cart store")
	}
	return &Carts{
		store: store,
		carts: make(map[string]*cartEntry),
	}
}

func CartKey(scope string) string {
	if scope == "" {
		return DefaultCartKey
	}
	return DefaultCartKey + ":" + scope
}

// Get returns the cart for scope, loading it from the store on first use.
func (r *Carts) Get(ctx context.Context, scope string) *CartService {
	key := CartKey(scope)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.carts[key]
	if !ok {
		entry = &cartEntry{cart: NewCartService(ctx, r.store, key)}
		r.carts[key] = entry
	}
	entry.lastUsed = time.Now()
	return entry.cart
}

// Sweep forgets carts not used since cutoff. An empty cart is also deleted
// from the store; one holding items stays there and is reloaded on the
// shopper's next visit.
func (r *Carts) Sweep(ctx context.Context, cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for key, entry := range r.carts {
		if entry.lastUsed.After(cutoff) {
			continue
		}
		if entry.cart.ItemCount() == 0 {
			r.store.Delete(ctx, key)
		}
		delete(r.carts, key)
		evicted++
	}
	return evicted
}

func (r *Carts) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}
