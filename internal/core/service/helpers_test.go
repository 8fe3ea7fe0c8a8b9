package service

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/rl1809/storefront/internal/adapter/catalog"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/persist"
	"github.com/rl1809/storefront/internal/port"
)

// Mock KeyValueStore
type mockKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet bool
	sets    int
}

func newMockKV() *mockKV {
	return &mockKV{data: make(map[string][]byte)}
}

func (m *mockKV) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[key]
	if !ok {
		return nil, port.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKV) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sets++
	if m.failSet {
		return errors.New("backend unavailable")
	}
	m.data[key] = value
	return nil
}

func (m *mockKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

func (m *mockKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.data[key]
	return ok
}

// Mock CatalogRepository
type mockCatalog struct {
	products []domain.Product
	err      error
}

func (m *mockCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return m.products, m.err
}

func quietLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newCartStore(kv port.KeyValueStore) *persist.Store[[]domain.CartItem] {
	return persist.New[[]domain.CartItem](kv, quietLogger())
}

func seedProduct(id string) domain.Product {
	for _, p := range catalog.SeedProducts() {
		if p.ID == id {
			return p
		}
	}
	panic("unknown seed product " + id)
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
