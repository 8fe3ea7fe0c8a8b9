package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/rl1809/storefront/internal/adapter/catalog"
	"github.com/rl1809/storefront/internal/adapter/identity"
	"github.com/rl1809/storefront/internal/adapter/payment"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/persist"
	"github.com/rl1809/storefront/internal/core/service"
)

var devUser = domain.User{ID: "dev|1", Email: "dev@localhost", Name: "Developer"}

func quietLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newCatalog(t *testing.T) *service.CatalogService {
	t.Helper()
	svc, err := service.NewCatalogService(context.Background(), catalog.Seed{}, 6, decimal.NewFromInt(domain.DefaultPriceCeiling))
	require.NoError(t, err)
	return svc
}

func newTestServer(t *testing.T, cfg HTTPConfig) *httptest.Server {
	t.Helper()
	return newTestServerWithDelay(t, cfg, 0)
}

func newTestServerWithDelay(t *testing.T, cfg HTTPConfig, settleDelay time.Duration) *httptest.Server {
	t.Helper()
	logger := quietLogger()

	carts := service.NewCarts(persist.New[[]domain.CartItem](storage.NewMemoryAdapter(0), logger))
	checkout := service.NewCheckoutService(payment.NewSimulator(settleDelay, logger), 10, logger)
	done := make(chan struct{})
	go func() {
		checkout.Work(1)
		close(done)
	}()

	sessions, err := identity.NewSessions("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	h := NewHTTPHandler(newCatalog(t), carts, checkout, identity.NewStaticProvider(devUser, "/auth/callback"), sessions, cfg, logger)
	srv := httptest.NewServer(h.Routes())

	t.Cleanup(func() {
		srv.Close()
		checkout.Close()
		<-done
	})
	return srv
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
	ip   string // sent as X-Real-IP when set
}

func newClient(t *testing.T, srv *httptest.Server) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: srv.URL, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.ip != "" {
		req.Header.Set("X-Real-IP", c.ip)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *client) login() {
	c.t.Helper()
	c.do(http.MethodGet, "/auth/login", nil, nil)

	var state domain.AuthState
	require.Equal(c.t, http.StatusOK, c.do(http.MethodGet, "/api/me", nil, &state))
	require.True(c.t, state.IsAuthenticated)
}

func validCheckout() CheckoutRequest {
	return CheckoutRequest{
		CardholderName: "Dev Eloper",
		Card:           domain.CardInput{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2099, CVC: "123"},
	}
}

func TestHealthCheck(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))

	var body map[string]string
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/health", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestListProducts_DefaultState(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))

	var page ProductsResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/products", nil, &page))

	assert.Len(t, page.Products, 6)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 12, page.TotalProducts)
	assert.Equal(t, 1, page.CurrentPage)
	assert.True(t, page.Filters.MaxPrice.Equal(decimal.NewFromInt(2000)))
}

func TestListProducts_Filters(t *testing.T) {
	srv := newTestServer(t, HTTPConfig{})

	tests := []struct {
		query string
		want  int
	}{
		{"?category=Home", 3},
		{"?search=camera", 1},
		{"?minPrice=100&maxPrice=300", 3},
		{"?maxPrice=abc", 12},
		{"?category=Garden", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c := newClient(t, srv)

			var page ProductsResponse
			require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/products"+tt.query, nil, &page))
			assert.Equal(t, tt.want, page.TotalProducts)
		})
	}
}

func TestListProducts_FilterChangeResetsPage(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))

	var page ProductsResponse
	c.do(http.MethodGet, "/api/products?page=2", nil, &page)
	require.Equal(t, 2, page.CurrentPage)

	c.do(http.MethodGet, "/api/products?category=Electronics", nil, &page)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 5, page.TotalProducts)

	// The filter sticks to the session.
	c.do(http.MethodGet, "/api/products", nil, &page)
	assert.Equal(t, "Electronics", page.Filters.Category)

	c.do(http.MethodDelete, "/api/products/filters", nil, &page)
	assert.Equal(t, "", page.Filters.Category)
	assert.Equal(t, 12, page.TotalProducts)
}

func TestListProducts_BadPage(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/api/products?page=two", nil, nil))
}

func TestListProducts_BadPageLeavesFiltersAlone(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/api/products?category=Home&page=abc", nil, nil))

	var page ProductsResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/products", nil, &page))
	assert.Equal(t, "", page.Filters.Category)
	assert.Equal(t, 12, page.TotalProducts)
}

func TestListProducts_HugePage(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))

	var page ProductsResponse
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/products?page=2305843009213694464", nil, &page))
	assert.Empty(t, page.Products)
	assert.Equal(t, 12, page.TotalProducts)

	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/products", nil, &page))
	assert.Empty(t, page.Products)

	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/products?page=1", nil, &page))
	assert.Len(t, page.Products, 6)
}

func TestGetProductAndCategories(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))

	var product domain.Product
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/products/9", nil, &product))
	assert.Equal(t, "Camera", product.Name)

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/api/products/404", nil, nil))

	var categories map[string][]string
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/api/categories", nil, &categories))
	assert.Equal(t, []string{"Electronics", "Home", "Books", "Fashion"}, categories["categories"])
}

func TestCart_LineTotalFollowsQuantity(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))

	var cart domain.Cart
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "1"}, &cart))
	require.Len(t, cart.Items, 1)

	c.do(http.MethodPut, "/api/cart/items/1", map[string]int{"quantity": 2}, &cart)
	assert.Equal(t, "399.98", cart.Items[0].LineTotal().StringFixed(2))
	assert.Equal(t, 2, cart.ItemCount)

	c.do(http.MethodPut, "/api/cart/items/1", map[string]int{"quantity": 1}, &cart)
	assert.Equal(t, "199.99", cart.Items[0].LineTotal().StringFixed(2))
}

func TestCart_QuantityZeroEmptiesCart(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))

	var cart domain.Cart
	c.do(http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "4"}, &cart)
	c.do(http.MethodPut, "/api/cart/items/4", map[string]int{"quantity": 0}, &cart)

	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, cart.ItemCount)
}

func TestCart_RemoveClearAndValidation(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))

	var cart domain.Cart
	c.do(http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "1"}, &cart)
	c.do(http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "2"}, &cart)
	c.do(http.MethodDelete, "/api/cart/items/1", nil, &cart)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "2", cart.Items[0].Product.ID)

	c.do(http.MethodDelete, "/api/cart", nil, &cart)
	assert.Empty(t, cart.Items)

	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "404"}, nil))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/api/cart/items", AddItemRequest{}, nil))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPut, "/api/cart/items/1", map[string]string{}, nil))
}

func TestCart_IsolatedPerSession(t *testing.T) {
	srv := newTestServer(t, HTTPConfig{})
	alice, bob := newClient(t, srv), newClient(t, srv)

	alice.do(http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "1"}, nil)

	var cart domain.Cart
	bob.do(http.MethodGet, "/api/cart", nil, &cart)
	assert.Empty(t, cart.Items)

	alice.do(http.MethodGet, "/api/cart", nil, &cart)
	assert.Len(t, cart.Items, 1)
}

func TestCheckout_AnonymousGetsLoginURL(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))
	c.do(http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "1"}, nil)

	var resp ErrorResponse
	require.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/checkout", validCheckout(), &resp))
	assert.Equal(t, "/auth/login", resp.LoginURL)
}

func TestCheckout_InvalidCardKeepsCart(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))
	c.login()
	c.do(http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "1"}, nil)

	req := validCheckout()
	req.Card.Number = "4242424242424241"

	var resp ErrorResponse
	require.Equal(t, http.StatusUnprocessableEntity, c.do(http.MethodPost, "/api/checkout", req, &resp))
	assert.NotEmpty(t, resp.Error)

	var cart domain.Cart
	c.do(http.MethodGet, "/api/cart", nil, &cart)
	assert.Len(t, cart.Items, 1)
}

func TestCheckout_EmptyCart(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))
	c.login()

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/api/checkout", validCheckout(), nil))
}

func TestCheckout_SettlesAndClearsCart(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))
	c.login()
	c.do(http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "1"}, nil)
	c.do(http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "3"}, nil)

	var checkout domain.Checkout
	require.Equal(t, http.StatusAccepted, c.do(http.MethodPost, "/api/checkout", validCheckout(), &checkout))
	assert.Equal(t, "224.98", checkout.Total.StringFixed(2))

	assert.Eventually(t, func() bool {
		var got domain.Checkout
		c.do(http.MethodGet, "/api/checkout/"+checkout.ID.String(), nil, &got)
		return got.Status == domain.CheckoutStatusSucceeded
	}, 2*time.Second, 10*time.Millisecond)

	var cart domain.Cart
	c.do(http.MethodGet, "/api/cart", nil, &cart)
	assert.Empty(t, cart.Items)

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/api/checkout/not-a-uuid", nil, nil))
}

func TestCheckout_SecondSubmissionWhileProcessingConflicts(t *testing.T) {
	c := newClient(t, newTestServerWithDelay(t, HTTPConfig{}, 300*time.Millisecond))
	c.login()
	c.do(http.MethodPost, "/api/cart/items", AddItemRequest{ProductID: "1"}, nil)

	var first domain.Checkout
	require.Equal(t, http.StatusAccepted, c.do(http.MethodPost, "/api/checkout", validCheckout(), &first))
	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/api/checkout", validCheckout(), nil))

	assert.Eventually(t, func() bool {
		var got domain.Checkout
		c.do(http.MethodGet, "/api/checkout/"+first.ID.String(), nil, &got)
		return got.Status == domain.CheckoutStatusSucceeded
	}, 2*time.Second, 20*time.Millisecond)
}

func TestCheckout_RateLimited(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{CheckoutRate: rate.Every(time.Hour), CheckoutBurst: 1}))

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/api/checkout", validCheckout(), nil))
	assert.Equal(t, http.StatusTooManyRequests, c.do(http.MethodPost, "/api/checkout", validCheckout(), nil))
}

func TestCheckout_RateLimitIsPerClient(t *testing.T) {
	srv := newTestServer(t, HTTPConfig{CheckoutRate: rate.Every(time.Hour), CheckoutBurst: 1})
	greedy, other := newClient(t, srv), newClient(t, srv)
	greedy.ip, other.ip = "203.0.113.7", "198.51.100.9"

	assert.Equal(t, http.StatusUnauthorized, greedy.do(http.MethodPost, "/api/checkout", validCheckout(), nil))
	assert.Equal(t, http.StatusTooManyRequests, greedy.do(http.MethodPost, "/api/checkout", validCheckout(), nil))

	// A fresh session cookie does not reset the budget.
	fresh := newClient(t, srv)
	fresh.ip = greedy.ip
	assert.Equal(t, http.StatusTooManyRequests, fresh.do(http.MethodPost, "/api/checkout", validCheckout(), nil))

	assert.Equal(t, http.StatusUnauthorized, other.do(http.MethodPost, "/api/checkout", validCheckout(), nil))
}

func TestSweepLimiters(t *testing.T) {
	h := NewHTTPHandler(nil, nil, nil, nil, nil, HTTPConfig{CheckoutRate: rate.Every(time.Hour), CheckoutBurst: 1}, quietLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	require.True(t, h.allowCheckout(req))
	require.False(t, h.allowCheckout(req))

	assert.Equal(t, 0, h.SweepLimiters(time.Now().Add(-time.Hour)))
	assert.Equal(t, 1, h.SweepLimiters(time.Now().Add(time.Second)))

	assert.True(t, h.allowCheckout(req))
}

func TestAuth_LoginAndLogout(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))

	var state domain.AuthState
	c.do(http.MethodGet, "/api/me", nil, &state)
	assert.False(t, state.IsAuthenticated)
	assert.Nil(t, state.User)

	c.login()
	c.do(http.MethodGet, "/api/me", nil, &state)
	require.NotNil(t, state.User)
	assert.Equal(t, devUser, *state.User)

	c.do(http.MethodPost, "/auth/logout", nil, nil)
	state = domain.AuthState{}
	c.do(http.MethodGet, "/api/me", nil, &state)
	assert.False(t, state.IsAuthenticated)
}

func TestAuth_CallbackRejectsForgedState(t *testing.T) {
	c := newClient(t, newTestServer(t, HTTPConfig{}))

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/auth/callback?code=static&state=forged", nil, nil))
}
