package handler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
)

const (
	sessionCookie = "sf_session"
	authCookie    = "sf_auth"
	stateCookie   = "sf_oauth_state"

	loginPath = "/auth/login"
)

type ctxKey int

const sessionKey ctxKey = iota

// SessionCodec turns a signed-in user into a cookie value and back.
type SessionCodec interface {
	Issue(user domain.User) (string, error)
	State(token string) domain.AuthState
	TTL() time.Duration
}

type HTTPConfig struct {
	BaseURL       string
	SecureCookies bool
	CheckoutRate  rate.Limit
	CheckoutBurst int
}

type HTTPHandler struct {
	catalog  *service.CatalogService
	carts    *service.Carts
	checkout *service.CheckoutService
	identity port.IdentityProvider
	sessions SessionCodec
	cfg      HTTPConfig
	logger   logrus.FieldLogger

	limitersMu sync.Mutex
	limiters   map[string]*clientLimiter // by client IP
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type AddItemRequest struct {
	ProductID string `json:"productId"`
}

type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

type CheckoutRequest struct {
	CardholderName string           `json:"cardholderName"`
	Card           domain.CardInput `json:"card"`
}

type ProductsResponse struct {
	domain.ProductPage
	Filters domain.Filter `json:"filters"`
}

type ErrorResponse struct {
	Error    string `json:"error"`
	LoginURL string `json:"loginUrl,omitempty"`
}

func NewHTTPHandler(
	catalog *service.CatalogService,
	carts *service.Carts,
	checkout *service.CheckoutService,
	identity port.IdentityProvider,
	sessions SessionCodec,
	cfg HTTPConfig,
	logger logrus.FieldLogger,
) *HTTPHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.CheckoutRate == 0 {
		cfg.CheckoutRate = rate.Inf
	}
	return &HTTPHandler{
		catalog:  catalog,
		carts:    carts,
		checkout: checkout,
		identity: identity,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[string]*clientLimiter),
	}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(h.withSession)

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Delete("/products/filters", h.ClearFilters)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/categories", h.ListCategories)

		r.Get("/cart", h.GetCart)
		r.Delete("/cart", h.ClearCart)
		r.Post("/cart/items", h.AddItem)
		r.Put("/cart/items/{id}", h.UpdateItem)
		r.Delete("/cart/items/{id}", h.RemoveItem)

		r.Post("/checkout", h.Checkout)
		r.Get("/checkout/{id}", h.GetCheckout)

		r.Get("/me", h.Me)
	})

	r.Get(loginPath, h.Login)
	r.Get("/auth/callback", h.Callback)
	r.Post("/auth/logout", h.Logout)

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListProducts treats category, search, minPrice and maxPrice as a partial
// filter update, which sends the shopper back to page 1. A page parameter is
// applied after that.
func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	browser := h.catalog.Browser(sessionID(r))
	q := r.URL.Query()

	var patch domain.FilterPatch
	if q.Has("category") {
		v := q.Get("category")
		patch.Category = &v
	}
	if q.Has("search") {
		v := q.Get("search")
		patch.Search = &v
	}
	if q.Has("minPrice") {
		v := domain.ParseMinPrice(q.Get("minPrice"))
		patch.MinPrice = &v
	}
	if q.Has("maxPrice") {
		v := domain.ParseMaxPrice(q.Get("maxPrice"), h.catalog.PriceCeiling())
		patch.MaxPrice = &v
	}

	page := 0
	if q.Has("page") {
		var err error
		if page, err = strconv.Atoi(q.Get("page")); err != nil {
			writeError(w, http.StatusBadRequest, "page must be an integer")
			return
		}
	}

	view := browser.View()
	if !patch.IsEmpty() {
		view = browser.UpdateFilters(patch)
	}
	if q.Has("page") {
		view = browser.SetPage(page)
	}

	writeJSON(w, http.StatusOK, ProductsResponse{ProductPage: view, Filters: browser.Filter()})
}

func (h *HTTPHandler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	browser := h.catalog.Browser(sessionID(r))
	view := browser.ClearFilters()
	writeJSON(w, http.StatusOK, ProductsResponse{ProductPage: view, Filters: browser.Filter()})
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.Product(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"categories": h.catalog.Categories()})
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cart(r).Snapshot())
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cart(r).ClearCart(r.Context()))
}

func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	product, err := h.catalog.Product(req.ProductID)
	if err != nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, h.cart(r).AddToCart(r.Context(), product))
}

func (h *HTTPHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "quantity is required")
		return
	}
	writeJSON(w, http.StatusOK, h.cart(r).UpdateQuantity(r.Context(), chi.URLParam(r, "id"), *req.Quantity))
}

func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cart(r).RemoveFromCart(r.Context(), chi.URLParam(r, "id")))
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if !h.allowCheckout(r) {
		writeError(w, http.StatusTooManyRequests, "too many checkout attempts, try again shortly")
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	checkout, err := h.checkout.Submit(r.Context(), h.cart(r), service.SubmitRequest{
		Auth:           h.authState(r),
		CardholderName: req.CardholderName,
		Card:           req.Card,
	})
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.Is(err, service.ErrLoginRequired):
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "login required", LoginURL: loginPath})
		case errors.Is(err, service.ErrEmptyCart):
			writeError(w, http.StatusBadRequest, "cart is empty")
		case errors.As(err, &verr):
			writeError(w, http.StatusUnprocessableEntity, verr.Message)
		case errors.Is(err, service.ErrCheckoutInProgress):
			writeError(w, http.StatusConflict, "a checkout for this cart is already processing")
		case errors.Is(err, service.ErrCheckoutClosed):
			writeError(w, http.StatusServiceUnavailable, "checkout is unavailable")
		default:
			h.logger.WithError(err).Error("checkout failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, checkout)
}

func (h *HTTPHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid checkout id")
		return
	}

	checkout, err := h.checkout.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "checkout not found")
		return
	}
	writeJSON(w, http.StatusOK, checkout)
}

func (h *HTTPHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.authState(r))
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, h.cookie(stateCookie, state, 10*time.Minute))
	http.Redirect(w, r, h.identity.AuthCodeURL(state), http.StatusFound)
}

func (h *HTTPHandler) Callback(w http.ResponseWriter, r *http.Request) {
	stored, err := r.Cookie(stateCookie)
	if err != nil || stored.Value == "" || stored.Value != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "invalid login state")
		return
	}
	http.SetCookie(w, h.cookie(stateCookie, "", -1))

	user, err := h.identity.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.logger.WithError(err).Warn("login exchange failed")
		writeError(w, http.StatusUnauthorized, "login failed")
		return
	}

	token, err := h.sessions.Issue(user)
	if err != nil {
		h.logger.WithError(err).Error("issue session")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.SetCookie(w, h.cookie(authCookie, token, h.sessions.TTL()))

	h.logger.WithField("user_id", user.ID).Info("user signed in")
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookie(authCookie, "", -1))
	http.Redirect(w, r, h.identity.LogoutURL(h.cfg.BaseURL+"/"), http.StatusSeeOther)
}

// allowCheckout spends one token from the caller's checkout budget. Budgets
// are per client IP; the session cookie is not used because a client can drop
// it to get a fresh one.
func (h *HTTPHandler) allowCheckout(r *http.Request) bool {
	ip := clientIP(r)

	h.limitersMu.Lock()
	defer h.limitersMu.Unlock()

	l, ok := h.limiters[ip]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(h.cfg.CheckoutRate, h.cfg.CheckoutBurst)}
		h.limiters[ip] = l
	}
	l.lastSeen = time.Now()
	return l.limiter.Allow()
}

// SweepLimiters drops the checkout budgets of clients not seen since cutoff.
func (h *HTTPHandler) SweepLimiters(cutoff time.Time) int {
	h.limitersMu.Lock()
	defer h.limitersMu.Unlock()

	evicted := 0
	for ip, l := range h.limiters {
		if !l.lastSeen.After(cutoff) {
			delete(h.limiters, ip)
			evicted++
		}
	}
	return evicted
}

func (h *HTTPHandler) cart(r *http.Request) *service.CartService {
	return h.carts.Get(r.Context(), sessionID(r))
}

func (h *HTTPHandler) authState(r *http.Request) domain.AuthState {
	c, err := r.Cookie(authCookie)
	if err != nil {
		return domain.Anonymous()
	}
	return h.sessions.State(c.Value)
}

func (h *HTTPHandler) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(maxAge.Seconds())
	}
	return c
}

// withSession makes sure every visitor carries a session id. Carts and browse
// state are keyed by it.
func (h *HTTPHandler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(sessionCookie); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, h.cookie(sessionCookie, id, 365*24*time.Hour))
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, id)))
	})
}

func (h *HTTPHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		h.logger.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
		}).Debug("request")
	})
}

// clientIP is the host part of RemoteAddr, which middleware.RealIP has already
// replaced with the proxy-reported address when there is one.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func sessionID(r *http.Request) string {
	id, _ := r.Context().Value(sessionKey).(string)
	return id
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
