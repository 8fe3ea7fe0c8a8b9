package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const defaultCardErrorMessage = "An error occurred while validating your card."

var (
	ErrLoginRequired      = errors.New("login required")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutNotFound   = errors.New("checkout not found")
	ErrCheckoutClosed     = errors.New("checkout is closed")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
)

type SubmitRequest struct {
	Auth           domain.AuthState
	CardholderName string
	Card           domain.CardInput
}

type settlement struct {
	req  domain.PaymentRequest
	cart *CartService
}

// CheckoutService tokenizes the card while the shopper waits and settles the
// payment on a worker. Once queued, a settlement always runs to completion.
type CheckoutService struct {
	payments port.PaymentProcessor
	logger   logrus.FieldLogger
	queue    chan settlement

	closeMu sync.RWMutex
	closed  bool

	mu        sync.Mutex
	checkouts map[uuid.UUID]domain.Checkout
	inflight  map[string]uuid.UUID // cart key -> processing checkout
}

func NewCheckoutService(payments port.PaymentProcessor, queueSize int, logger logrus.FieldLogger) *CheckoutService {
	if payments == nil {
		panic("service: nil payment processor")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CheckoutService{
		payments:  payments,
		logger:    logger,
		queue:     make(chan settlement, queueSize),
		checkouts: make(map[uuid.UUID]domain.Checkout),
		inflight:  make(map[string]uuid.UUID),
	}
}

// Submit starts a checkout for cart. Anonymous shoppers get ErrLoginRequired
// and must go through login first. A card the processor rejects comes back as
// *domain.ValidationError and leaves the cart untouched so the shopper can retry.
// While a checkout of the same cart is processing, further submissions get
// ErrCheckoutInProgress.
func (s *CheckoutService) Submit(ctx context.Context, cart *CartService, req SubmitRequest) (domain.Checkout, error) {
	ctx, span := tracer.Start(ctx, "checkout.submit", trace.WithAttributes(
		attribute.String("cart.key", cart.Key()),
	))
	defer span.End()

	if !req.Auth.IsAuthenticated || req.Auth.User == nil {
		return domain.Checkout{}, ErrLoginRequired
	}

	snapshot := cart.Snapshot()
	if snapshot.IsEmpty() {
		return domain.Checkout{}, ErrEmptyCart
	}

	checkoutID := uuid.New()
	if !s.reserve(cart.Key(), checkoutID) {
		return domain.Checkout{}, ErrCheckoutInProgress
	}
	queued := false
	defer func() {
		if !queued {
			s.release(cart.Key())
		}
	}()

	user := *req.Auth.User
	token, err := s.payments.Tokenize(ctx, req.Card, domain.BillingDetails{
		Name:  req.CardholderName,
		Email: user.Email,
	})
	if err != nil {
		span.SetStatus(codes.Error, "tokenize failed")
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			if verr.Message == "" {
				return domain.Checkout{}, &domain.ValidationError{Message: defaultCardErrorMessage}
			}
			return domain.Checkout{}, verr
		}
		return domain.Checkout{}, errors.Wrap(err, "tokenize card")
	}

	now := time.Now()
	checkout := domain.Checkout{
		ID:        checkoutID,
		Status:    domain.CheckoutStatusProcessing,
		Total:     snapshot.Total,
		ItemCount: snapshot.ItemCount,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job := settlement{
		cart: cart,
		req: domain.PaymentRequest{
			CheckoutID: checkout.ID,
			Token:      token,
			Items:      snapshot.Items,
			Total:      snapshot.Total,
			Name:       user.Name,
			Email:      user.Email,
		},
	}

	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return domain.Checkout{}, ErrCheckoutClosed
	}

	s.put(checkout)
	select {
	case s.queue <- job:
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.checkouts, checkout.ID)
		s.mu.Unlock()
		return domain.Checkout{}, ctx.Err()
	}
	queued = true

	span.SetAttributes(attribute.String("checkout.id", checkout.ID.String()))
	s.logger.WithFields(logrus.Fields{
		"checkout_id": checkout.ID,
		"total":       checkout.Total.StringFixed(2),
		"items":       checkout.ItemCount,
	}).Info("checkout queued for settlement")
	return checkout, nil
}

func (s *CheckoutService) Get(id uuid.UUID) (domain.Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkout, ok := s.checkouts[id]
	if !ok {
		return domain.Checkout{}, ErrCheckoutNotFound
	}
	return checkout, nil
}

// Work settles queued checkouts until Close is called and the queue drains.
func (s *CheckoutService) Work(id int) {
	for job := range s.queue {
		s.settle(id, job)
	}
}

func (s *CheckoutService) Close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}

func (s *CheckoutService) settle(worker int, job settlement) {
	defer s.release(job.cart.Key())

	ctx, span := tracer.Start(context.Background(), "checkout.settle", trace.WithAttributes(
		attribute.String("checkout.id", job.req.CheckoutID.String()),
		attribute.Int("worker", worker),
	))
	defer span.End()

	log := s.logger.WithFields(logrus.Fields{
		"worker":      worker,
		"checkout_id": job.req.CheckoutID,
	})

	if err := s.payments.Settle(ctx, job.req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.WithError(err).Error("settlement failed, cart kept")
		s.finish(job.req.CheckoutID, domain.CheckoutStatusFailed, err.Error())
		return
	}

	job.cart.RemovePurchased(ctx, job.req.Items)
	s.finish(job.req.CheckoutID, domain.CheckoutStatusSucceeded, "")
	log.Info("checkout settled, purchased items removed from cart")
}

func (s *CheckoutService) reserve(cartKey string, id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inflight[cartKey]; busy {
		return false
	}
	s.inflight[cartKey] = id
	return true
}

func (s *CheckoutService) release(cartKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, cartKey)
}

func (s *CheckoutService) put(checkout domain.Checkout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkouts[checkout.ID] = checkout
}

func (s *CheckoutService) finish(id uuid.UUID, status domain.CheckoutStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	checkout, ok := s.checkouts[id]
	if !ok {
		return
	}
	checkout.Status = status
	checkout.Error = message
	checkout.UpdatedAt = time.Now()
	s.checkouts[id] = checkout
}
