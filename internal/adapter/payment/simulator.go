// Package payment implements the payment boundary. Only a simulated processor
// exists: cards are checked locally and settlement always succeeds after a
// fixed delay.
package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/storefront/internal/core/domain"
)

const tokenPrefix = "pm_"

type Simulator struct {
	delay  time.Duration
	now    func() time.Time
	logger logrus.FieldLogger
}

func NewSimulator(delay time.Duration, logger logrus.FieldLogger) *Simulator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Simulator{
		delay:  delay,
		now:    time.Now,
		logger: logger,
	}
}

// Tokenize checks the card the way a hosted card form would and returns an
// opaque payment method token.
func (s *Simulator) Tokenize(ctx context.Context, card domain.CardInput, billing domain.BillingDetails) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(billing.Name) == "" {
		return "", &domain.ValidationError{Message: "Please enter the cardholder name."}
	}

	number := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, card.Number)
	if !digitsOnly(number) || len(number) < 12 || len(number) > 19 {
		return "", &domain.ValidationError{Message: "Your card number is incomplete."}
	}
	if !luhn(number) {
		return "", &domain.ValidationError{Message: "Your card number is invalid."}
	}

	if card.ExpMonth < 1 || card.ExpMonth > 12 {
		return "", &domain.ValidationError{Message: "Your card's expiration date is invalid."}
	}
	now := s.now()
	if card.ExpYear < now.Year() || (card.ExpYear == now.Year() && card.ExpMonth < int(now.Month())) {
		return "", &domain.ValidationError{Message: "Your card's expiration date is in the past."}
	}

	if l := len(card.CVC); !digitsOnly(card.CVC) || l < 3 || l > 4 {
		return "", &domain.ValidationError{Message: "Your card's security code is incomplete."}
	}

	token := tokenPrefix + uuid.NewString()
	s.logger.WithFields(logrus.Fields{
		"token": token,
		"last4": number[len(number)-4:],
		"email": billing.Email,
	}).Debug("card tokenized")
	return token, nil
}

// Settle waits out the processing delay and reports success.
func (s *Simulator) Settle(ctx context.Context, req domain.PaymentRequest) error {
	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.WithFields(logrus.Fields{
		"checkout_id": req.CheckoutID,
		"amount":      req.Total.StringFixed(2),
	}).Info("simulated payment settled")
	return nil
}

// digitsOnly reports whether s is made of ASCII digits only. Other Unicode
// digits are rejected.
func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func luhn(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
