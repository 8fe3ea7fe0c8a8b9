package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CheckoutStatus string

const (
	CheckoutStatusProcessing CheckoutStatus = "processing"
	CheckoutStatusSucceeded  CheckoutStatus = "succeeded"
	CheckoutStatusFailed     CheckoutStatus = "failed"
)

type CardInput struct {
	Number   string `json:"number"`
	ExpMonth int    `json:"expMonth"`
	ExpYear  int    `json:"expYear"`
	CVC      string `json:"cvc"`
}

type BillingDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PaymentRequest is what the payment boundary receives once a card has been
// tokenized.
type PaymentRequest struct {
	CheckoutID uuid.UUID
	Token      string
	Items      []CartItem
	Total      decimal.Decimal
	Name       string
	Email      string
}

type Checkout struct {
	ID        uuid.UUID       `json:"id"`
	Status    CheckoutStatus  `json:"status"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ValidationError carries a message that is safe to show to the shopper.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
