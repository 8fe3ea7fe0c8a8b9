package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type PaymentProcessor interface {
	// Tokenize validates card details without charging them. Card problems are
	// reported as *domain.ValidationError.
	Tokenize(ctx context.Context, card domain.CardInput, billing domain.BillingDetails) (string, error)

	// Settle charges a tokenized card
	Settle(ctx context.Context, req domain.PaymentRequest) error
}
