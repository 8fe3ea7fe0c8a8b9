package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type IdentityProvider interface {
	// AuthCodeURL is the external login page the shopper is redirected to
	AuthCodeURL(state string) string

	// Exchange completes the redirect round-trip and returns the signed-in user
	Exchange(ctx context.Context, code string) (domain.User, error)

	// LogoutURL is where the shopper lands once the local session is cleared
	LogoutURL(returnTo string) string
}
