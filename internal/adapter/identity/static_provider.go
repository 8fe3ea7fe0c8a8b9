package identity

import (
	"context"
	"net/url"

	"github.com/pkg/errors"

	"github.com/rl1809/storefront/internal/core/domain"
)

const staticCode = "static"

// StaticProvider signs every visitor in as one configured user. It stands in
// for a real identity provider during local development.
type StaticProvider struct {
	user        domain.User
	callbackURL string
}

func NewStaticProvider(user domain.User, callbackURL string) *StaticProvider {
	return &StaticProvider{user: user, callbackURL: callbackURL}
}

func (p *StaticProvider) AuthCodeURL(state string) string {
	q := url.Values{}
	q.Set("code", staticCode)
	q.Set("state", state)
	return p.callbackURL + "?" + q.Encode()
}

func (p *StaticProvider) Exchange(ctx context.Context, code string) (domain.User, error) {
	if code != staticCode {
		return domain.User{}, errors.Errorf("unknown authorization code %q", code)
	}
	return p.user, nil
}

func (p *StaticProvider) LogoutURL(returnTo string) string {
	return returnTo
}
