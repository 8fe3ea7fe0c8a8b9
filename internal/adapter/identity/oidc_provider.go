package identity

import (
	"context"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/rl1809/storefront/internal/core/domain"
)

type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OIDCProvider signs shoppers in with an OpenID Connect provider using the
// authorization code flow.
type OIDCProvider struct {
	oauth     *oauth2.Config
	verifier  *oidc.IDTokenVerifier
	clientID  string
	logoutURL string
}

func NewOIDCProvider(ctx context.Context, cfg OIDCConfig) (*OIDCProvider, error) {
	if cfg.IssuerURL == "" || cfg.ClientID == "" {
		return nil, errors.New("oidc issuer and client id are required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, errors.Wrapf(err, "discover oidc provider %s", cfg.IssuerURL)
	}

	var meta struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&meta); err != nil {
		return nil, errors.Wrap(err, "read provider metadata")
	}

	return &OIDCProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier:  provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		clientID:  cfg.ClientID,
		logoutURL: meta.EndSessionEndpoint,
	}, nil
}

func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a verified ID token and maps its
// claims to a user.
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (domain.User, error) {
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return domain.User{}, errors.Wrap(err, "exchange authorization code")
	}

	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return domain.User{}, errors.New("token response has no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, raw)
	if err != nil {
		return domain.User{}, errors.Wrap(err, "verify id token")
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return domain.User{}, errors.Wrap(err, "decode id token claims")
	}
	return claims.User(), nil
}

// LogoutURL points at the provider's end-session endpoint when it has one,
// otherwise straight back to returnTo.
func (p *OIDCProvider) LogoutURL(returnTo string) string {
	if p.logoutURL == "" {
		return returnTo
	}
	u, err := url.Parse(p.logoutURL)
	if err != nil {
		return returnTo
	}
	q := u.Query()
	q.Set("client_id", p.clientID)
	q.Set("post_logout_redirect_uri", returnTo)
	u.RawQuery = q.Encode()
	return u.String()
}
