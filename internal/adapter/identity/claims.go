package identity

import (
	"strings"

	"github.com/rl1809/storefront/internal/core/domain"
)

// Claims is the subset of ID token claims the storefront reads.
type Claims struct {
	Subject   string `json:"sub"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	GivenName string `json:"given_name"`
	Nickname  string `json:"nickname"`
}

// User maps provider claims to a storefront user. The display name prefers
// the given name, then the name up to any '@', then the nickname, then the
// email address.
func (c Claims) User() domain.User {
	name := c.GivenName
	if name == "" {
		name, _, _ = strings.Cut(c.Name, "@")
	}
	if name == "" {
		name = c.Nickname
	}
	if name == "" {
		name = c.Email
	}
	return domain.User{
		ID:    c.Subject,
		Email: c.Email,
		Name:  name,
	}
}
