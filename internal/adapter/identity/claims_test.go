package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimsUser_NameFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		want   string
	}{
		{"given name wins", Claims{GivenName: "Alice", Name: "Alice Smith", Nickname: "al", Email: "a@x.io"}, "Alice"},
		{"email-like name", Claims{Name: "alice@x.io", Nickname: "al", Email: "alice@x.io"}, "alice"},
		{"plain name", Claims{Name: "Alice Smith", Email: "a@x.io"}, "Alice Smith"},
		{"nickname", Claims{Nickname: "al", Email: "a@x.io"}, "al"},
		{"email", Claims{Email: "a@x.io"}, "a@x.io"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.claims.Subject = "sub-1"
			user := tt.claims.User()

			assert.Equal(t, tt.want, user.Name)
			assert.Equal(t, "sub-1", user.ID)
			assert.Equal(t, tt.claims.Email, user.Email)
		})
	}
}
