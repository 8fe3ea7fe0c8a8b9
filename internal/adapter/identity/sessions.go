package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/rl1809/storefront/internal/core/domain"
)

const issuer = "storefront"

var ErrInvalidSession = errors.New("invalid session")

type sessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies the signed token kept in the auth cookie.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	if len(secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	return &Sessions{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

func (s *Sessions) Issue(user domain.User) (string, error) {
	now := s.now()
	claims := sessionClaims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign session")
	}
	return signed, nil
}

func (s *Sessions) Parse(token string) (domain.User, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return domain.User{}, errors.Wrap(ErrInvalidSession, err.Error())
	}
	return domain.User{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// State derives the auth state from a session token. An empty, expired or
// tampered token means an anonymous visitor.
func (s *Sessions) State(token string) domain.AuthState {
	if token == "" {
		return domain.Anonymous()
	}
	user, err := s.Parse(token)
	if err != nil {
		return domain.Anonymous()
	}
	return domain.SignedIn(user)
}
