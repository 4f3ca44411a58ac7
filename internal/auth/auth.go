// Package auth defines the authentication boundary consumed by the HTTP
// layer. Real identity management lives outside this service; the static
// API-key authenticator here is the contract a fronting gateway fulfils.
package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized is returned when a request carries no valid credentials.
var ErrUnauthorized = errors.New("unauthorized")

// User identifies an authenticated caller.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Authenticator resolves the user behind an HTTP request.
type Authenticator interface {
	Authenticate(r *http.Request) (User, error)
}

// StaticKeys authenticates requests against a fixed token-to-user map,
// read from either a bearer token or the X-API-Key header.
type StaticKeys struct {
	users map[string]User
}

// NewStaticKeys builds an authenticator from token/user pairs.
func NewStaticKeys(keys map[string]User) *StaticKeys {
	users := make(map[string]User, len(keys))
	for token, u := range keys {
		users[token] = u
	}
	return &StaticKeys{users: users}
}

// Authenticate implements Authenticator.
func (s *StaticKeys) Authenticate(r *http.Request) (User, error) {
	token := bearerToken(r)
	if token == "" {
		token = r.Header.Get("X-API-Key")
	}

	if token == "" {
		return User{}, ErrUnauthorized
	}

	user, ok := s.users[token]
	if !ok {
		return User{}, ErrUnauthorized
	}

	return user, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}

	return strings.TrimSpace(header[len(prefix):])
}
