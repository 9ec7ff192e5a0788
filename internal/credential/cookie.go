// Package credential manages the session cookie. It holds no business rules:
// it writes, reads and expires one opaque token.
package credential

import (
	"net/http"
	"time"
)

// Store reads and writes the session token cookie.
type Store struct {
	name   string
	secure bool
}

// Option configures a Store.
type Option func(*Store)

// WithInsecure drops the Secure attribute. Intended for plain-HTTP test servers only.
func WithInsecure() Option {
	return func(s *Store) {
		s.secure = false
	}
}

// New creates a Store for the named cookie.
func New(name string, opts ...Option) *Store {
	s := &Store{name: name, secure: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the cookie name.
func (s *Store) Name() string {
	return s.name
}

// Set persists token as an httpOnly, same-site-strict cookie scoped to the
// whole site. No expiry is set; the browser keeps it for the session.
func (s *Store) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Read returns the token, or "" when the cookie is absent or empty.
func (s *Store) Read(r *http.Request) string {
	c, err := r.Cookie(s.name)
	if err != nil {
		return ""
	}
	return c.Value
}

// Clear overwrites the cookie with an empty, already-expired value.
func (s *Store) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
