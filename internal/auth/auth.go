// Package auth guards the catalogue behind the owner's username and
// password. A successful login is remembered in a signed JWT cookie.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth"
	"golang.org/x/crypto/bcrypt"
)

const (
	// CookieName is the cookie jwtauth.Verifier reads.
	CookieName = "jwt"
	LoginPath  = "/login"
	DefaultTTL = 12 * time.Hour
)

var ErrInvalidCredentials = errors.New("invalid username or password")

type Config struct {
	Username     string
	PasswordHash string
	// Secret signs session tokens. When empty a random key is used and
	// sessions do not survive a restart.
	Secret       string
	TTL          time.Duration
	SecureCookie bool
}

type Authenticator struct {
	username []byte
	hash     []byte
	tokens   *jwtauth.JWTAuth
	ttl      time.Duration
	secure   bool
	now      func() time.Time
}

func New(cfg Config) (*Authenticator, error) {
	if cfg.Username == "" || cfg.PasswordHash == "" {
		return nil, fmt.Errorf("username and password hash are required")
	}
	if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
		return nil, fmt.Errorf("invalid password hash: %w", err)
	}

	key := []byte(cfg.Secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate session key: %w", err)
		}
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Authenticator{
		username: []byte(cfg.Username),
		hash:     []byte(cfg.PasswordHash),
		tokens:   jwtauth.New("HS256", key, nil),
		ttl:      ttl,
		secure:   cfg.SecureCookie,
		now:      time.Now,
	}, nil
}

// Check compares the credentials with the configured owner. The password is
// always hashed so a wrong username takes as long as a wrong password.
func (a *Authenticator) Check(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), a.username) == 1
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Token issues a signed session token for username.
func (a *Authenticator) Token(username string) (string, time.Time, error) {
	expires := a.now().Add(a.ttl)
	claims := map[string]interface{}{"sub": username}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiry(claims, expires)

	_, token, err := a.tokens.Encode(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, expires, nil
}

// StartSession sets the session cookie on w.
func (a *Authenticator) StartSession(w http.ResponseWriter, username string) error {
	token, expires, err := a.Token(username)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// EndSession expires the session cookie.
func (a *Authenticator) EndSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Verifier parses the session cookie into the request context.
func (a *Authenticator) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verifier(a.tokens)
}

// RequireSession redirects to the login page unless Verifier stored a valid
// token.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Username(r) == "" {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Username returns the subject of a valid session token, or "".
func Username(r *http.Request) string {
	token, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || token == nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}

// HashPassword returns the bcrypt hash stored in AUTH_PASSWORD_HASH.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
