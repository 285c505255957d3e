// Package auth identifies users from the bearer tokens of the hosted
// authentication provider.
//
// Tokens are HS256 JWTs signed with the provider's secret. The subject is the
// user id, which owns the transactions, and the email claim is informative.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/etnz/dca"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for malformed, expired or badly signed tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are the claims of an access token.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks access tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a Verifier of tokens signed with secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Sign returns a token for id valid for ttl.
func (v *Verifier) Sign(id dca.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify returns the identity of a valid token.
func (v *Verifier) Verify(token string) (dca.Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return dca.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return dca.Identity{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return dca.Identity{ID: claims.Subject, Email: claims.Email}, nil
}

// Session is a dca.Session holding the token of the signed in user.
type Session struct {
	verifier *Verifier

	mu    sync.Mutex
	token string
	subs  map[int]func(dca.Identity, bool)
	next  int
}

// NewSession returns a signed out session.
func NewSession(v *Verifier) *Session {
	return &Session{verifier: v, subs: make(map[int]func(dca.Identity, bool))}
}

// SignIn verifies token and makes it the current one.
func (s *Session) SignIn(token string) error {
	id, err := s.verifier.Verify(token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.token = token
	subs := s.subscribers()
	s.mu.Unlock()
	for _, f := range subs {
		f(id, true)
	}
	return nil
}

// SignOut forgets the current token.
func (s *Session) SignOut() {
	s.mu.Lock()
	s.token = ""
	subs := s.subscribers()
	s.mu.Unlock()
	for _, f := range subs {
		f(dca.Identity{}, false)
	}
}

// CurrentUser returns the user of the current token. An absent or expired
// token is dca.ErrSignedOut.
func (s *Session) CurrentUser(ctx context.Context) (dca.Identity, error) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token == "" {
		return dca.Identity{}, dca.ErrSignedOut
	}
	id, err := s.verifier.Verify(token)
	if err != nil {
		return dca.Identity{}, fmt.Errorf("%w: %v", dca.ErrSignedOut, err)
	}
	return id, nil
}

func (s *Session) Subscribe(f func(dca.Identity, bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.next
	s.next++
	s.subs[n] = f
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, n)
	}
}

// subscribers returns the subscribed functions, s.mu must be held.
func (s *Session) subscribers() []func(dca.Identity, bool) {
	subs := make([]func(dca.Identity, bool), 0, len(s.subs))
	for _, f := range s.subs {
		subs = append(subs, f)
	}
	return subs
}

// Local is a dca.Session always signed in as the same user, for a single user
// on their own machine.
type Local dca.Identity

func (l Local) CurrentUser(ctx context.Context) (dca.Identity, error) {
	if l.ID == "" {
		return dca.Identity{}, dca.ErrSignedOut
	}
	return dca.Identity(l), nil
}

func (Local) Subscribe(func(dca.Identity, bool)) func() { return func() {} }

type contextKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id dca.Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity set by Middleware.
func FromContext(ctx context.Context) (dca.Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(dca.Identity)
	return id, ok
}

// Middleware rejects requests without a valid bearer token with 401, and
// stores the identity of valid ones in the request context.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "authorization header required")
				return
			}
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				unauthorized(w, "invalid authorization header format")
				return
			}
			id, err := v.Verify(token)
			if err != nil {
				unauthorized(w, ErrInvalidToken.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), id)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, "{\"error\":%q}\n", msg)
}
