// Package auth resolves the user behind a request and owns the session tokens.
package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"finboard/internal/apperr"
)

type User struct {
	ID string `json:"id"`
}

type ctxKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// CurrentUser returns the user bound to ctx, or apperr.ErrAuthRequired.
func CurrentUser(ctx context.Context) (User, error) {
	u, ok := ctx.Value(ctxKey{}).(User)
	if !ok || u.ID == "" {
		return User{}, apperr.ErrAuthRequired
	}
	return u, nil
}

// Authenticator is the session-validity check run before every fetch.
type Authenticator interface {
	CurrentUser(ctx context.Context) (User, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context) (User, error)

func (f AuthenticatorFunc) CurrentUser(ctx context.Context) (User, error) { return f(ctx) }

// Tokens is an in-memory bearer token registry.
type Tokens struct {
	mu     sync.RWMutex
	tokens map[string]User
}

func NewTokens() *Tokens {
	return &Tokens{tokens: make(map[string]User)}
}

// ParseStatic loads "token:user,token:user" pairs, as found in AUTH_TOKENS.
func ParseStatic(list string) *Tokens {
	t := NewTokens()
	for _, pair := range strings.Split(list, ",") {
		token, user, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || token == "" || user == "" {
			continue
		}
		t.tokens[token] = User{ID: user}
	}
	return t
}

// Issue creates a fresh token for a user.
func (t *Tokens) Issue(u User) string {
	token := uuid.NewString()
	t.mu.Lock()
	t.tokens[token] = u
	t.mu.Unlock()
	return token
}

func (t *Tokens) Lookup(token string) (User, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.tokens[token]
	if !ok {
		return User{}, apperr.ErrAuthRequired
	}
	return u, nil
}

func (t *Tokens) Revoke(token string) {
	t.mu.Lock()
	delete(t.tokens, token)
	t.mu.Unlock()
}

// Session returns an Authenticator that stays valid only while token is registered.
func (t *Tokens) Session(token string) Authenticator {
	return AuthenticatorFunc(func(context.Context) (User, error) {
		return t.Lookup(token)
	})
}
