// Package auth resolves request credentials to a session. Sessions are
// issued elsewhere; this package only reads them.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cvdreamjob/apiserver/types"
)

// ErrNoSession means the request carries no valid session. Any other error
// from a Resolver is an infrastructure failure.
var ErrNoSession = errors.New("auth: no valid session")

// Resolver turns request headers into a session.
type Resolver interface {
	Resolve(ctx context.Context, r *http.Request) (types.Session, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, r *http.Request) (types.Session, error)

func (f ResolverFunc) Resolve(ctx context.Context, r *http.Request) (types.Session, error) {
	return f(ctx, r)
}

// Chain tries each resolver in order and returns the first session found.
// It stops early on errors other than ErrNoSession.
func Chain(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(ctx context.Context, r *http.Request) (types.Session, error) {
		for _, res := range resolvers {
			if res == nil {
				continue
			}
			session, err := res.Resolve(ctx, r)
			if err == nil {
				return session, nil
			}
			if !errors.Is(err, ErrNoSession) {
				return types.Session{}, err
			}
		}
		return types.Session{}, ErrNoSession
	})
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
