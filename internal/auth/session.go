package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cvdreamjob/apiserver/internal/store"
	"github.com/cvdreamjob/apiserver/types"
)

// Session cookie names set by the auth provider. The secure variant is used
// when the site is served over HTTPS.
const (
	SessionCookie       = "better-auth.session_token"
	SecureSessionCookie = "__Secure-" + SessionCookie
)

// SessionLookup is satisfied by *store.SessionRepository.
type SessionLookup interface {
	GetByToken(ctx context.Context, token string) (types.Session, error)
}

// StoreResolver resolves provider sessions from the session cookie or an
// opaque bearer token and checks them against the session table.
type StoreResolver struct {
	sessions SessionLookup
	secret   []byte
	now      func() time.Time
}

type StoreOption func(*StoreResolver)

// WithCookieSecret requires cookie values to carry a valid HMAC-SHA256
// signature made with secret.
func WithCookieSecret(secret string) StoreOption {
	return func(s *StoreResolver) { s.secret = []byte(secret) }
}

func WithNow(now func() time.Time) StoreOption {
	return func(s *StoreResolver) { s.now = now }
}

func NewStoreResolver(sessions SessionLookup, opts ...StoreOption) *StoreResolver {
	s := &StoreResolver{sessions: sessions, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StoreResolver) Resolve(ctx context.Context, r *http.Request) (types.Session, error) {
	token, ok := s.cookieToken(r)
	if !ok {
		token, ok = BearerToken(r)
	}
	if !ok {
		return types.Session{}, ErrNoSession
	}

	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Session{}, ErrNoSession
		}
		return types.Session{}, err
	}
	if !session.ExpiresAt.After(s.now()) {
		return types.Session{}, ErrNoSession
	}
	return session, nil
}

func (s *StoreResolver) cookieToken(r *http.Request) (string, bool) {
	for _, name := range []string{SecureSessionCookie, SessionCookie} {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			continue
		}
		if token, ok := s.unsign(c.Value); ok {
			return token, true
		}
	}
	return "", false
}

// unsign splits "token.signature". Without a secret the signature is not
// checked and an unsigned value is accepted as-is.
func (s *StoreResolver) unsign(value string) (string, bool) {
	if decoded, err := url.PathUnescape(value); err == nil {
		value = decoded
	}
	idx := strings.LastIndexByte(value, '.')
	if len(s.secret) == 0 {
		if idx < 0 {
			return value, value != ""
		}
		return value[:idx], idx > 0
	}
	if idx <= 0 {
		return "", false
	}

	token, sig := value[:idx], value[idx+1:]
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}
	return token, true
}

// SignCookieValue produces a cookie value accepted by WithCookieSecret.
func SignCookieValue(token, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	return token + "." + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
