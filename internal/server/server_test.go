package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cvdreamjob/apiserver/config"
	"github.com/cvdreamjob/apiserver/internal/auth"
	"github.com/cvdreamjob/apiserver/internal/db/dbtest"
	"github.com/cvdreamjob/apiserver/internal/logging"
	"github.com/cvdreamjob/apiserver/internal/mq"
	"github.com/cvdreamjob/apiserver/internal/storage"
	"github.com/cvdreamjob/apiserver/internal/storage/storagetest"
	"github.com/cvdreamjob/apiserver/internal/store"
	"github.com/cvdreamjob/apiserver/types"
)

const cookieSecret = "cookie-secret"

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

// captureBackend is an mq.Backend that keeps published events.
type captureBackend struct {
	mu     sync.Mutex
	events []types.ProfileEvent
	closed bool
}

func (b *captureBackend) Publish(_ context.Context, _ string, data []byte, attrs map[string]string) (string, error) {
	ev, err := mq.DecodeEvent(mq.Message{Data: data, Attributes: attrs})
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return "id", nil
}

func (b *captureBackend) Subscribe(context.Context, string, mq.Handler) error { return nil }

func (b *captureBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return logging.NewWithWriter(logging.Config{Service: "cvdream-test", Env: "test", Level: "error"}, io.Discard)
}

func TestRouterProfileLifecycle(t *testing.T) {
	ctx := context.Background()
	st := store.New(dbtest.NewSQLite(t))
	objects := storagetest.NewMemory("avatars")
	events := &captureBackend{}

	stamp := time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)
	_, err := st.Users().Create(ctx, types.User{ID: "u1", Name: "Alice", Email: "alice@example.com", CreatedAt: stamp, UpdatedAt: stamp})
	require.NoError(t, err)
	_, err = st.Accounts().Create(ctx, types.Credential{ID: "a1", AccountID: "u1", ProviderID: types.CredentialsProvider, UserID: "u1", PasswordHash: "plain:old"})
	require.NoError(t, err)
	require.NoError(t, st.Sessions().Create(ctx, types.Session{ID: "s1", Token: "tok-u1", UserID: "u1", ExpiresAt: time.Now().UTC().Add(time.Hour)}))

	router := NewRouter(Deps{
		Logger:        testLogger(),
		Store:         st,
		Hasher:        plainHasher{},
		Resolver:      auth.NewStoreResolver(st.Sessions(), auth.WithCookieSecret(cookieSecret)),
		Objects:       storage.NewStorage(objects),
		Events:        mq.New(events),
		Channel:       "profile-events",
		Timeout:       5 * time.Second,
		RatePerMinute: 60,
		RateBurst:     10,
	})

	cookie := &http.Cookie{Name: auth.SessionCookie, Value: url.QueryEscape(auth.SignCookieValue("tok-u1", cookieSecret))}
	send := func(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, body)
		req.AddCookie(cookie)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = send(http.MethodGet, "/readyz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(http.MethodGet, "/profile", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "me.png")
	require.NoError(t, err)
	_, err = fw.Write(storagetest.PNG(8, 8))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec = send(http.MethodPost, "/profile/avatar", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var avatar types.AvatarResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &avatar))

	update, err := json.Marshal(types.UpdateProfileRequest{Name: "Alice B", Image: &avatar.Image})
	require.NoError(t, err)
	rec = send(http.MethodPut, "/profile", bytes.NewReader(update), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(http.MethodGet, avatar.Image, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(http.MethodDelete, "/profile", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, objects.Keys())

	rec = send(http.MethodGet, "/profile", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	require.Len(t, events.events, 2)
	require.Equal(t, types.EventProfileUpdated, events.events[0].Type)
	require.False(t, events.events[0].PasswordChanged)
	require.Equal(t, types.EventProfileDeleted, events.events[1].Type)
	require.Equal(t, "u1", events.events[1].UserID)
}

func TestRouterWithoutObjectStorage(t *testing.T) {
	st := store.New(dbtest.NewSQLite(t))
	router := NewRouter(Deps{
		Store:    st,
		Hasher:   plainHasher{},
		Resolver: auth.NewTokenResolver("s"),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/avatars/u1/a.png", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	tok, err := auth.IssueToken("u1", "s", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/profile/avatar", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, rec.Code)
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := config.Config{
		BcryptCost: 4,
		Database:   config.DatabaseConfig{Driver: "sqlite", URL: "file:x.db", MaxOpenConns: 1, StatementTimeout: time.Second},
	}
	_, err := New(context.Background(), cfg, testLogger())
	require.ErrorContains(t, err, "BCRYPT_COST")
}

func TestNewWithSQLite(t *testing.T) {
	cfg := config.Config{
		ServerPort: 0,
		JWTSecret:  "secret",
		BcryptCost: 12,
		Database: config.DatabaseConfig{
			Driver:           "sqlite",
			URL:              "file:" + filepath.Join(t.TempDir(), "server.db"),
			MaxOpenConns:     2,
			StatementTimeout: time.Second,
		},
		RateLimit: config.RateLimitConfig{PerMinute: 20, Burst: 20},
	}
	srv, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}

func sqliteConfig(t *testing.T) config.Config {
	return config.Config{
		JWTSecret:  "secret",
		BcryptCost: 12,
		Database: config.DatabaseConfig{
			Driver:           "sqlite",
			URL:              "file:" + filepath.Join(t.TempDir(), "server.db"),
			MaxOpenConns:     2,
			StatementTimeout: time.Second,
		},
	}
}

func stubBackends(t *testing.T, broker *mq.MQ, objects *storage.Storage, storageErr error) {
	prevBroker, prevStorage := openBroker, openStorage
	t.Cleanup(func() { openBroker, openStorage = prevBroker, prevStorage })

	openBroker = func(context.Context, config.MQConfig) (*mq.MQ, error) { return broker, nil }
	openStorage = func(context.Context, config.StorageConfig) (*storage.Storage, error) {
		return objects, storageErr
	}
}

func TestNewReleasesBrokerWhenStorageFails(t *testing.T) {
	events := &captureBackend{}
	stubBackends(t, mq.New(events), nil, errors.New("bucket unreachable"))

	_, err := New(context.Background(), sqliteConfig(t), testLogger())
	require.ErrorContains(t, err, "bucket unreachable")
	require.True(t, events.closed)
}

func TestShutdownClosesBackends(t *testing.T) {
	events := &captureBackend{}
	objects := storagetest.NewMemory("avatars")
	stubBackends(t, mq.New(events), storage.NewStorage(objects), nil)

	srv, err := New(context.Background(), sqliteConfig(t), testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.True(t, events.closed)
	require.True(t, objects.Closed())
}
